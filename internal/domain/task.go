package domain

import "time"

type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformBilibili Platform = "bilibili"
)

// Task is one long-running request to acquire every video from a source.
type Task struct {
	ID                string
	AuthorURL         string
	Author            string
	Platform          Platform
	Status            TaskStatus
	TotalVideos       int
	CurrentVideoIndex int
	DownloadedCount   int
	SkippedCount      int
	FailedCount       int
	CollectionID      string
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// Video is a completed download known to the video registry.
type Video struct {
	ID           string
	Title        string
	Author       string
	Platform     Platform
	SourceURL    string
	FilePath     string
	Duration     int
	DownloadedAt time.Time
}

type HistoryStatus string

const (
	HistoryStatusSuccess HistoryStatus = "success"
	HistoryStatusFailed  HistoryStatus = "failed"
	HistoryStatusSkipped HistoryStatus = "skipped"
)

// HistoryEntry records the terminal outcome of one video acquisition attempt.
type HistoryEntry struct {
	ID           string
	Title        string
	Author       string
	SourceURL    string
	Status       HistoryStatus
	ErrorMessage string
	FinishedAt   time.Time
}
