package repository

import (
	"context"
	"errors"
	"time"

	"channel-archiver/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ProgressUpdate is a partial merge of task progress fields; nil fields are
// left untouched, set fields win last-writer-wins.
type ProgressUpdate struct {
	DownloadedCount   *int
	SkippedCount      *int
	FailedCount       *int
	CurrentVideoIndex *int
}

// TaskRepository exposes persistence operations for acquisition tasks.
type TaskRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context) ([]domain.Task, error)
	UpdateProgress(ctx context.Context, id string, update ProgressUpdate) error
	UpdateTotalVideos(ctx context.Context, id string, total int) error
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, errorMessage *string) error
	Complete(ctx context.Context, id string, completedAt time.Time) error
	Delete(ctx context.Context, id string) error
}
