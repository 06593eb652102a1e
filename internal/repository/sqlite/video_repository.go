package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"channel-archiver/internal/domain"
	"channel-archiver/internal/repository"
)

const createVideosTables = `
CREATE TABLE IF NOT EXISTS videos (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	platform TEXT NOT NULL,
	source_url TEXT NOT NULL UNIQUE,
	file_path TEXT NOT NULL DEFAULT '',
	duration INTEGER NOT NULL DEFAULT 0,
	downloaded_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS collection_videos (
	collection_id TEXT NOT NULL,
	video_id TEXT NOT NULL,
	added_at DATETIME NOT NULL,
	PRIMARY KEY (collection_id, video_id)
);
`

type VideoRepository struct {
	db *sql.DB
}

func NewVideoRepository(db *sql.DB) repository.VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createVideosTables); err != nil {
		return fmt.Errorf("create videos tables: %w", err)
	}
	return nil
}

func (r *VideoRepository) Insert(ctx context.Context, video *domain.Video) error {
	if video.DownloadedAt.IsZero() {
		video.DownloadedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO videos (id, title, author, platform, source_url, file_path, duration, downloaded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID,
		video.Title,
		video.Author,
		string(video.Platform),
		video.SourceURL,
		video.FilePath,
		video.Duration,
		video.DownloadedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (r *VideoRepository) FindBySourceURL(ctx context.Context, sourceURL string) (*domain.Video, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, author, platform, source_url, file_path, duration, downloaded_at
FROM videos
WHERE source_url=?`,
		sourceURL,
	)
	return scanVideo(row)
}

func (r *VideoRepository) AddToCollection(ctx context.Context, collectionID, videoID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO collection_videos (collection_id, video_id, added_at)
VALUES (?, ?, ?)`,
		collectionID,
		videoID,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add video to collection: %w", err)
	}
	return nil
}

func (r *VideoRepository) ListByCollection(ctx context.Context, collectionID string) ([]domain.Video, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT v.id, v.title, v.author, v.platform, v.source_url, v.file_path, v.duration, v.downloaded_at
FROM videos v
JOIN collection_videos cv ON cv.video_id = v.id
WHERE cv.collection_id=?
ORDER BY cv.added_at ASC`,
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query collection videos: %w", err)
	}
	defer rows.Close()

	var videos []domain.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *video)
	}
	return videos, rows.Err()
}

func scanVideo(scanner interface {
	Scan(dest ...any) error
}) (*domain.Video, error) {
	var (
		video        domain.Video
		platform     string
		downloadedAt time.Time
	)
	if err := scanner.Scan(
		&video.ID,
		&video.Title,
		&video.Author,
		&platform,
		&video.SourceURL,
		&video.FilePath,
		&video.Duration,
		&downloadedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan video: %w", err)
	}
	video.Platform = domain.Platform(platform)
	video.DownloadedAt = downloadedAt.Local()
	return &video, nil
}

var _ repository.VideoRepository = (*VideoRepository)(nil)
