package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"channel-archiver/internal/domain"
	"channel-archiver/internal/repository"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	author_url TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	platform TEXT NOT NULL,
	status TEXT NOT NULL,
	total_videos INTEGER NOT NULL DEFAULT 0,
	current_video_index INTEGER NOT NULL DEFAULT 0,
	downloaded_count INTEGER NOT NULL DEFAULT 0,
	skipped_count INTEGER NOT NULL DEFAULT 0,
	failed_count INTEGER NOT NULL DEFAULT 0,
	collection_id TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	completed_at DATETIME NULL
);
`

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTasksTable); err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}
	return nil
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO tasks (id, author_url, author, platform, status, total_videos, current_video_index, downloaded_count, skipped_count, failed_count, collection_id, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.AuthorURL,
		task.Author,
		string(task.Platform),
		string(task.Status),
		task.TotalVideos,
		task.CurrentVideoIndex,
		task.DownloadedCount,
		task.SkippedCount,
		task.FailedCount,
		task.CollectionID,
		task.ErrorMessage,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) UpdateProgress(ctx context.Context, id string, update repository.ProgressUpdate) error {
	var (
		sets []string
		args []any
	)
	if update.DownloadedCount != nil {
		sets = append(sets, "downloaded_count=?")
		args = append(args, *update.DownloadedCount)
	}
	if update.SkippedCount != nil {
		sets = append(sets, "skipped_count=?")
		args = append(args, *update.SkippedCount)
	}
	if update.FailedCount != nil {
		sets = append(sets, "failed_count=?")
		args = append(args, *update.FailedCount)
	}
	if update.CurrentVideoIndex != nil {
		sets = append(sets, "current_video_index=?")
		args = append(args, *update.CurrentVideoIndex)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at=?")
	args = append(args, time.Now().UTC(), id)

	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id=?`, strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task progress: %w", err)
	}
	return requireAffected(res, "update task progress")
}

func (r *TaskRepository) UpdateTotalVideos(ctx context.Context, id string, total int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE tasks
SET total_videos=?, updated_at=?
WHERE id=?`,
		total,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update total videos: %w", err)
	}
	return requireAffected(res, "update total videos")
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, errorMessage *string) error {
	now := time.Now().UTC()
	msg := ""
	if errorMessage != nil {
		msg = *errorMessage
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE tasks
SET status=?, error_message=?, updated_at=?
WHERE id=?`,
		string(status),
		msg,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return requireAffected(res, "update task status")
}

func (r *TaskRepository) Complete(ctx context.Context, id string, completedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE tasks
SET status=?, completed_at=?, updated_at=?
WHERE id=?`,
		string(domain.TaskStatusCompleted),
		completedAt.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return requireAffected(res, "complete task")
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(res, "delete task")
}

func (r *TaskRepository) Get(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, author_url, author, platform, status, total_videos, current_video_index, downloaded_count, skipped_count, failed_count, collection_id, error_message, created_at, updated_at, completed_at
FROM tasks
WHERE id=?`,
		id,
	)
	return scanTask(row)
}

func (r *TaskRepository) List(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, author_url, author, platform, status, total_videos, current_video_index, downloaded_count, skipped_count, failed_count, collection_id, error_message, created_at, updated_at, completed_at
FROM tasks
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*domain.Task, error) {
	var (
		task        domain.Task
		platform    string
		status      string
		createdAt   time.Time
		updatedAt   time.Time
		completedAt sql.NullTime
	)

	if err := scanner.Scan(
		&task.ID,
		&task.AuthorURL,
		&task.Author,
		&platform,
		&status,
		&task.TotalVideos,
		&task.CurrentVideoIndex,
		&task.DownloadedCount,
		&task.SkippedCount,
		&task.FailedCount,
		&task.CollectionID,
		&task.ErrorMessage,
		&createdAt,
		&updatedAt,
		&completedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.Platform = domain.Platform(platform)
	task.Status = domain.TaskStatus(status)
	task.CreatedAt = createdAt.Local()
	task.UpdatedAt = updatedAt.Local()
	if completedAt.Valid {
		t := completedAt.Time.Local()
		task.CompletedAt = &t
	}

	return &task, nil
}

func requireAffected(res sql.Result, op string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if aff == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.TaskRepository = (*TaskRepository)(nil)
