package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"

	"channel-archiver/internal/domain"
	"channel-archiver/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestTaskRepo(t *testing.T) repository.TaskRepository {
	t.Helper()
	repo := NewTaskRepository(openTestDB(t))
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return repo
}

func seedTask(t *testing.T, repo repository.TaskRepository) *domain.Task {
	t.Helper()
	task := &domain.Task{
		ID:        uuid.NewString(),
		AuthorURL: "https://example.com/channel/abc",
		Author:    "abc",
		Platform:  domain.PlatformYouTube,
		Status:    domain.TaskStatusActive,
	}
	if err := repo.Create(context.Background(), task); err != nil {
		t.Fatalf("create: %v", err)
	}
	return task
}

func TestTaskRepository_CreateAndGet(t *testing.T) {
	repo := newTestTaskRepo(t)
	task := seedTask(t, repo)

	got, err := repo.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AuthorURL != task.AuthorURL || got.Status != domain.TaskStatusActive {
		t.Fatalf("unexpected task: %+v", got)
	}
	if got.TotalVideos != 0 || got.CurrentVideoIndex != 0 {
		t.Fatalf("new task must start zeroed: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", got)
	}
}

func TestTaskRepository_GetUnknownID(t *testing.T) {
	repo := newTestTaskRepo(t)
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound got %v", err)
	}
}

func TestTaskRepository_UpdateProgressPartialMerge(t *testing.T) {
	repo := newTestTaskRepo(t)
	task := seedTask(t, repo)
	ctx := context.Background()

	downloaded, index := 2, 3
	if err := repo.UpdateProgress(ctx, task.ID, repository.ProgressUpdate{
		DownloadedCount:   &downloaded,
		CurrentVideoIndex: &index,
	}); err != nil {
		t.Fatalf("update progress: %v", err)
	}

	skipped := 1
	if err := repo.UpdateProgress(ctx, task.ID, repository.ProgressUpdate{SkippedCount: &skipped}); err != nil {
		t.Fatalf("update progress: %v", err)
	}

	got, err := repo.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// the second write must not clobber fields it did not set
	if got.DownloadedCount != 2 || got.SkippedCount != 1 || got.CurrentVideoIndex != 3 {
		t.Fatalf("partial merge broken: downloaded=%d skipped=%d index=%d", got.DownloadedCount, got.SkippedCount, got.CurrentVideoIndex)
	}
}

func TestTaskRepository_UpdateProgressEmptyUpdateIsNoop(t *testing.T) {
	repo := newTestTaskRepo(t)
	task := seedTask(t, repo)
	if err := repo.UpdateProgress(context.Background(), task.ID, repository.ProgressUpdate{}); err != nil {
		t.Fatalf("empty update: %v", err)
	}
}

func TestTaskRepository_UpdateTotalVideos(t *testing.T) {
	repo := newTestTaskRepo(t)
	task := seedTask(t, repo)

	if err := repo.UpdateTotalVideos(context.Background(), task.ID, 42); err != nil {
		t.Fatalf("update total: %v", err)
	}
	got, _ := repo.Get(context.Background(), task.ID)
	if got.TotalVideos != 42 {
		t.Fatalf("want total=42 got=%d", got.TotalVideos)
	}
}

func TestTaskRepository_StatusLifecycle(t *testing.T) {
	repo := newTestTaskRepo(t)
	task := seedTask(t, repo)
	ctx := context.Background()

	if err := repo.UpdateStatus(ctx, task.ID, domain.TaskStatusPaused, nil); err != nil {
		t.Fatalf("pause: %v", err)
	}
	got, _ := repo.Get(ctx, task.ID)
	if got.Status != domain.TaskStatusPaused {
		t.Fatalf("want paused got %s", got.Status)
	}

	msg := "engine unreachable"
	if err := repo.UpdateStatus(ctx, task.ID, domain.TaskStatusCancelled, &msg); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ = repo.Get(ctx, task.ID)
	if got.Status != domain.TaskStatusCancelled || got.ErrorMessage != msg {
		t.Fatalf("unexpected task after cancel: %+v", got)
	}

	if err := repo.UpdateStatus(ctx, "missing", domain.TaskStatusCancelled, nil); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown id, got %v", err)
	}
}

func TestTaskRepository_Complete(t *testing.T) {
	repo := newTestTaskRepo(t)
	task := seedTask(t, repo)

	if err := repo.Complete(context.Background(), task.ID, task.CreatedAt); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := repo.Get(context.Background(), task.ID)
	if got.Status != domain.TaskStatusCompleted {
		t.Fatalf("want completed got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatalf("completed_at not recorded")
	}
}

func TestTaskRepository_Delete(t *testing.T) {
	repo := newTestTaskRepo(t)
	task := seedTask(t, repo)
	ctx := context.Background()

	if err := repo.Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, task.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("task should be gone, got %v", err)
	}
	if err := repo.Delete(ctx, task.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound on double delete, got %v", err)
	}
}

func TestTaskRepository_List(t *testing.T) {
	repo := newTestTaskRepo(t)
	seedTask(t, repo)
	seedTask(t, repo)

	tasks, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("want 2 tasks got %d", len(tasks))
	}
}
