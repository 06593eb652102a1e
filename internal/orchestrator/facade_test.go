package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"channel-archiver/internal/domain"
	"channel-archiver/internal/repository"
)

func newFacadeFixture(enum *fakeEnum, adapter *fakeAdapter) (*processorFixture, *Orchestrator) {
	f := newFixture(enum, adapter)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return f, NewOrchestrator(f.store, f.proc, f.archive, "archive", logger)
}

func waitForStatus(t *testing.T, f *processorFixture, id string, status domain.TaskStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := f.task(t, id); got.Status == status {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s (got %s)", id, status, f.task(t, id).Status)
}

func TestOrchestrator_CreateTaskStartsProcessing(t *testing.T) {
	enum := &fakeEnum{urls: []string{"u1", "u2"}}
	f, orch := newFacadeFixture(enum, &fakeAdapter{})

	task, err := orch.CreateTask(context.Background(), "https://example.com/channel/abc", "abc", domain.PlatformYouTube)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != domain.TaskStatusActive {
		t.Fatalf("want status=active got=%s", task.Status)
	}

	waitForStatus(t, f, task.ID, domain.TaskStatusCompleted)
	got := f.task(t, task.ID)
	if got.DownloadedCount != 2 {
		t.Fatalf("want downloaded=2 got=%d", got.DownloadedCount)
	}
}

func TestOrchestrator_CreatePlaylistTaskSetsCollection(t *testing.T) {
	enum := &fakeEnum{urls: []string{"u1"}}
	f, orch := newFacadeFixture(enum, &fakeAdapter{})

	task, err := orch.CreatePlaylistTask(context.Background(), "https://example.com/playlist/p", "abc", domain.PlatformBilibili, "col-9")
	if err != nil {
		t.Fatalf("create playlist task: %v", err)
	}
	if task.CollectionID != "col-9" {
		t.Fatalf("want collection=col-9 got=%q", task.CollectionID)
	}

	waitForStatus(t, f, task.ID, domain.TaskStatusCompleted)
	f.videos.mu.Lock()
	linked := len(f.videos.collections["col-9"])
	f.videos.mu.Unlock()
	if linked != 1 {
		t.Fatalf("want 1 linked video got %d", linked)
	}
}

func TestOrchestrator_CancelUnknownTask(t *testing.T) {
	_, orch := newFacadeFixture(&fakeEnum{}, &fakeAdapter{})

	err := orch.CancelTask(context.Background(), "missing-id")
	if err == nil {
		t.Fatalf("want error for unknown id")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing-id") {
		t.Fatalf("error must identify the unknown id: %v", err)
	}
}

func TestOrchestrator_PauseAndResume(t *testing.T) {
	enum := &fakeEnum{urls: []string{"u1", "u2", "u3"}}
	f, orch := newFacadeFixture(enum, &fakeAdapter{})

	task := f.createTask(t)
	if err := orch.PauseTask(context.Background(), task.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if got := f.task(t, task.ID); got.Status != domain.TaskStatusPaused {
		t.Fatalf("want status=paused got=%s", got.Status)
	}

	// pausing a non-active task is rejected
	if err := orch.PauseTask(context.Background(), task.ID); err == nil {
		t.Fatalf("want error pausing a paused task")
	}

	if err := orch.ResumeTask(context.Background(), task.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitForStatus(t, f, task.ID, domain.TaskStatusCompleted)
}

func TestOrchestrator_DeleteRequiresTerminalStatus(t *testing.T) {
	f, orch := newFacadeFixture(&fakeEnum{}, &fakeAdapter{})
	task := f.createTask(t)

	if err := orch.DeleteTask(context.Background(), task.ID); err == nil {
		t.Fatalf("want error deleting an active task")
	}

	if err := orch.CancelTask(context.Background(), task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := orch.DeleteTask(context.Background(), task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.store.GetTask(context.Background(), task.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("task should be gone, got %v", err)
	}
}

func TestOrchestrator_DeleteTaskPurgesArchive(t *testing.T) {
	f, orch := newFacadeFixture(&fakeEnum{}, &fakeAdapter{})
	task := f.createTask(t)

	if err := orch.CancelTask(context.Background(), task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := orch.DeleteTask(context.Background(), task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	f.archive.mu.Lock()
	purged := append([]string(nil), f.archive.purged...)
	f.archive.mu.Unlock()
	if len(purged) != 1 || purged[0] != ArchiveKeyPrefix("archive", task.ID) {
		t.Fatalf("want archive purge under task prefix, got %v", purged)
	}
}

func TestOrchestrator_DeleteTaskSurvivesPurgeFailure(t *testing.T) {
	f, orch := newFacadeFixture(&fakeEnum{}, &fakeAdapter{})
	f.archive.purgeErr = errors.New("bucket unavailable")
	task := f.createTask(t)

	if err := orch.CancelTask(context.Background(), task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := orch.DeleteTask(context.Background(), task.ID); err != nil {
		t.Fatalf("purge failure must not fail deletion: %v", err)
	}
	if _, err := f.store.GetTask(context.Background(), task.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("task should be gone, got %v", err)
	}
}

func TestOrchestrator_ResumeRestartsActiveTasks(t *testing.T) {
	enum := &fakeEnum{urls: []string{"u1"}}
	f, orch := newFacadeFixture(enum, &fakeAdapter{})

	task := f.createTask(t)
	if err := orch.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitForStatus(t, f, task.ID, domain.TaskStatusCompleted)
}
