package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"channel-archiver/internal/domain"
	"channel-archiver/internal/repository"
)

func newTestVideoRepo(t *testing.T) repository.VideoRepository {
	t.Helper()
	repo := NewVideoRepository(openTestDB(t))
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return repo
}

func TestVideoRepository_FindBySourceURL(t *testing.T) {
	repo := newTestVideoRepo(t)
	ctx := context.Background()

	video := &domain.Video{
		ID:        uuid.NewString(),
		Title:     "some video",
		Platform:  domain.PlatformYouTube,
		SourceURL: "https://example.com/watch?v=1",
	}
	if err := repo.Insert(ctx, video); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.FindBySourceURL(ctx, video.SourceURL)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != video.ID || got.Title != video.Title {
		t.Fatalf("unexpected video: %+v", got)
	}

	if _, err := repo.FindBySourceURL(ctx, "https://example.com/watch?v=none"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound got %v", err)
	}
}

func TestVideoRepository_DuplicateSourceURLRejected(t *testing.T) {
	repo := newTestVideoRepo(t)
	ctx := context.Background()

	first := &domain.Video{ID: uuid.NewString(), Platform: domain.PlatformYouTube, SourceURL: "dup"}
	if err := repo.Insert(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	second := &domain.Video{ID: uuid.NewString(), Platform: domain.PlatformYouTube, SourceURL: "dup"}
	if err := repo.Insert(ctx, second); err == nil {
		t.Fatalf("want unique constraint error for duplicate source url")
	}
}

func TestVideoRepository_Collections(t *testing.T) {
	repo := newTestVideoRepo(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		video := &domain.Video{
			ID:        uuid.NewString(),
			Platform:  domain.PlatformBilibili,
			SourceURL: uuid.NewString(),
		}
		if err := repo.Insert(ctx, video); err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, video.ID)
	}

	for _, id := range ids[:2] {
		if err := repo.AddToCollection(ctx, "col-1", id); err != nil {
			t.Fatalf("add to collection: %v", err)
		}
	}
	// re-linking is idempotent
	if err := repo.AddToCollection(ctx, "col-1", ids[0]); err != nil {
		t.Fatalf("re-link: %v", err)
	}

	videos, err := repo.ListByCollection(ctx, "col-1")
	if err != nil {
		t.Fatalf("list by collection: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("want 2 videos in collection got %d", len(videos))
	}
}

func TestHistoryRepository_AppendAndList(t *testing.T) {
	repo := NewHistoryRepository(openTestDB(t))
	ctx := context.Background()
	if err := repo.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, status := range []domain.HistoryStatus{domain.HistoryStatusSuccess, domain.HistoryStatusFailed, domain.HistoryStatusSkipped} {
		entry := &domain.HistoryEntry{
			ID:        uuid.NewString(),
			SourceURL: "https://example.com/watch?v=" + string(status),
			Status:    status,
		}
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("append %s: %v", status, err)
		}
	}

	entries, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("want 3 entries got %d", len(entries))
	}
}

func TestSettingsRepository_MaxConcurrentDownloads(t *testing.T) {
	repo := NewSettingsRepository(openTestDB(t))
	ctx := context.Background()
	if err := repo.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	max, err := repo.MaxConcurrentDownloads(ctx)
	if err != nil {
		t.Fatalf("read default: %v", err)
	}
	if max != repository.DefaultMaxConcurrentDownloads {
		t.Fatalf("want default %d got %d", repository.DefaultMaxConcurrentDownloads, max)
	}

	if err := repo.SetMaxConcurrentDownloads(ctx, 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	max, err = repo.MaxConcurrentDownloads(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if max != 5 {
		t.Fatalf("want 5 got %d", max)
	}

	if err := repo.SetMaxConcurrentDownloads(ctx, 0); err == nil {
		t.Fatalf("want error for non-positive max")
	}
}
