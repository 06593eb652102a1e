// Package orchestrator contains the continuous acquisition control loop and
// its lifecycle facade. One task is processed by one sequential loop; the
// process may run several loops at once, all gated by the shared
// active-downloads registry.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"channel-archiver/internal/domain"
	"channel-archiver/internal/engine"
	"channel-archiver/internal/registry"
	"channel-archiver/internal/repository"
	"channel-archiver/internal/service"
	"channel-archiver/internal/storage"
)

// ErrTaskNotActive signals that a liveness checkpoint observed a paused,
// cancelled, or deleted task. It is a normal loop exit, not a failure.
var ErrTaskNotActive = errors.New("task is not active")

// fallbackTotalEstimate stands in for an unresolvable playlist count when a
// full probe batch came back. The incremental loop stops early when the real
// source is shorter, so an overestimate only costs one empty batch fetch.
const fallbackTotalEstimate = 1000

type Config struct {
	BatchSize    int
	ItemDelay    time.Duration
	PollInterval time.Duration
	// ArchivePrefix is the object-storage key prefix; each task archives
	// under ArchivePrefix/<task id> so deletion can purge it in one sweep.
	ArchivePrefix string
	Logger        *logrus.Logger
}

// Enumerator produces video URLs for a source. Satisfied by
// *enumerate.Enumerator.
type Enumerator interface {
	Incremental(source string, platform domain.Platform) bool
	VideoCount(ctx context.Context, source string, platform domain.Platform) (int, error)
	AllVideoURLs(ctx context.Context, source string, platform domain.Platform) ([]string, error)
	VideoURLsIncremental(ctx context.Context, source string, platform domain.Platform, startIndex, batchSize int) ([]string, error)
}

// Deps are the processor's collaborators, injected so tests can substitute
// fakes for every external effect.
type Deps struct {
	Tasks    service.TaskService
	Videos   repository.VideoRepository
	History  repository.HistoryRepository
	Settings repository.SettingsRepository
	Enum     Enumerator
	Adapters map[domain.Platform]engine.Adapter
	Active   *registry.ActiveDownloads
	Archive  storage.Service
}

// Processor walks a task's video index range, enforcing the shared
// concurrency budget and re-reading the task store at every checkpoint so
// externally triggered pause/cancel is observed between steps.
type Processor struct {
	cfg  Config
	deps Deps

	// injectable for tests
	sleep func(ctx context.Context, d time.Duration) error
}

func NewProcessor(cfg Config, deps Deps) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.ItemDelay == 0 {
		cfg.ItemDelay = time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Processor{
		cfg:   cfg,
		deps:  deps,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// taskRun holds per-pass enumeration state: either the full URL list for a
// bounded source, or a sliding batch window for an incremental one.
type taskRun struct {
	incremental bool
	full        []string
	fullLoaded  bool
	batch       []string
	batchStart  int
}

// Process runs one processing pass over the task. It returns nil on normal
// exits (completion, pause, cancel, deletion) and an error only when the
// pass aborted without the task reaching a decision point (enumeration or
// store failures); the task stays active and may be re-triggered.
func (p *Processor) Process(ctx context.Context, id string) error {
	logger := p.cfg.Logger.WithField("task_id", id)

	task, ok, err := p.liveness(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	run := &taskRun{incremental: p.deps.Enum.Incremental(task.AuthorURL, task.Platform)}

	if task.TotalVideos == 0 {
		total, err := p.resolveTotal(ctx, task, run)
		if err != nil {
			logger.Warnf("enumerate source: %v", err)
			return err
		}
		if err := p.deps.Tasks.UpdateTotalVideos(ctx, id, total); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("persist total videos: %w", err)
		}
		task.TotalVideos = total
		logger.Infof("resolved %d videos for %s", total, task.AuthorURL)
	}

	for i := task.CurrentVideoIndex; i < task.TotalVideos; i++ {
		task, ok, err = p.liveness(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("task no longer active, stopping")
			return nil
		}

		url, found, err := p.urlAt(ctx, task, run, i)
		if err != nil {
			logger.Warnf("enumerate batch at index %d: %v", i, err)
			return err
		}
		if !found {
			logger.Infof("source exhausted at index %d of %d", i, task.TotalVideos)
			break
		}

		// tighter checkpoint right before committing to a download
		if _, ok, err = p.liveness(ctx, id); err != nil || !ok {
			return err
		}

		if err := p.processVideo(ctx, task, url); err != nil {
			if errors.Is(err, ErrTaskNotActive) {
				logger.Info("task no longer active, stopping")
				return nil
			}
			// only genuine per-video failures advance past the item; store
			// failures abort the pass and leave the task active
			var de *engine.DownloadError
			if !errors.As(err, &de) {
				return err
			}
			logger.WithField("url", url).Warnf("video failed: %v", err)
			p.recordFailure(ctx, task, url, err)
		}

		if _, ok, err = p.liveness(ctx, id); err != nil || !ok {
			return err
		}

		if i < task.TotalVideos-1 {
			if err := p.sleep(ctx, p.cfg.ItemDelay); err != nil {
				return nil
			}
		}
	}

	final, err := p.deps.Tasks.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("reload task for completion check: %w", err)
	}
	if final.Status == domain.TaskStatusActive && final.CurrentVideoIndex >= final.TotalVideos {
		if err := p.deps.Tasks.CompleteTask(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("complete task: %w", err)
		}
		logger.Infof("task completed: %d downloaded, %d skipped, %d failed",
			final.DownloadedCount, final.SkippedCount, final.FailedCount)
	}
	return nil
}

// liveness is the re-entrant checkpoint: re-read the task and report whether
// the loop may continue. A missing task is a normal stop, not an error.
func (p *Processor) liveness(ctx context.Context, id string) (*domain.Task, bool, error) {
	task, err := p.deps.Tasks.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reload task: %w", err)
	}
	if task.Status != domain.TaskStatusActive {
		return task, false, nil
	}
	return task, true, nil
}

// resolveTotal fixes the task's totalVideos once. For incremental sources it
// prefers the engine's cheap count, probing one batch when the count is
// unresolved; for bounded sources it loads the full list.
func (p *Processor) resolveTotal(ctx context.Context, task *domain.Task, run *taskRun) (int, error) {
	if !run.incremental {
		urls, err := p.deps.Enum.AllVideoURLs(ctx, task.AuthorURL, task.Platform)
		if err != nil {
			return 0, err
		}
		run.full = urls
		run.fullLoaded = true
		return len(urls), nil
	}

	total, err := p.deps.Enum.VideoCount(ctx, task.AuthorURL, task.Platform)
	if err != nil {
		return 0, err
	}
	if total > 0 {
		return total, nil
	}

	// count unresolved: probe one batch; a full batch means the source is
	// large and the estimate is corrected by early loop exhaustion
	probe, err := p.deps.Enum.VideoURLsIncremental(ctx, task.AuthorURL, task.Platform, 0, p.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	run.batch = probe
	run.batchStart = 0
	if len(probe) == p.cfg.BatchSize {
		return fallbackTotalEstimate, nil
	}
	return len(probe), nil
}

// urlAt resolves the URL for index i, refreshing the batch window for
// incremental sources. found=false means the source ran out before
// totalVideos was reached.
func (p *Processor) urlAt(ctx context.Context, task *domain.Task, run *taskRun, i int) (string, bool, error) {
	if !run.incremental {
		if !run.fullLoaded {
			urls, err := p.deps.Enum.AllVideoURLs(ctx, task.AuthorURL, task.Platform)
			if err != nil {
				return "", false, err
			}
			run.full = urls
			run.fullLoaded = true
		}
		if i >= len(run.full) {
			return "", false, nil
		}
		return run.full[i], true, nil
	}

	if i < run.batchStart || i >= run.batchStart+len(run.batch) {
		batch, err := p.deps.Enum.VideoURLsIncremental(ctx, task.AuthorURL, task.Platform, i, p.cfg.BatchSize)
		if err != nil {
			return "", false, err
		}
		if len(batch) == 0 {
			return "", false, nil
		}
		run.batch = batch
		run.batchStart = i
	}
	return run.batch[i-run.batchStart], true, nil
}

// processVideo acquires a single URL: dedup check, slot admission, engine
// invocation, registry/history/collection writes, progress update. Only
// ErrTaskNotActive and download failures escape.
func (p *Processor) processVideo(ctx context.Context, task *domain.Task, url string) error {
	logger := p.cfg.Logger.WithField("task_id", task.ID).WithField("url", url)

	existing, err := p.deps.Videos.FindBySourceURL(ctx, url)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Warnf("registry lookup: %v", err)
	}
	if existing != nil {
		logger.Debug("already downloaded, skipping")
		p.appendHistory(ctx, &domain.HistoryEntry{
			ID:        existing.ID,
			Title:     existing.Title,
			Author:    task.Author,
			SourceURL: url,
			Status:    domain.HistoryStatusSkipped,
		})
		return p.advance(ctx, task.ID, domain.HistoryStatusSkipped)
	}

	if err := p.waitForSlot(ctx, task.ID); err != nil {
		return err
	}

	downloadID := uuid.NewString()
	p.deps.Active.Add(downloadID, url)
	defer p.deps.Active.Remove(downloadID)

	adapter, ok := p.deps.Adapters[task.Platform]
	if !ok {
		return &engine.DownloadError{URL: url, Message: fmt.Sprintf("no download adapter for platform %q", task.Platform)}
	}

	result, err := adapter.Download(ctx, url, downloadID)
	if err != nil {
		var de *engine.DownloadError
		if errors.As(err, &de) {
			return de
		}
		return &engine.DownloadError{URL: url, Message: err.Error()}
	}

	meta, err := result.Normalize(url)
	if err != nil {
		return err
	}

	video := &domain.Video{
		ID:        meta.ID,
		Title:     meta.Title,
		Author:    meta.Author,
		Platform:  task.Platform,
		SourceURL: url,
		FilePath:  meta.FilePath,
		Duration:  meta.Duration,
	}
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	if video.Author == "" {
		video.Author = task.Author
	}
	if err := p.deps.Videos.Insert(ctx, video); err != nil {
		logger.Warnf("register video: %v", err)
	}

	p.appendHistory(ctx, &domain.HistoryEntry{
		ID:        video.ID,
		Title:     video.Title,
		Author:    video.Author,
		SourceURL: url,
		Status:    domain.HistoryStatusSuccess,
	})

	if task.CollectionID != "" {
		if err := p.deps.Videos.AddToCollection(ctx, task.CollectionID, video.ID); err != nil {
			logger.Warnf("link video to collection %s: %v", task.CollectionID, err)
		}
	}

	p.archive(ctx, logger, task, video)

	return p.advance(ctx, task.ID, domain.HistoryStatusSuccess)
}

// waitForSlot polls the shared registry until a concurrency slot frees up.
// The registry is also mutated by manual downloads outside this loop, so a
// local semaphore cannot gate it. Each poll re-checks task liveness.
func (p *Processor) waitForSlot(ctx context.Context, id string) error {
	for {
		task, err := p.deps.Tasks.GetTask(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTaskNotActive
			}
			return fmt.Errorf("reload task while waiting for slot: %w", err)
		}
		if task.Status != domain.TaskStatusActive {
			return ErrTaskNotActive
		}

		max, err := p.deps.Settings.MaxConcurrentDownloads(ctx)
		if err != nil {
			p.cfg.Logger.Warnf("read max concurrent downloads: %v", err)
			max = repository.DefaultMaxConcurrentDownloads
		}

		if p.deps.Active.Count() < max {
			return nil
		}

		if err := p.sleep(ctx, p.cfg.PollInterval); err != nil {
			return ErrTaskNotActive
		}
	}
}

// advance bumps the counter for the given outcome plus the index cursor,
// re-reading the latest committed counters first so concurrent progress
// writes are not lost.
func (p *Processor) advance(ctx context.Context, id string, outcome domain.HistoryStatus) error {
	task, err := p.deps.Tasks.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTaskNotActive
		}
		return fmt.Errorf("reload counters: %w", err)
	}

	index := task.CurrentVideoIndex + 1
	update := repository.ProgressUpdate{CurrentVideoIndex: &index}
	switch outcome {
	case domain.HistoryStatusSuccess:
		n := task.DownloadedCount + 1
		update.DownloadedCount = &n
	case domain.HistoryStatusSkipped:
		n := task.SkippedCount + 1
		update.SkippedCount = &n
	case domain.HistoryStatusFailed:
		n := task.FailedCount + 1
		update.FailedCount = &n
	}

	if err := p.deps.Tasks.UpdateProgress(ctx, id, update); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTaskNotActive
		}
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// recordFailure logs a failed video and moves the cursor past it; one bad
// video must not block the rest of the source.
func (p *Processor) recordFailure(ctx context.Context, task *domain.Task, url string, failErr error) {
	p.appendHistory(ctx, &domain.HistoryEntry{
		ID:           uuid.NewString(),
		Author:       task.Author,
		SourceURL:    url,
		Status:       domain.HistoryStatusFailed,
		ErrorMessage: failErr.Error(),
	})
	if err := p.advance(ctx, task.ID, domain.HistoryStatusFailed); err != nil && !errors.Is(err, ErrTaskNotActive) {
		p.cfg.Logger.WithField("task_id", task.ID).Warnf("record failure: %v", err)
	}
}

func (p *Processor) appendHistory(ctx context.Context, entry *domain.HistoryEntry) {
	entry.FinishedAt = time.Now()
	if err := p.deps.History.Append(ctx, entry); err != nil {
		p.cfg.Logger.Warnf("append history for %s: %v", entry.SourceURL, err)
	}
}

// ArchiveKeyPrefix is the object-storage prefix a task archives under. The
// facade uses the same layout to purge a deleted task's objects.
func ArchiveKeyPrefix(base, taskID string) string {
	return path.Join(strings.Trim(base, "/"), taskID)
}

// archive pushes the downloaded file to object storage when configured.
// Best-effort: a failed upload never fails the video.
func (p *Processor) archive(ctx context.Context, logger *logrus.Entry, task *domain.Task, video *domain.Video) {
	if p.deps.Archive == nil || video.FilePath == "" {
		return
	}
	dest, err := p.deps.Archive.UploadFile(ctx, video.FilePath, storage.UploadOptions{
		KeyPrefix: ArchiveKeyPrefix(p.cfg.ArchivePrefix, task.ID),
	})
	if err != nil {
		logger.Warnf("archive upload: %v", err)
		return
	}
	logger.Infof("archived to %s", dest)
}
