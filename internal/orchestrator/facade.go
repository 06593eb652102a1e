package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"channel-archiver/internal/domain"
	"channel-archiver/internal/repository"
	"channel-archiver/internal/service"
	"channel-archiver/internal/storage"
)

// Orchestrator is the task lifecycle facade. One instance is constructed per
// process and shared, so every creation and cancellation observes the same
// store and the same processor.
type Orchestrator struct {
	tasks         service.TaskService
	processor     *Processor
	archive       storage.Service
	archivePrefix string
	logger        *logrus.Logger
}

// NewOrchestrator builds the facade. archive may be nil when archival is not
// configured; archivePrefix must match the processor's ArchivePrefix so
// deletion purges the same keys the processor wrote.
func NewOrchestrator(tasks service.TaskService, processor *Processor, archive storage.Service, archivePrefix string, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		tasks:         tasks,
		processor:     processor,
		archive:       archive,
		archivePrefix: archivePrefix,
		logger:        logger,
	}
}

// CreateTask persists a new acquisition task and starts processing it in the
// background. The returned task reflects the freshly created row.
func (o *Orchestrator) CreateTask(ctx context.Context, authorURL, author string, platform domain.Platform) (*domain.Task, error) {
	return o.create(ctx, service.CreateTaskInput{
		AuthorURL: authorURL,
		Author:    author,
		Platform:  platform,
	})
}

// CreatePlaylistTask is CreateTask with a target collection: every
// successfully downloaded video is linked into it.
func (o *Orchestrator) CreatePlaylistTask(ctx context.Context, authorURL, author string, platform domain.Platform, collectionID string) (*domain.Task, error) {
	return o.create(ctx, service.CreateTaskInput{
		AuthorURL:    authorURL,
		Author:       author,
		Platform:     platform,
		CollectionID: collectionID,
	})
}

func (o *Orchestrator) create(ctx context.Context, input service.CreateTaskInput) (*domain.Task, error) {
	task, err := o.tasks.CreateTask(ctx, input)
	if err != nil {
		return nil, err
	}
	o.logger.WithField("task_id", task.ID).Infof("created acquisition task for %s", task.AuthorURL)
	go o.run(task.ID)
	return task, nil
}

// CancelTask cancels the task, surfacing an explicit error for unknown ids.
func (o *Orchestrator) CancelTask(ctx context.Context, id string) error {
	if _, err := o.tasks.GetTask(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("task %s not found: %w", id, repository.ErrNotFound)
		}
		return err
	}
	return o.tasks.CancelTask(ctx, id)
}

// PauseTask marks the task paused; the processing loop observes it at the
// next liveness checkpoint and stops.
func (o *Orchestrator) PauseTask(ctx context.Context, id string) error {
	task, err := o.tasks.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Status != domain.TaskStatusActive {
		return fmt.Errorf("task %s is %s, cannot pause", id, task.Status)
	}
	return o.tasks.PauseTask(ctx, id)
}

// ResumeTask reactivates a paused task and re-invokes processing on it.
func (o *Orchestrator) ResumeTask(ctx context.Context, id string) error {
	task, err := o.tasks.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Status != domain.TaskStatusPaused {
		return fmt.Errorf("task %s is %s, cannot resume", id, task.Status)
	}
	if err := o.tasks.ActivateTask(ctx, id); err != nil {
		return err
	}
	go o.run(id)
	return nil
}

// DeleteTask removes the record; only meaningful for terminal tasks.
// Archived objects are purged best-effort once the row is gone.
func (o *Orchestrator) DeleteTask(ctx context.Context, id string) error {
	task, err := o.tasks.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if !task.Status.Terminal() {
		return fmt.Errorf("task %s is %s, cancel it before deleting", id, task.Status)
	}
	if err := o.tasks.DeleteTask(ctx, id); err != nil {
		return err
	}
	if o.archive != nil {
		prefix := ArchiveKeyPrefix(o.archivePrefix, id)
		if err := o.archive.DeletePrefix(ctx, "", prefix); err != nil {
			o.logger.WithField("task_id", id).Warnf("purge archived objects under %s: %v", prefix, err)
		}
	}
	return nil
}

// Resume restarts processing for tasks left active by a previous process.
func (o *Orchestrator) Resume(ctx context.Context) error {
	tasks, err := o.tasks.ListTasks(ctx)
	if err != nil {
		return err
	}
	for i := range tasks {
		if tasks[i].Status == domain.TaskStatusActive {
			o.logger.WithField("task_id", tasks[i].ID).Info("resuming task from previous run")
			go o.run(tasks[i].ID)
		}
	}
	return nil
}

func (o *Orchestrator) run(id string) {
	if err := o.processor.Process(context.Background(), id); err != nil {
		o.logger.WithField("task_id", id).Warnf("processing pass aborted: %v", err)
	}
}
