package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"channel-archiver/internal/domain"
	"channel-archiver/internal/repository"
)

// CreateTaskInput describes a new acquisition task.
type CreateTaskInput struct {
	AuthorURL    string
	Author       string
	Platform     domain.Platform
	CollectionID string
}

// TaskService is the task store: the single source of truth for task status
// and progress, consulted by the processor as the pause/cancel signal.
type TaskService interface {
	CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	UpdateProgress(ctx context.Context, id string, update repository.ProgressUpdate) error
	UpdateTotalVideos(ctx context.Context, id string, total int) error
	CompleteTask(ctx context.Context, id string) error
	CancelTask(ctx context.Context, id string) error
	CancelTaskWithError(ctx context.Context, id, message string) error
	PauseTask(ctx context.Context, id string) error
	ActivateTask(ctx context.Context, id string) error
	DeleteTask(ctx context.Context, id string) error
}

type taskService struct {
	tasks repository.TaskRepository
}

func NewTaskService(tasks repository.TaskRepository) TaskService {
	return &taskService{tasks: tasks}
}

func (s *taskService) CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	if input.AuthorURL == "" {
		return nil, errors.New("author url is required")
	}
	if input.Platform == "" {
		return nil, errors.New("platform is required")
	}

	task := &domain.Task{
		ID:           uuid.NewString(),
		AuthorURL:    input.AuthorURL,
		Author:       input.Author,
		Platform:     input.Platform,
		Status:       domain.TaskStatusActive,
		CollectionID: input.CollectionID,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return s.tasks.Get(ctx, id)
}

func (s *taskService) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.tasks.List(ctx)
}

func (s *taskService) UpdateProgress(ctx context.Context, id string, update repository.ProgressUpdate) error {
	return s.tasks.UpdateProgress(ctx, id, update)
}

func (s *taskService) UpdateTotalVideos(ctx context.Context, id string, total int) error {
	return s.tasks.UpdateTotalVideos(ctx, id, total)
}

func (s *taskService) CompleteTask(ctx context.Context, id string) error {
	return s.tasks.Complete(ctx, id, time.Now())
}

func (s *taskService) CancelTask(ctx context.Context, id string) error {
	return s.tasks.UpdateStatus(ctx, id, domain.TaskStatusCancelled, nil)
}

func (s *taskService) CancelTaskWithError(ctx context.Context, id, message string) error {
	return s.tasks.UpdateStatus(ctx, id, domain.TaskStatusCancelled, &message)
}

func (s *taskService) PauseTask(ctx context.Context, id string) error {
	return s.tasks.UpdateStatus(ctx, id, domain.TaskStatusPaused, nil)
}

func (s *taskService) ActivateTask(ctx context.Context, id string) error {
	return s.tasks.UpdateStatus(ctx, id, domain.TaskStatusActive, nil)
}

func (s *taskService) DeleteTask(ctx context.Context, id string) error {
	return s.tasks.Delete(ctx, id)
}

var _ TaskService = (*taskService)(nil)
