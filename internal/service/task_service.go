package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/policy"
	"github.com/geocoder89/taskhub/internal/utils"
)

type TaskStore interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	GetByID(ctx context.Context, id string) (task.Task, error)
	List(ctx context.Context, q task.Query) ([]task.Task, error)
	Update(ctx context.Context, t task.Task) (task.Task, error)
	Delete(ctx context.Context, id string) error
}

type TaskService struct {
	store TaskStore
	log   *slog.Logger
	now   func() time.Time
}

func NewTaskService(store TaskStore, log *slog.Logger) *TaskService {
	if log == nil {
		log = slog.Default()
	}

	return &TaskService{store: store, log: log, now: time.Now}
}

func (s *TaskService) Create(ctx context.Context, p user.Principal, req task.CreateTaskRequest) (task.Task, error) {
	t, err := task.NewFromCreateRequest(p.ID, req, s.now())
	if err != nil {
		return task.Task{}, err
	}

	created, err := s.store.Create(ctx, t)
	if err != nil {
		return task.Task{}, apperr.Internal("Could not create task", fmt.Errorf("create task: %w", err))
	}

	s.log.InfoContext(ctx, "task.create", "task_id", created.ID, "user_id", p.ID)

	return created, nil
}

// List never returns tasks outside the principal's scope: the ownership
// constraint is part of the query handed to the store.
func (s *TaskService) List(ctx context.Context, p user.Principal, f task.Filter) ([]task.Task, error) {
	q := policy.ScopeQuery(p, f.Query())

	items, err := s.store.List(ctx, q)
	if err != nil {
		return nil, apperr.Internal("Could not list tasks", fmt.Errorf("list tasks: %w", err))
	}

	return items, nil
}

func (s *TaskService) GetByID(ctx context.Context, p user.Principal, id string) (task.Task, error) {
	return s.authorized(ctx, p, id, policy.OpRead)
}

func (s *TaskService) Update(ctx context.Context, p user.Principal, id string, req task.UpdateTaskRequest) (task.Task, error) {
	current, err := s.authorized(ctx, p, id, policy.OpUpdate)
	if err != nil {
		return task.Task{}, err
	}

	merged, err := task.ApplyUpdate(current, req, s.now())
	if err != nil {
		return task.Task{}, err
	}

	updated, err := s.store.Update(ctx, merged)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return task.Task{}, apperr.NotFound("Task not found")
		}
		return task.Task{}, apperr.Internal("Could not update task", fmt.Errorf("update task: %w", err))
	}

	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, p user.Principal, id string) error {
	if _, err := s.authorized(ctx, p, id, policy.OpDelete); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return apperr.NotFound("Task not found")
		}
		return apperr.Internal("Could not delete task", fmt.Errorf("delete task: %w", err))
	}

	s.log.InfoContext(ctx, "task.delete", "task_id", id, "user_id", p.ID)

	return nil
}

// authorized loads the task and applies the access policy for op.
func (s *TaskService) authorized(ctx context.Context, p user.Principal, id string, op policy.Operation) (task.Task, error) {
	if !utils.IsUUID(id) {
		return task.Task{}, apperr.NotFound("Task not found")
	}

	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return task.Task{}, apperr.NotFound("Task not found")
		}
		return task.Task{}, apperr.Internal("Could not load task", fmt.Errorf("get task: %w", err))
	}

	if !policy.CanAccess(p, t, op) {
		s.log.WarnContext(ctx, "task.forbidden", "task_id", id, "user_id", p.ID, "op", op.String())
		return task.Task{}, apperr.Forbidden("Not authorized to access this task")
	}

	return t, nil
}
