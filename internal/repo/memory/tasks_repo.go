package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/geocoder89/taskhub/internal/domain/task"
)

type TasksRepo struct {
	mu    sync.RWMutex
	items map[string]task.Task
	users *UsersRepo
}

// NewTasksRepo returns a task store that resolves owner summaries from users.
func NewTasksRepo(users *UsersRepo) *TasksRepo {
	return &TasksRepo{
		items: make(map[string]task.Task),
		users: users,
	}
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	t.Owner = nil

	r.mu.Lock()
	r.items[t.ID] = t
	r.mu.Unlock()

	return r.withOwner(ctx, t), nil
}

func (r *TasksRepo) GetByID(ctx context.Context, id string) (task.Task, error) {
	r.mu.RLock()
	t, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return task.Task{}, task.ErrNotFound
	}

	return r.withOwner(ctx, t), nil
}

func (r *TasksRepo) List(ctx context.Context, q task.Query) ([]task.Task, error) {
	r.mu.RLock()
	out := make([]task.Task, 0, len(r.items))
	for _, t := range r.items {
		if q.Matches(t) {
			out = append(out, t)
		}
	}
	r.mu.RUnlock()

	// newest first, id as a tie-breaker so the order is stable
	slices.SortFunc(out, func(a, b task.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	for i := range out {
		out[i] = r.withOwner(ctx, out[i])
	}

	return out, nil
}

func (r *TasksRepo) Update(ctx context.Context, t task.Task) (task.Task, error) {
	r.mu.Lock()
	existing, ok := r.items[t.ID]
	if !ok {
		r.mu.Unlock()
		return task.Task{}, task.ErrNotFound
	}

	t.OwnerID = existing.OwnerID
	t.CreatedAt = existing.CreatedAt
	t.Owner = nil
	r.items[t.ID] = t
	r.mu.Unlock()

	return r.withOwner(ctx, t), nil
}

func (r *TasksRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return task.ErrNotFound
	}

	delete(r.items, id)
	return nil
}

func (r *TasksRepo) withOwner(ctx context.Context, t task.Task) task.Task {
	if r.users == nil {
		return t
	}

	u, err := r.users.GetByID(ctx, t.OwnerID)
	if err != nil {
		return t
	}

	t.Owner = &task.OwnerSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	return t
}
