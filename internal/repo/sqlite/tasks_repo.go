package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/observability"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TasksRepo struct {
	db   *gorm.DB
	prom *observability.Prom
}

func NewTasksRepo(db *gorm.DB, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{db: db, prom: prom}
}

var predicateColumns = map[task.Field]string{
	task.FieldOwner:    "user_id",
	task.FieldStatus:   "status",
	task.FieldPriority: "priority",
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	m := taskToModel(t)

	err := r.prom.ObserveDB(ctx, "tasks.create", func() error {
		return r.db.WithContext(ctx).Omit(clause.Associations).Create(&m).Error
	})
	if err != nil {
		return task.Task{}, err
	}

	return r.GetByID(ctx, t.ID)
}

func (r *TasksRepo) GetByID(ctx context.Context, id string) (task.Task, error) {
	var m taskModel
	err := r.prom.ObserveDB(ctx, "tasks.get", func() error {
		return r.db.WithContext(ctx).Preload("Owner").First(&m, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}

	return taskFromModel(m), nil
}

func (r *TasksRepo) List(ctx context.Context, q task.Query) ([]task.Task, error) {
	tx := r.db.WithContext(ctx).Model(&taskModel{}).Preload("Owner")

	for _, p := range q.Predicates() {
		col, ok := predicateColumns[p.Field]
		if !ok {
			return nil, fmt.Errorf("no column for predicate field %s", p.Field)
		}
		tx = tx.Where(col+" = ?", p.Value)
	}

	var rows []taskModel
	err := r.prom.ObserveDB(ctx, "tasks.list", func() error {
		return tx.Order("created_at DESC").Order("id DESC").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]task.Task, 0, len(rows))
	for _, m := range rows {
		out = append(out, taskFromModel(m))
	}

	return out, nil
}

// Update sets the mutable columns from t. A map is used so that zero values
// (empty description, cleared due date) are written too.
func (r *TasksRepo) Update(ctx context.Context, t task.Task) (task.Task, error) {
	err := r.prom.ObserveDB(ctx, "tasks.update", func() error {
		res := r.db.WithContext(ctx).Model(&taskModel{}).Where("id = ?", t.ID).Updates(map[string]any{
			"title":       t.Title,
			"description": t.Description,
			"status":      string(t.Status),
			"priority":    string(t.Priority),
			"due_date":    t.DueDate,
			"updated_at":  t.UpdatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return task.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}

	return r.GetByID(ctx, t.ID)
}

func (r *TasksRepo) Delete(ctx context.Context, id string) error {
	return r.prom.ObserveDB(ctx, "tasks.delete", func() error {
		res := r.db.WithContext(ctx).Delete(&taskModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return task.ErrNotFound
		}
		return nil
	})
}
