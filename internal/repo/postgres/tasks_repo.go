package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, prom: prom}
}

// every read joins the owner so responses carry the owner summary
const taskSelect = `SELECT t.id, t.title, t.description, t.status, t.priority, t.user_id,
	t.due_date, t.created_at, t.updated_at, u.id, u.name, u.email
FROM tasks t
JOIN users u ON u.id = t.user_id`

var predicateColumns = map[task.Field]string{
	task.FieldOwner:    "t.user_id",
	task.FieldStatus:   "t.status",
	task.FieldPriority: "t.priority",
}

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task
	var owner task.OwnerSummary

	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.OwnerID,
		&t.DueDate,
		&t.CreatedAt,
		&t.UpdatedAt,
		&owner.ID,
		&owner.Name,
		&owner.Email,
	)
	if err != nil {
		return task.Task{}, err
	}

	t.Owner = &owner
	return t, nil
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	err := r.prom.ObserveDB(ctx, "tasks.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO tasks (id, title, description, status, priority, user_id, due_date, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			t.ID, t.Title, t.Description, t.Status, t.Priority, t.OwnerID, t.DueDate, t.CreatedAt, t.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return task.Task{}, err
	}

	return r.GetByID(ctx, t.ID)
}

func (r *TasksRepo) GetByID(ctx context.Context, id string) (task.Task, error) {
	var t task.Task
	err := r.prom.ObserveDB(ctx, "tasks.get", func() error {
		var err error
		t, err = scanTask(r.pool.QueryRow(ctx, taskSelect+` WHERE t.id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}

	return t, nil
}

// listQuery renders q's predicates as a parameterized WHERE clause. An
// unmapped field is an error rather than a dropped constraint.
func listQuery(q task.Query) (string, []any, error) {
	var conds []string
	var args []any

	for _, p := range q.Predicates() {
		col, ok := predicateColumns[p.Field]
		if !ok {
			return "", nil, fmt.Errorf("no column for predicate field %s", p.Field)
		}
		args = append(args, p.Value)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	query := taskSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// stable ordering, newest first
	query += " ORDER BY t.created_at DESC, t.id DESC"

	return query, args, nil
}

func (r *TasksRepo) List(ctx context.Context, q task.Query) ([]task.Task, error) {
	query, args, err := listQuery(q)
	if err != nil {
		return nil, err
	}

	out := make([]task.Task, 0)
	err = r.prom.ObserveDB(ctx, "tasks.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Update writes the mutable columns only; user_id and created_at are never touched.
func (r *TasksRepo) Update(ctx context.Context, t task.Task) (task.Task, error) {
	err := r.prom.ObserveDB(ctx, "tasks.update", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE tasks
			    SET title = $2,
			        description = $3,
			        status = $4,
			        priority = $5,
			        due_date = $6,
			        updated_at = $7
			  WHERE id = $1`,
			t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
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
		tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return err
		}

		// nothing deleted means the id did not exist
		if tag.RowsAffected() == 0 {
			return task.ErrNotFound
		}
		return nil
	})
}
