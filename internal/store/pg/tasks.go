package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/hellotasks/internal/domain/repository"
)

const taskColumns = `id, owner_subject, title, description, due_date, priority, completed, attachment_url, created_at, updated_at`

// Tasks devuelve el repositorio de tareas sobre este pool.
func (s *Store) Tasks() repository.TaskRepository { return &taskRepo{s: s} }

type taskRepo struct{ s *Store }

func scanTask(row pgx.Row) (*repository.Task, error) {
	var (
		t        repository.Task
		id       uuid.UUID
		priority string
	)
	if err := row.Scan(&id, &t.OwnerSubject, &t.Title, &t.Description, &t.DueDate,
		&priority, &t.Completed, &t.AttachmentURL, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ID = id.String()
	t.Priority = repository.Priority(priority)
	return &t, nil
}

// parseID: un id que no es UUID no puede existir; se reporta como NotFound
// para no distinguirlo de una tarea ajena.
func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, repository.ErrNotFound
	}
	return u, nil
}

func mapPgErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
		case "23514", "22001":
			return fmt.Errorf("%w: %s", repository.ErrInvalidInput, pgErr.Message)
		}
	}
	return err
}

func (r *taskRepo) List(ctx context.Context, owner string, f repository.ListTasksFilter) ([]repository.Task, error) {
	const q = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE owner_subject = $1 AND ($2::boolean IS NULL OR completed = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`

	rows, err := r.s.pool.Query(ctx, q, owner, f.Completed, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.Task, 0, f.Limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *taskRepo) Get(ctx context.Context, owner, id string) (*repository.Task, error) {
	tid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_subject = $2`

	t, err := scanTask(r.s.pool.QueryRow(ctx, q, tid, owner))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return t, nil
}

func (r *taskRepo) Create(ctx context.Context, owner string, in repository.CreateTaskInput) (*repository.Task, error) {
	const q = `
		INSERT INTO tasks (id, owner_subject, title, description, due_date, priority, completed, attachment_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING ` + taskColumns

	now := time.Now().UTC()
	t, err := scanTask(r.s.pool.QueryRow(ctx, q,
		uuid.New(), owner, in.Title, in.Description, in.DueDate,
		string(in.Priority), in.Completed, in.AttachmentURL, now,
	))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return t, nil
}

func (r *taskRepo) Update(ctx context.Context, owner, id string, p repository.TaskPatch) (*repository.Task, error) {
	tid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	const q = `
		UPDATE tasks SET
			title          = COALESCE($3, title),
			description    = COALESCE($4, description),
			due_date       = CASE WHEN $5::boolean THEN NULL ELSE COALESCE($6, due_date) END,
			priority       = COALESCE($7, priority),
			completed      = COALESCE($8, completed),
			attachment_url = COALESCE($9, attachment_url),
			updated_at     = NOW()
		WHERE id = $1 AND owner_subject = $2
		RETURNING ` + taskColumns

	var priority *string
	if p.Priority != nil {
		s := string(*p.Priority)
		priority = &s
	}

	t, err := scanTask(r.s.pool.QueryRow(ctx, q,
		tid, owner, p.Title, p.Description, p.ClearDueDate, p.DueDate,
		priority, p.Completed, p.AttachmentURL,
	))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return t, nil
}

func (r *taskRepo) Delete(ctx context.Context, owner, id string) error {
	tid, err := parseID(id)
	if err != nil {
		return err
	}
	const q = `DELETE FROM tasks WHERE id = $1 AND owner_subject = $2`

	tag, err := r.s.pool.Exec(ctx, q, tid, owner)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
