package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, url, goal, owner string) (Task, error)
	Get(ctx context.Context, id string) (Task, error)
	Update(ctx context.Context, id string, patch Patch) (Task, error)
	Delete(ctx context.Context, id string) error
	MarkRunning(ctx context.Context, id string) error
	Finish(ctx context.Context, id string, status Status, result json.RawMessage, ranAt time.Time) error
}

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) SQLStore {
	return SQLStore{db: db, now: time.Now}
}

const selectTask = `SELECT id, url, goal, status, owner, result, COALESCE(last_ran, ''), created_at, updated_at FROM tasks WHERE id = ?;`

func (s SQLStore) Create(ctx context.Context, url, goal, owner string) (Task, error) {
	url, goal = strings.TrimSpace(url), strings.TrimSpace(goal)
	if url == "" || goal == "" {
		return Task{}, ErrMissingURLOrGoal
	}

	now := s.timestamp()
	out := Task{
		ID:        uuid.NewString(),
		URL:       url,
		Goal:      goal,
		Status:    StatusCreated,
		Owner:     strings.ToLower(strings.TrimSpace(owner)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	query := `INSERT INTO tasks (id, url, goal, status, owner, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?);`
	if _, err := s.db.ExecContext(ctx, query, out.ID, out.URL, out.Goal, string(out.Status), out.Owner, out.CreatedAt, out.UpdatedAt); err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	return out, nil
}

func (s SQLStore) Get(ctx context.Context, id string) (Task, error) {
	var (
		out    Task
		status string
		result sql.NullString
	)
	err := s.db.QueryRowContext(ctx, selectTask, id).Scan(
		&out.ID,
		&out.URL,
		&out.Goal,
		&status,
		&out.Owner,
		&result,
		&out.LastRan,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	out.Status = Status(status)
	if result.Valid && result.String != "" {
		out.Result = json.RawMessage(result.String)
	}
	return out, nil
}

func (s SQLStore) Update(ctx context.Context, id string, patch Patch) (Task, error) {
	if patch.empty() {
		return Task{}, ErrNothingToUpdate
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if current.Status == StatusRunning {
		return Task{}, ErrAlreadyRunning
	}

	next := patch.apply(current)
	next.UpdatedAt = s.timestamp()
	query := `UPDATE tasks SET url = ?, goal = ?, status = ?, result = ?, updated_at = ? WHERE id = ? AND status = ?;`
	res, err := s.db.ExecContext(ctx, query, next.URL, next.Goal, string(next.Status), nullableJSON(next.Result), next.UpdatedAt, id, string(current.Status))
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		// The task started running or was deleted between the read and the write.
		return Task{}, ErrAlreadyRunning
	}
	return next, nil
}

func (s SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRunning claims the task for a run. Only one run may hold a task at a time.
func (s SQLStore) MarkRunning(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status != ?;`,
		string(StatusRunning), s.timestamp(), id, string(StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("mark task running: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark task running: %w", err)
	}
	if affected == 1 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyRunning
}

func (s SQLStore) Finish(ctx context.Context, id string, status Status, result json.RawMessage, ranAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, result = ?, last_ran = ?, updated_at = ? WHERE id = ?;`,
		string(status), nullableJSON(result), ranAt.UTC().Format(time.RFC3339), s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FailInterrupted marks every task still claimed as running as failed. Run
// it at startup: no run can be in flight yet, so any running task was
// orphaned by a crash or a failed write.
func (s SQLStore) FailInterrupted(ctx context.Context) (int64, error) {
	result, err := json.Marshal(map[string]string{"error": InterruptedMessage})
	if err != nil {
		return 0, fmt.Errorf("encode interrupted result: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, result = ?, updated_at = ? WHERE status = ?;`,
		string(StatusFailed), string(result), s.timestamp(), string(StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted tasks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail interrupted tasks: %w", err)
	}
	return affected, nil
}

func (s SQLStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
