package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/UoduodihsLab/Tennel/internal/domain"
)

const taskCols = `id,user_id,title,kind,args,status,total,success,failure,logs,created_at,updated_at`

func scanTask(row interface{ Scan(...any) error }) (domain.Task, error) {
	var t domain.Task
	var args []byte
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Kind, &args, &t.Status, &t.Total, &t.Success, &t.Failure, &t.Logs, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Task{}, err
	}
	t.Args = args
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, t domain.Task) (string, error) {
	id := t.ID
	if id == "" {
		id = "tsk_" + uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.TaskPending
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tasks (id,user_id,title,kind,args,status,total,success,failure,logs,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,0,0,'',CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)
`, id, t.UserID, t.Title, string(t.Kind), []byte(t.Args), string(t.Status), t.Total)
	return id, err
}

func (s *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, fmt.Errorf("%w: task %s", domain.ErrNotFound, id)
	}
	return t, err
}

// GetTaskOwned fetches a task scoped to its owner. A task owned by another
// user is reported as permission denied, not absence.
func (s *Store) GetTaskOwned(ctx context.Context, id, userID string) (domain.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if t.UserID != userID {
		return domain.Task{}, fmt.Errorf("%w: task %s", domain.ErrPermissionDenied, id)
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE user_id=? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SetTaskStatus(ctx context.Context, id string, status domain.TaskStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, string(status), id)
	return err
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	return err
}

// IncrementTaskSuccess bumps the success counter and appends a log line in a
// single atomic statement, so concurrent workers on the same task never lose
// an update.
func (s *Store) IncrementTaskSuccess(ctx context.Context, id, logLine string) error {
	return s.incrementTask(ctx, id, "success", logLine)
}

func (s *Store) IncrementTaskFailure(ctx context.Context, id, logLine string) error {
	return s.incrementTask(ctx, id, "failure", logLine)
}

func (s *Store) incrementTask(ctx context.Context, id, column, logLine string) error {
	// column is one of "success"/"failure", never caller input.
	q := fmt.Sprintf(`
UPDATE tasks
SET %s = %s + 1,
    logs = CASE WHEN logs = '' THEN ? ELSE logs || char(10) || ? END,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`, column, column)
	res, err := s.db.ExecContext(ctx, q, logLine, logLine, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, id)
	}
	return nil
}

// CompleteTaskIfDone flips the task to completed exactly when
// success+failure has reached total. Idempotent: redundant calls are no-ops.
// Returns whether the flip happened on this call.
func (s *Store) CompleteTaskIfDone(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE tasks SET status='completed', updated_at=CURRENT_TIMESTAMP
WHERE id=? AND status IN ('pending','running') AND success + failure >= total`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FailRunningTasks marks every running task failed. Used at shutdown: queue
// contents are lost across restarts, so an in-flight task cannot resume.
func (s *Store) FailRunningTasks(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE tasks SET status='failed', updated_at=CURRENT_TIMESTAMP WHERE status='running'`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
