package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/UoduodihsLab/Tennel/internal/domain"
)

const scheduleCols = `id,user_id,title,kind,hour,minute,second,args,status,created_at,updated_at`

func scanSchedule(row interface{ Scan(...any) error }) (domain.Schedule, error) {
	var sc domain.Schedule
	var args []byte
	if err := row.Scan(&sc.ID, &sc.UserID, &sc.Title, &sc.Kind, &sc.Hour, &sc.Minute, &sc.Second, &args, &sc.Status, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return domain.Schedule{}, err
	}
	sc.Args = args
	return sc, nil
}

func (s *Store) CreateSchedule(ctx context.Context, sc domain.Schedule) (string, error) {
	id := sc.ID
	if id == "" {
		id = "sch_" + uuid.NewString()
	}
	if sc.Status == "" {
		sc.Status = domain.SchedulePending
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO schedules (id,user_id,title,kind,hour,minute,second,args,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)
`, id, sc.UserID, sc.Title, string(sc.Kind), sc.Hour, sc.Minute, sc.Second, []byte(sc.Args), string(sc.Status))
	return id, err
}

// GetScheduleOwned fetches a schedule scoped to its owner; a row owned by
// another user reads as absent.
func (s *Store) GetScheduleOwned(ctx context.Context, id, userID string) (domain.Schedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleCols+` FROM schedules WHERE id=? AND user_id=?`, id, userID)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Schedule{}, fmt.Errorf("%w: schedule %s", domain.ErrNotFound, id)
	}
	return sc, err
}

func (s *Store) ListSchedules(ctx context.Context, userID string) ([]domain.Schedule, error) {
	return s.listSchedules(ctx, `WHERE user_id=? ORDER BY created_at DESC`, userID)
}

// ListAllSchedules returns every schedule row, for shutdown reconciliation.
func (s *Store) ListAllSchedules(ctx context.Context) ([]domain.Schedule, error) {
	return s.listSchedules(ctx, `ORDER BY created_at`)
}

func (s *Store) listSchedules(ctx context.Context, where string, args ...any) ([]domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scheduleCols+` FROM schedules `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) SetScheduleStatus(ctx context.Context, id string, status domain.ScheduleStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET status=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, string(status), id)
	return err
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id=?`, id)
	return err
}
