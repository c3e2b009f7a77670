package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/UoduodihsLab/Tennel/internal/domain"
)

// CreateAccount inserts a new account. The session name defaults to the
// phone number. A duplicate phone fails with ErrAlreadyExists.
func (s *Store) CreateAccount(ctx context.Context, a domain.Account) (string, error) {
	id := a.ID
	if id == "" {
		id = "acc_" + uuid.NewString()
	}
	if a.SessionName == "" {
		a.SessionName = a.Phone
	}

	row := s.db.QueryRowContext(ctx, `SELECT id FROM accounts WHERE phone=?`, a.Phone)
	var existing string
	if err := row.Scan(&existing); err == nil {
		return "", fmt.Errorf("%w: account with phone %s", domain.ErrAlreadyExists, a.Phone)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO accounts (id,user_id,tid,phone,username,session_name,authenticated,online,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,0,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)
`, id, a.UserID, a.TID, a.Phone, a.Username, a.SessionName, boolInt(a.Authenticated))
	return id, err
}

const accountCols = `id,user_id,tid,phone,username,session_name,authenticated,online,created_at,updated_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var a domain.Account
	var auth, online int
	if err := row.Scan(&a.ID, &a.UserID, &a.TID, &a.Phone, &a.Username, &a.SessionName, &auth, &online, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Account{}, err
	}
	a.Authenticated = auth != 0
	a.Online = online != 0
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE id=?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	return a, err
}

func (s *Store) GetAccountBySession(ctx context.Context, sessionName string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE session_name=?`, sessionName)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionName)
	}
	return a, err
}

func (s *Store) listAccounts(ctx context.Context, where string, args ...any) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountCols+` FROM accounts `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	return s.listAccounts(ctx, `WHERE user_id=? ORDER BY created_at`, userID)
}

func (s *Store) ListAuthenticated(ctx context.Context) ([]domain.Account, error) {
	return s.listAccounts(ctx, `WHERE authenticated=1 ORDER BY created_at`)
}

func (s *Store) ListOnline(ctx context.Context) ([]domain.Account, error) {
	return s.listAccounts(ctx, `WHERE online=1 ORDER BY created_at`)
}

func (s *Store) SetAccountOnline(ctx context.Context, id string, online bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET online=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, boolInt(online), id)
	return err
}

func (s *Store) SetAccountAuthenticated(ctx context.Context, id string, authenticated bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET authenticated=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, boolInt(authenticated), id)
	return err
}

// CountAccountChannels counts channels bound to an account, for the
// per-account creation ceiling.
func (s *Store) CountAccountChannels(ctx context.Context, accountID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM account_channels WHERE account_id=?`, accountID)
	var n int
	err := row.Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
