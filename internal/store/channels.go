package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/UoduodihsLab/Tennel/internal/domain"
)

const channelCols = `id,user_id,tid,title,username,description,photo,lang,primary_links,banned,created_at,updated_at`

func scanChannel(row interface{ Scan(...any) error }) (domain.Channel, error) {
	var c domain.Channel
	var links string
	var banned int
	if err := row.Scan(&c.ID, &c.UserID, &c.TID, &c.Title, &c.Username, &c.Description, &c.Photo, &c.Lang, &links, &banned, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Channel{}, err
	}
	c.Banned = banned != 0
	if links != "" {
		_ = json.Unmarshal([]byte(links), &c.PrimaryLinks)
	}
	return c, nil
}

// UpsertChannelByTID creates or updates a channel row keyed by its remote
// TID. Returns the row id and whether a new row was created.
func (s *Store) UpsertChannelByTID(ctx context.Context, c domain.Channel) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id FROM channels WHERE tid=?`, c.TID)
	var id string
	err := row.Scan(&id)
	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
UPDATE channels SET title=?, username=?, photo=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`,
			c.Title, c.Username, c.Photo, id)
		return id, false, err
	case errors.Is(err, sql.ErrNoRows):
		id = c.ID
		if id == "" {
			id = "ch_" + uuid.NewString()
		}
		links, _ := json.Marshal(c.PrimaryLinks)
		if c.PrimaryLinks == nil {
			links = []byte("[]")
		}
		_, err = s.db.ExecContext(ctx, `
INSERT INTO channels (id,user_id,tid,title,username,description,photo,lang,primary_links,banned,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)`,
			id, c.UserID, c.TID, c.Title, c.Username, c.Description, c.Photo, c.Lang, string(links), boolInt(c.Banned))
		return id, true, err
	default:
		return "", false, err
	}
}

func (s *Store) GetChannel(ctx context.Context, id string) (domain.Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelCols+` FROM channels WHERE id=?`, id)
	c, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Channel{}, fmt.Errorf("%w: channel %s", domain.ErrNotFound, id)
	}
	return c, err
}

func (s *Store) ListChannels(ctx context.Context, userID string) ([]domain.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+channelCols+` FROM channels WHERE user_id=? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetChannelUsername records a username applied remotely.
func (s *Store) SetChannelUsername(ctx context.Context, id, username string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET username=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, username, id)
	return err
}

func (s *Store) SetChannelPhoto(ctx context.Context, id, photo string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET photo=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, photo, id)
	return err
}

func (s *Store) SetChannelDescription(ctx context.Context, id, description string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET description=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, description, id)
	return err
}

// BindAccountChannel records which account administers a channel, with the
// access hash needed for mutations. Re-binding the same pair is a no-op.
func (s *Store) BindAccountChannel(ctx context.Context, b domain.ChannelBinding) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO account_channels (account_id,channel_id,access_hash,role)
VALUES (?,?,?,?)
ON CONFLICT(account_id,channel_id) DO UPDATE SET access_hash=excluded.access_hash`,
		b.AccountID, b.ChannelID, b.AccessHash, int(b.Role))
	return err
}

// ChannelBindingTarget is everything a remote mutation against a bound
// channel needs: the channel row, the owning account and the access hash.
type ChannelBindingTarget struct {
	Channel    domain.Channel
	Account    domain.Account
	AccessHash int64
}

// GetChannelBinding resolves a channel id to its administering account.
func (s *Store) GetChannelBinding(ctx context.Context, channelID string) (ChannelBindingTarget, error) {
	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return ChannelBindingTarget{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT account_id, access_hash FROM account_channels WHERE channel_id=? LIMIT 1`, channelID)
	var accountID string
	var accessHash int64
	if err := row.Scan(&accountID, &accessHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ChannelBindingTarget{}, fmt.Errorf("%w: binding for channel %s", domain.ErrNotFound, channelID)
		}
		return ChannelBindingTarget{}, err
	}

	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return ChannelBindingTarget{}, err
	}
	return ChannelBindingTarget{Channel: channel, Account: account, AccessHash: accessHash}, nil
}
