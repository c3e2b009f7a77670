package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/UoduodihsLab/Tennel/internal/domain"
)

func (s *Store) AddMedia(ctx context.Context, m domain.Media) (string, error) {
	id := m.ID
	if id == "" {
		id = "med_" + uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO medias (id,user_id,kind,path,created_at) VALUES (?,?,?,?,CURRENT_TIMESTAMP)`,
		id, m.UserID, string(m.Kind), m.Path)
	return id, err
}

// RandomMediaPath picks one of the user's media files of the given kind at
// random, for publish attachments.
func (s *Store) RandomMediaPath(ctx context.Context, userID string, kind domain.MediaKind) (string, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT path FROM medias WHERE user_id=? AND kind=? ORDER BY RANDOM() LIMIT 1`, userID, string(kind))
	var path string
	if err := row.Scan(&path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s media for user %s", domain.ErrNotFound, kind, userID)
		}
		return "", err
	}
	return path, nil
}
