package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-arcade/core"
)

// SessionStore persists save sessions keyed by user and opaque token.
type SessionStore struct {
	db *bun.DB
}

func NewSessionStore(db *bun.DB) (*SessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &SessionStore{db: db}, nil
}

func (s *SessionStore) InsertSession(ctx context.Context, session core.SaveSession) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	record := &saveSessionRecord{
		ID:        uuid.NewString(),
		UserID:    strings.TrimSpace(session.UserID),
		Token:     strings.TrimSpace(session.Token),
		ExpiresAt: session.ExpiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if record.UserID == "" || record.Token == "" {
		return fmt.Errorf("sqlstore: user id and token are required")
	}
	_, err := s.db.NewInsert().Model(record).Exec(ctx)
	return err
}

func (s *SessionStore) GetSession(ctx context.Context, userID, token string) (core.SaveSession, error) {
	if s == nil || s.db == nil {
		return core.SaveSession{}, fmt.Errorf("sqlstore: session store is not configured")
	}
	record := &saveSessionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", strings.TrimSpace(userID)).
		Where("?TableAlias.token = ?", strings.TrimSpace(token)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.SaveSession{}, core.ErrNotFound
		}
		return core.SaveSession{}, err
	}
	return core.SaveSession{
		UserID:    record.UserID,
		Token:     record.Token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, userID, token string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*saveSessionRecord)(nil)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("token = ?", strings.TrimSpace(token)).
		Exec(ctx)
	return err
}

func (s *SessionStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: session store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*saveSessionRecord)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

var _ core.SessionStore = (*SessionStore)(nil)
