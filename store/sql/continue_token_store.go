package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-arcade/core"
)

// ContinueTokenStore persists one-time continue tokens. Consumption is a
// single conditional UPDATE so two concurrent redeems of the same token
// can never both succeed.
type ContinueTokenStore struct {
	db   *bun.DB
	repo repository.Repository[*continueTokenRecord]
}

func NewContinueTokenStore(db *bun.DB) (*ContinueTokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*continueTokenRecord](db, continueTokenHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid continue token repository wiring: %w", err)
		}
	}
	return &ContinueTokenStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *ContinueTokenStore) InsertToken(ctx context.Context, token core.ContinueToken) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: continue token store is not configured")
	}
	id := strings.TrimSpace(token.ID)
	if id == "" {
		id = uuid.NewString()
	}
	record := &continueTokenRecord{
		ID:          id,
		UserID:      strings.TrimSpace(token.UserID),
		Token:       strings.TrimSpace(token.Token),
		SaveVersion: token.SaveVersion,
		Consumed:    token.Consumed,
		CreatedAt:   token.CreatedAt.UTC(),
		ExpiresAt:   token.ExpiresAt.UTC(),
	}
	if record.UserID == "" || record.Token == "" {
		return fmt.Errorf("sqlstore: user id and token are required")
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *ContinueTokenStore) ConsumeToken(ctx context.Context, userID, token string, now time.Time) (core.ContinueToken, error) {
	if s == nil || s.db == nil {
		return core.ContinueToken{}, fmt.Errorf("sqlstore: continue token store is not configured")
	}
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)

	res, err := s.db.NewUpdate().
		Model((*continueTokenRecord)(nil)).
		Set("consumed = ?", true).
		Where("user_id = ?", userID).
		Where("token = ?", token).
		Where("consumed = ?", false).
		Where("expires_at > ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return core.ContinueToken{}, err
	}
	landed, err := rowLanded(res)
	if err != nil {
		return core.ContinueToken{}, err
	}
	// Zero rows covers unknown, expired, and already-consumed alike.
	if !landed {
		return core.ContinueToken{}, core.ErrNotFound
	}

	record := &continueTokenRecord{}
	err = s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ContinueToken{}, core.ErrNotFound
		}
		return core.ContinueToken{}, err
	}
	return continueTokenToDomain(record), nil
}

func (s *ContinueTokenStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: continue token store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*continueTokenRecord)(nil)).
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

func continueTokenToDomain(record *continueTokenRecord) core.ContinueToken {
	if record == nil {
		return core.ContinueToken{}
	}
	return core.ContinueToken{
		ID:          record.ID,
		UserID:      record.UserID,
		Token:       record.Token,
		SaveVersion: record.SaveVersion,
		Consumed:    record.Consumed,
		CreatedAt:   record.CreatedAt,
		ExpiresAt:   record.ExpiresAt,
	}
}

var _ core.ContinueTokenStore = (*ContinueTokenStore)(nil)
