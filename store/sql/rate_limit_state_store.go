package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-arcade/ratelimit"
)

// RateLimitStateStore persists per-user window counters so throttling
// survives process restarts.
type RateLimitStateStore struct {
	db *bun.DB
}

func NewRateLimitStateStore(db *bun.DB) (*RateLimitStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &RateLimitStateStore{db: db}, nil
}

func (s *RateLimitStateStore) Get(ctx context.Context, key ratelimit.Key) (ratelimit.State, error) {
	if s == nil || s.db == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	record := &rateLimitStateRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.operation = ?", key.Operation).
		Where("?TableAlias.user_id = ?", key.UserID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ratelimit.State{}, ratelimit.ErrStateNotFound
		}
		return ratelimit.State{}, err
	}
	return rateLimitStateToDomain(record), nil
}

func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &rateLimitStateRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.operation = ?", state.Key.Operation).
			Where("?TableAlias.user_id = ?", state.Key.UserID).
			Limit(1).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if errors.Is(err, sql.ErrNoRows) {
			record := &rateLimitStateRecord{
				ID:          uuid.NewString(),
				Operation:   state.Key.Operation,
				UserID:      state.Key.UserID,
				Count:       state.Count,
				WindowStart: state.WindowStart.UTC(),
				CreatedAt:   state.UpdatedAt.UTC(),
				UpdatedAt:   state.UpdatedAt.UTC(),
			}
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		}

		existing.Count = state.Count
		existing.WindowStart = state.WindowStart.UTC()
		existing.UpdatedAt = state.UpdatedAt.UTC()
		_, updateErr := tx.NewUpdate().
			Model(existing).
			Where("id = ?", existing.ID).
			Exec(ctx)
		return updateErr
	})
}

func rateLimitStateToDomain(record *rateLimitStateRecord) ratelimit.State {
	if record == nil {
		return ratelimit.State{}
	}
	return ratelimit.State{
		Key:         ratelimit.Key{Operation: record.Operation, UserID: record.UserID},
		Count:       record.Count,
		WindowStart: record.WindowStart,
		UpdatedAt:   record.UpdatedAt,
	}
}

var _ ratelimit.StateStore = (*RateLimitStateStore)(nil)
