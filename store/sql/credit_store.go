package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-arcade/core"
)

// CreditStore persists balances and the transaction log. Every balance
// mutation is one conditional UPDATE; the affected-row count is the only
// signal for whether the precondition held.
type CreditStore struct {
	db   *bun.DB
	repo repository.Repository[*creditTransactionRecord]
}

func NewCreditStore(db *bun.DB) (*CreditStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*creditTransactionRecord](db, creditTransactionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credit transaction repository wiring: %w", err)
		}
	}
	return &CreditStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *CreditStore) GetCredits(ctx context.Context, userID string) (core.Credits, error) {
	if s == nil || s.db == nil {
		return core.Credits{}, fmt.Errorf("sqlstore: credit store is not configured")
	}
	record := &creditRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", strings.TrimSpace(userID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Credits{}, core.ErrNotFound
		}
		return core.Credits{}, err
	}
	return creditToDomain(record), nil
}

func (s *CreditStore) EnsureCredits(ctx context.Context, userID string) (core.Credits, error) {
	if s == nil || s.db == nil {
		return core.Credits{}, fmt.Errorf("sqlstore: credit store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.Credits{}, fmt.Errorf("sqlstore: user id is required")
	}

	now := time.Now().UTC()
	record := &creditRecord{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		// The losing insert of a concurrent first access reads back the
		// winner's row.
		if isUniqueViolation(err) {
			return s.GetCredits(ctx, userID)
		}
		return core.Credits{}, err
	}
	return creditToDomain(record), nil
}

func (s *CreditStore) DecrementFree(ctx context.Context, userID string) (bool, error) {
	return s.adjustGuarded(ctx, userID, "free_remaining = free_remaining - 1", "free_remaining > 0")
}

func (s *CreditStore) DecrementPurchased(ctx context.Context, userID string) (bool, error) {
	return s.adjustGuarded(ctx, userID, "purchased = purchased - 1", "purchased > 0")
}

func (s *CreditStore) IncrementFree(ctx context.Context, userID string, amount uint) (bool, error) {
	if amount == 0 {
		return false, fmt.Errorf("sqlstore: increment amount must be positive")
	}
	return s.adjust(ctx, userID, "free_remaining = free_remaining + ?", int64(amount))
}

func (s *CreditStore) IncrementPurchased(ctx context.Context, userID string, amount uint) (bool, error) {
	if amount == 0 {
		return false, fmt.Errorf("sqlstore: increment amount must be positive")
	}
	return s.adjust(ctx, userID, "purchased = purchased + ?", int64(amount))
}

func (s *CreditStore) AppendTransaction(ctx context.Context, tx core.CreditTransaction) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credit store is not configured")
	}
	if err := tx.Kind.Validate(); err != nil {
		return err
	}
	record := &creditTransactionRecord{
		ID:        strings.TrimSpace(tx.ID),
		UserID:    strings.TrimSpace(tx.UserID),
		Kind:      string(tx.Kind),
		Amount:    tx.Amount,
		Metadata:  cloneMetadata(tx.Metadata),
		CreatedAt: tx.CreatedAt.UTC(),
	}
	if ref := strings.TrimSpace(tx.ExternalRef); ref != "" {
		record.ExternalRef = &ref
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *CreditStore) FindTransactionByExternalRef(ctx context.Context, ref string) (core.CreditTransaction, error) {
	if s == nil || s.db == nil {
		return core.CreditTransaction{}, fmt.Errorf("sqlstore: credit store is not configured")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return core.CreditTransaction{}, fmt.Errorf("sqlstore: external ref is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("external_ref", "=", ref),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.CreditTransaction{}, err
	}
	if len(records) == 0 {
		return core.CreditTransaction{}, core.ErrNotFound
	}
	return creditTransactionToDomain(records[0]), nil
}

// ListTransactions returns the log rows for one user, newest first.
func (s *CreditStore) ListTransactions(ctx context.Context, userID string, limit int) ([]core.CreditTransaction, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: credit store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	result := make([]core.CreditTransaction, 0, len(records))
	for _, record := range records {
		result = append(result, creditTransactionToDomain(record))
	}
	return result, nil
}

func (s *CreditStore) adjustGuarded(ctx context.Context, userID, assignment, guard string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: credit store is not configured")
	}
	res, err := s.db.NewUpdate().
		Model((*creditRecord)(nil)).
		Set(assignment).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where(guard).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return rowLanded(res)
}

func (s *CreditStore) adjust(ctx context.Context, userID, assignment string, amount int64) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: credit store is not configured")
	}
	res, err := s.db.NewUpdate().
		Model((*creditRecord)(nil)).
		Set(assignment, amount).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return rowLanded(res)
}

func creditToDomain(record *creditRecord) core.Credits {
	if record == nil {
		return core.Credits{}
	}
	return core.Credits{
		UserID:        record.UserID,
		FreeRemaining: record.FreeRemaining,
		Purchased:     record.Purchased,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func creditTransactionToDomain(record *creditTransactionRecord) core.CreditTransaction {
	if record == nil {
		return core.CreditTransaction{}
	}
	result := core.CreditTransaction{
		ID:        record.ID,
		UserID:    record.UserID,
		Kind:      core.TransactionKind(record.Kind),
		Amount:    record.Amount,
		Metadata:  cloneMetadata(record.Metadata),
		CreatedAt: record.CreatedAt,
	}
	if record.ExternalRef != nil {
		result.ExternalRef = *record.ExternalRef
	}
	return result
}

func rowLanded(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func cloneMetadata(input map[string]any) map[string]any {
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ core.CreditStore = (*CreditStore)(nil)
