// Package ledger owns per-user credit balances and the append-only
// transaction log. Every balance mutation is a single conditional write
// against the store; a write that affects zero rows is reported as a
// retryable conflict, never silently absorbed.
package ledger

import (
	"context"
	"errors"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-arcade/core"
)

type Ledger struct {
	store  core.CreditStore
	logger core.Logger
	now    core.NowFunc
}

type Option func(*Ledger)

func WithLogger(logger core.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithNow(now core.NowFunc) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func New(store core.CreditStore, options ...Option) (*Ledger, error) {
	if store == nil {
		return nil, core.NewInternalError("ledger: credit store is required")
	}
	ledger := &Ledger{
		store:  store,
		logger: glog.Nop(),
	}
	for _, option := range options {
		option(ledger)
	}
	return ledger, nil
}

// GetOrCreate returns the user's balance row, inserting a zero-balance row
// on first access. Concurrent first access is tolerated: the store's
// insert-if-absent semantics make the losing writer read the winner's row.
func (l *Ledger) GetOrCreate(ctx context.Context, userID string) (core.Credits, error) {
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return core.Credits{}, core.NewBadInputError(err.Error())
	}
	credits, err := l.store.EnsureCredits(ctx, userID)
	if err != nil {
		return core.Credits{}, core.ArcadeErrorMapper(err)
	}
	return credits, nil
}

// Deduct spends exactly one credit, preferring the free bucket. The read
// establishes which bucket to target; the store then issues one conditional
// decrement guarded by the same precondition. Zero rows affected means the
// precondition moved between read and write: the caller gets a conflict and
// must retry the whole call, re-reading current state.
func (l *Ledger) Deduct(ctx context.Context, userID string) (core.DeductResult, error) {
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return core.DeductResult{}, core.NewBadInputError(err.Error())
	}

	credits, err := l.store.EnsureCredits(ctx, userID)
	if err != nil {
		return core.DeductResult{}, core.ArcadeErrorMapper(err)
	}

	var kind core.TransactionKind
	var applied bool
	switch {
	case credits.FreeRemaining > 0:
		kind = core.TransactionKindFreeUse
		applied, err = l.store.DecrementFree(ctx, userID)
	case credits.Purchased > 0:
		kind = core.TransactionKindPaidUse
		applied, err = l.store.DecrementPurchased(ctx, userID)
	default:
		return core.DeductResult{}, core.NewInsufficientCreditsError(userID)
	}
	if err != nil {
		return core.DeductResult{}, core.ArcadeErrorMapper(err)
	}
	if !applied {
		return core.DeductResult{}, core.NewWriteConflictError("ledger: deduct lost the write race")
	}

	after, err := l.store.GetCredits(ctx, userID)
	if err != nil {
		return core.DeductResult{}, core.ArcadeErrorMapper(err)
	}
	return core.DeductResult{
		Kind:          kind,
		FreeRemaining: after.FreeRemaining,
		Purchased:     after.Purchased,
	}, nil
}

// Refund is the compensating half of Deduct: it conditionally restores one
// credit to the bucket the spend came out of. No transaction row is written;
// the log only records completed operations.
func (l *Ledger) Refund(ctx context.Context, userID string, kind core.TransactionKind) error {
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return core.NewBadInputError(err.Error())
	}

	var applied bool
	switch kind {
	case core.TransactionKindFreeUse:
		applied, err = l.store.IncrementFree(ctx, userID, 1)
	case core.TransactionKindPaidUse:
		applied, err = l.store.IncrementPurchased(ctx, userID, 1)
	default:
		return core.NewBadInputError("ledger: refund kind must be a spend kind")
	}
	if err != nil {
		return core.ArcadeErrorMapper(err)
	}
	if !applied {
		return core.NewWriteConflictError("ledger: refund lost the write race")
	}
	return nil
}

// Grant credits a purchase exactly once per external reference. The
// reference check runs before any mutation; when the store cannot apply the
// increment and the log row atomically, that check is what prevents a
// retried notification from double-applying.
func (l *Ledger) Grant(ctx context.Context, userID string, amount uint, externalRef string, metadata map[string]any) (core.GrantResult, error) {
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return core.GrantResult{}, core.NewBadInputError(err.Error())
	}
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return core.GrantResult{}, core.NewBadInputError("ledger: external reference is required for grants")
	}
	if amount == 0 {
		return core.GrantResult{}, core.NewBadInputError("ledger: grant amount must be positive")
	}

	if _, err := l.store.FindTransactionByExternalRef(ctx, externalRef); err == nil {
		credits, getErr := l.store.EnsureCredits(ctx, userID)
		if getErr != nil {
			return core.GrantResult{}, core.ArcadeErrorMapper(getErr)
		}
		l.logger.Info("ledger: duplicate grant ignored",
			"user_id", userID, "external_ref", externalRef)
		return core.GrantResult{
			Applied:       false,
			FreeRemaining: credits.FreeRemaining,
			Purchased:     credits.Purchased,
		}, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.GrantResult{}, core.ArcadeErrorMapper(err)
	}

	if _, err := l.store.EnsureCredits(ctx, userID); err != nil {
		return core.GrantResult{}, core.ArcadeErrorMapper(err)
	}
	applied, err := l.store.IncrementPurchased(ctx, userID, amount)
	if err != nil {
		return core.GrantResult{}, core.ArcadeErrorMapper(err)
	}
	if !applied {
		return core.GrantResult{}, core.NewWriteConflictError("ledger: grant lost the write race")
	}

	if err := l.RecordTransaction(ctx, userID, core.TransactionKindPurchase, int(amount), externalRef, metadata); err != nil {
		// Balance landed but the log row did not. The externalRef lookup on
		// retry keeps this from double-granting; surface the failure.
		l.logger.Error("ledger: grant applied but transaction log failed",
			"user_id", userID, "external_ref", externalRef, "error", err.Error())
		return core.GrantResult{}, core.ArcadeErrorMapper(err)
	}

	after, err := l.store.GetCredits(ctx, userID)
	if err != nil {
		return core.GrantResult{}, core.ArcadeErrorMapper(err)
	}
	return core.GrantResult{
		Applied:       true,
		FreeRemaining: after.FreeRemaining,
		Purchased:     after.Purchased,
	}, nil
}

// RecordTransaction appends one log row. It never mutates balances and must
// only run after the mutation it records has been confirmed.
func (l *Ledger) RecordTransaction(ctx context.Context, userID string, kind core.TransactionKind, amount int, externalRef string, metadata map[string]any) error {
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return core.NewBadInputError(err.Error())
	}
	if err := kind.Validate(); err != nil {
		return core.NewBadInputError(err.Error())
	}
	tx := core.CreditTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		Amount:      amount,
		ExternalRef: strings.TrimSpace(externalRef),
		Metadata:    metadata,
		CreatedAt:   core.ResolveNow(l.now),
	}
	if err := l.store.AppendTransaction(ctx, tx); err != nil {
		return core.ArcadeErrorMapper(err)
	}
	return nil
}
