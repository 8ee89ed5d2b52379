package query

import (
	"context"
	"errors"

	"github.com/goliatone/go-arcade/core"
)

// BalanceReader is the read half of the credit ledger. The ledger itself
// satisfies it.
type BalanceReader interface {
	GetOrCreate(ctx context.Context, userID string) (core.Credits, error)
}

// TransactionReader pages through the append-only transaction log, newest
// first.
type TransactionReader interface {
	ListTransactions(ctx context.Context, userID string, limit int) ([]core.CreditTransaction, error)
}

// SaveReader loads the externally owned save snapshot.
type SaveReader interface {
	Load(ctx context.Context, userID string) (core.SaveSnapshot, error)
}

type GetCreditsQuery struct {
	reader BalanceReader
}

func NewGetCreditsQuery(reader BalanceReader) *GetCreditsQuery {
	return &GetCreditsQuery{reader: reader}
}

func (q *GetCreditsQuery) Query(ctx context.Context, msg GetCreditsMessage) (core.Credits, error) {
	if q == nil || q.reader == nil {
		return core.Credits{}, queryDependencyError("query: balance reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Credits{}, err
	}
	return q.reader.GetOrCreate(ctx, msg.UserID)
}

type ListTransactionsQuery struct {
	reader TransactionReader
}

func NewListTransactionsQuery(reader TransactionReader) *ListTransactionsQuery {
	return &ListTransactionsQuery{reader: reader}
}

func (q *ListTransactionsQuery) Query(ctx context.Context, msg ListTransactionsMessage) ([]core.CreditTransaction, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: transaction reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.ListTransactions(ctx, msg.UserID, msg.Limit)
}

type LoadSaveQuery struct {
	reader SaveReader
}

func NewLoadSaveQuery(reader SaveReader) *LoadSaveQuery {
	return &LoadSaveQuery{reader: reader}
}

func (q *LoadSaveQuery) Query(ctx context.Context, msg LoadSaveMessage) (core.SaveSnapshot, error) {
	if q == nil || q.reader == nil {
		return core.SaveSnapshot{}, queryDependencyError("query: save reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.SaveSnapshot{}, err
	}
	snapshot, err := q.reader.Load(ctx, msg.UserID)
	if err != nil {
		if errors.Is(err, core.ErrSaveNotFound) {
			return core.SaveSnapshot{}, core.NewNoSaveError(msg.UserID)
		}
		return core.SaveSnapshot{}, err
	}
	return snapshot, nil
}
