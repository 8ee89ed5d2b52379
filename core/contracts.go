package core

import (
	"context"
	"errors"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("core: record not found")

// ErrSaveNotFound is returned by SaveStore when the user has no snapshot.
var ErrSaveNotFound = errors.New("core: save snapshot not found")

// CreditStore persists per-user balances and the append-only transaction
// log. The store offers no multi-statement transactions and no row locks;
// every mutation is a single conditional statement. Decrement and increment
// methods return false, without error, when the WHERE precondition did not
// hold at write time; callers treat that as a conflict to retry, never as
// success.
type CreditStore interface {
	GetCredits(ctx context.Context, userID string) (Credits, error)
	// EnsureCredits inserts a zero-balance row if none exists and returns
	// the current row. Concurrent first access must not fail; the losing
	// insert reads back the winner's row.
	EnsureCredits(ctx context.Context, userID string) (Credits, error)
	// DecrementFree applies freeRemaining = freeRemaining - 1 guarded by
	// freeRemaining > 0.
	DecrementFree(ctx context.Context, userID string) (bool, error)
	// DecrementPurchased applies balance = balance - 1 guarded by balance > 0.
	DecrementPurchased(ctx context.Context, userID string) (bool, error)
	// IncrementFree is the compensating half of DecrementFree.
	IncrementFree(ctx context.Context, userID string, amount uint) (bool, error)
	// IncrementPurchased adds purchased credits unconditionally by amount.
	IncrementPurchased(ctx context.Context, userID string, amount uint) (bool, error)
	// AppendTransaction appends one log row. It must only be called after
	// the balance mutation it records has been confirmed.
	AppendTransaction(ctx context.Context, tx CreditTransaction) error
	// FindTransactionByExternalRef returns ErrNotFound when no purchase has
	// been recorded under ref.
	FindTransactionByExternalRef(ctx context.Context, ref string) (CreditTransaction, error)
}

// ContinueTokenStore persists one-time continue tokens.
type ContinueTokenStore interface {
	InsertToken(ctx context.Context, token ContinueToken) error
	// ConsumeToken flips consumed to true through a single conditional
	// update guarded by consumed = false AND expires_at > now. It returns
	// the token row when the update landed and ErrNotFound when zero rows
	// were affected; invalid, expired, and already-used tokens are not
	// distinguished.
	ConsumeToken(ctx context.Context, userID, token string, now time.Time) (ContinueToken, error)
	// DeleteExpiredTokens is best-effort cleanup; failures never propagate
	// into request handling.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error)
}

// SessionStore persists save sessions.
type SessionStore interface {
	InsertSession(ctx context.Context, session SaveSession) error
	// GetSession returns ErrNotFound for unknown tokens.
	GetSession(ctx context.Context, userID, token string) (SaveSession, error)
	DeleteSession(ctx context.Context, userID, token string) error
	// DeleteExpiredSessions is best-effort cleanup.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// SaveStore is the externally owned save snapshot collaborator. This module
// only reads from it; versioning and persistence of snapshots belong to the
// game backend.
type SaveStore interface {
	Load(ctx context.Context, userID string) (SaveSnapshot, error)
}

// StoreProvider exposes the persistence-backed stores wired by a factory.
type StoreProvider interface {
	CreditStore() CreditStore
	ContinueTokenStore() ContinueTokenStore
	SessionStore() SessionStore
}
