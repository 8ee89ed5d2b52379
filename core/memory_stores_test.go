package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCreditStoreDecrementGuardsAtZero(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCreditStore()
	store.Seed("u1", 1, 0)

	ok, err := store.DecrementFree(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected first decrement to land, ok=%v err=%v", ok, err)
	}
	ok, err = store.DecrementFree(ctx, "u1")
	if err != nil {
		t.Fatalf("decrement at zero: %v", err)
	}
	if ok {
		t.Fatalf("expected decrement at zero to report a failed precondition")
	}

	row, err := store.GetCredits(ctx, "u1")
	if err != nil {
		t.Fatalf("get credits: %v", err)
	}
	if row.FreeRemaining != 0 || row.Purchased != 0 {
		t.Fatalf("expected balances to stay at zero, got %+v", row)
	}
}

func TestMemoryCreditStoreDecrementUnknownUser(t *testing.T) {
	store := NewMemoryCreditStore()
	ok, err := store.DecrementPurchased(context.Background(), "missing")
	if err != nil {
		t.Fatalf("decrement unknown user: %v", err)
	}
	if ok {
		t.Fatalf("expected unknown user to fail the precondition, not error")
	}
}

func TestMemoryCreditStoreEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCreditStore()
	store.Seed("u1", 2, 3)

	row, err := store.EnsureCredits(ctx, "u1")
	if err != nil {
		t.Fatalf("ensure existing: %v", err)
	}
	if row.FreeRemaining != 2 || row.Purchased != 3 {
		t.Fatalf("expected ensure to preserve balances, got %+v", row)
	}

	fresh, err := store.EnsureCredits(ctx, "u2")
	if err != nil {
		t.Fatalf("ensure new: %v", err)
	}
	if fresh.FreeRemaining != 0 || fresh.Purchased != 0 {
		t.Fatalf("expected zero row for new user, got %+v", fresh)
	}
}

func TestMemoryCreditStoreTransactionLookup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCreditStore()

	if err := store.AppendTransaction(ctx, CreditTransaction{
		UserID:      "u1",
		Kind:        TransactionKindPurchase,
		Amount:      10,
		ExternalRef: "evt_1",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	tx, err := store.FindTransactionByExternalRef(ctx, "evt_1")
	if err != nil {
		t.Fatalf("find by external ref: %v", err)
	}
	if tx.Amount != 10 {
		t.Fatalf("expected stored amount, got %d", tx.Amount)
	}
	if _, err := store.FindTransactionByExternalRef(ctx, "evt_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryContinueTokenStoreConsumeIsOneShot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryContinueTokenStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.InsertToken(ctx, ContinueToken{
		UserID:    "u1",
		Token:     "tok-1",
		ExpiresAt: now.Add(5 * time.Minute),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	row, err := store.ConsumeToken(ctx, "u1", "tok-1", now)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !row.Consumed {
		t.Fatalf("expected consumed flag on returned row")
	}
	if _, err := store.ConsumeToken(ctx, "u1", "tok-1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second consume to miss, got %v", err)
	}
}

func TestMemoryContinueTokenStoreExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryContinueTokenStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.InsertToken(ctx, ContinueToken{
		UserID:    "u1",
		Token:     "tok-exp",
		ExpiresAt: now.Add(-time.Second),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := store.ConsumeToken(ctx, "u1", "tok-exp", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired token to miss, got %v", err)
	}
	removed, err := store.DeleteExpiredTokens(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one purged token, got %d", removed)
	}
}

func TestMemorySessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.InsertSession(ctx, SaveSession{
		UserID:    "u1",
		Token:     "sess-1",
		ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	row, err := store.GetSession(ctx, "u1", "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.Token != "sess-1" {
		t.Fatalf("expected stored session back, got %+v", row)
	}

	if err := store.DeleteSession(ctx, "u1", "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetSession(ctx, "u1", "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted session to miss, got %v", err)
	}
}
