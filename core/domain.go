package core

import (
	"fmt"
	"strings"
	"time"
)

// TransactionKind classifies entries in the append-only credit log.
type TransactionKind string

const (
	TransactionKindFreeUse  TransactionKind = "free_use"
	TransactionKindPaidUse  TransactionKind = "paid_use"
	TransactionKindPurchase TransactionKind = "purchase"
)

func (k TransactionKind) Validate() error {
	switch k {
	case TransactionKindFreeUse, TransactionKindPaidUse, TransactionKindPurchase:
		return nil
	}
	return fmt.Errorf("core: unknown transaction kind %q", string(k))
}

// Credits is the per-user balance row. Both fields are unsigned on the wire
// and in storage; they are only ever mutated through conditional writes that
// fail closed when the precondition no longer holds.
type Credits struct {
	UserID        string
	FreeRemaining uint
	Purchased     uint
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c Credits) Total() uint {
	return c.FreeRemaining + c.Purchased
}

// CreditTransaction is one row of the append-only log. Amount is signed:
// negative for spends, positive for purchases. ExternalRef carries the
// provider-side idempotency key for purchase grants and is empty otherwise.
type CreditTransaction struct {
	ID          string
	UserID      string
	Kind        TransactionKind
	Amount      int
	ExternalRef string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// ContinueToken is a one-time credential that authorizes resuming a run from
// the save version recorded at issuance. It becomes permanently unusable once
// consumed or once ExpiresAt passes, whichever happens first.
type ContinueToken struct {
	ID          string
	UserID      string
	Token       string
	SaveVersion uint
	Consumed    bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// SaveSession gates writes to a user's externally stored save snapshot. It
// has no consumed flag; a session backs any number of writes until expiry.
type SaveSession struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// SaveSnapshot is the externally owned save payload. Version is maintained by
// the save store and increases monotonically; this module records it but
// never advances it.
type SaveSnapshot struct {
	UserID        string
	Payload       map[string]any
	Version       uint
	Wave          int
	SchemaVersion int
	SavedAt       time.Time
}

// DeductResult reports which bucket a spend came out of and the balances
// after the write landed.
type DeductResult struct {
	Kind          TransactionKind
	FreeRemaining uint
	Purchased     uint
}

// GrantResult reports the balance after an idempotent purchase grant.
// Applied is false when the external reference had already been granted.
type GrantResult struct {
	Applied       bool
	FreeRemaining uint
	Purchased     uint
}

// ContinueGrant is the response payload for a successful continue request.
type ContinueGrant struct {
	Token         string
	ExpiresAt     time.Time
	Save          SaveSnapshot
	FreeRemaining uint
	Purchased     uint
}

func NormalizeUserID(userID string) (string, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "", fmt.Errorf("core: user id is required")
	}
	return trimmed, nil
}
