package ledger

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-arcade/core"
)

func newTestLedger(t *testing.T) (*Ledger, *core.MemoryCreditStore) {
	t.Helper()
	store := core.NewMemoryCreditStore()
	ledger, err := New(store)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return ledger, store
}

func textCode(t *testing.T, err error) string {
	t.Helper()
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %v", err)
	}
	return richErr.TextCode
}

func TestGetOrCreate_InsertsZeroBalanceRow(t *testing.T) {
	ledger, _ := newTestLedger(t)
	credits, err := ledger.GetOrCreate(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if credits.FreeRemaining != 0 || credits.Purchased != 0 {
		t.Fatalf("expected zero balances, got %+v", credits)
	}

	again, err := ledger.GetOrCreate(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("get or create second: %v", err)
	}
	if again.UserID != "usr_1" {
		t.Fatalf("expected same row back, got %+v", again)
	}
}

func TestDeduct_EmptyBalancesFailsWithInsufficientCredits(t *testing.T) {
	ledger, store := newTestLedger(t)
	store.Seed("usr_1", 0, 0)

	_, err := ledger.Deduct(context.Background(), "usr_1")
	if err == nil {
		t.Fatalf("expected insufficient credits error")
	}
	if code := textCode(t, err); code != core.ArcadeErrorInsufficientCredits {
		t.Fatalf("expected %s, got %s", core.ArcadeErrorInsufficientCredits, code)
	}

	credits, err := store.GetCredits(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("get credits: %v", err)
	}
	if credits.FreeRemaining != 0 || credits.Purchased != 0 {
		t.Fatalf("balance changed on failed deduct: %+v", credits)
	}
}

func TestDeduct_PrefersFreeCredits(t *testing.T) {
	ledger, store := newTestLedger(t)
	store.Seed("usr_1", 1, 5)

	result, err := ledger.Deduct(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if result.Kind != core.TransactionKindFreeUse {
		t.Fatalf("expected free_use, got %s", result.Kind)
	}
	if result.FreeRemaining != 0 || result.Purchased != 5 {
		t.Fatalf("expected free=0 purchased=5, got %+v", result)
	}
}

func TestDeduct_FallsBackToPurchased(t *testing.T) {
	ledger, store := newTestLedger(t)
	store.Seed("usr_1", 0, 2)

	result, err := ledger.Deduct(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if result.Kind != core.TransactionKindPaidUse {
		t.Fatalf("expected paid_use, got %s", result.Kind)
	}
	if result.Purchased != 1 {
		t.Fatalf("expected purchased=1, got %+v", result)
	}
}

// conflictCreditStore simulates losing the race between the read and the
// conditional write: the read sees a positive balance but the decrement
// affects zero rows.
type conflictCreditStore struct {
	*core.MemoryCreditStore
}

func (s conflictCreditStore) DecrementFree(context.Context, string) (bool, error) {
	return false, nil
}

func TestDeduct_LostRaceSurfacesRetryableConflict(t *testing.T) {
	base := core.NewMemoryCreditStore()
	base.Seed("usr_1", 1, 0)
	ledger, err := New(conflictCreditStore{base})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	_, err = ledger.Deduct(context.Background(), "usr_1")
	if err == nil {
		t.Fatalf("expected conflict error")
	}
	if code := textCode(t, err); code != core.ArcadeErrorWriteConflict {
		t.Fatalf("expected %s, got %s", core.ArcadeErrorWriteConflict, code)
	}
	if !core.IsConflict(err) {
		t.Fatalf("expected IsConflict to report retryable")
	}
}

func TestGrant_IdempotentByExternalRef(t *testing.T) {
	ledger, store := newTestLedger(t)

	first, err := ledger.Grant(context.Background(), "usr_1", 10, "X", nil)
	if err != nil {
		t.Fatalf("grant first: %v", err)
	}
	if !first.Applied || first.Purchased != 10 {
		t.Fatalf("expected applied grant of 10, got %+v", first)
	}

	second, err := ledger.Grant(context.Background(), "usr_1", 10, "X", nil)
	if err != nil {
		t.Fatalf("grant second: %v", err)
	}
	if second.Applied {
		t.Fatalf("expected duplicate grant to be ignored")
	}
	if second.Purchased != 10 {
		t.Fatalf("expected balance unchanged at 10, got %d", second.Purchased)
	}

	count := 0
	for _, tx := range store.Transactions() {
		if tx.ExternalRef == "X" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one transaction with ref X, got %d", count)
	}
}

func TestGrant_RequiresExternalRef(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if _, err := ledger.Grant(context.Background(), "usr_1", 10, "  ", nil); err == nil {
		t.Fatalf("expected error for blank external ref")
	}
}

func TestRecordTransaction_AppendsWithoutMutatingBalance(t *testing.T) {
	ledger, store := newTestLedger(t)
	store.Seed("usr_1", 3, 4)

	err := ledger.RecordTransaction(context.Background(), "usr_1", core.TransactionKindFreeUse, -1, "", map[string]any{"wave": 7})
	if err != nil {
		t.Fatalf("record transaction: %v", err)
	}

	credits, err := store.GetCredits(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("get credits: %v", err)
	}
	if credits.FreeRemaining != 3 || credits.Purchased != 4 {
		t.Fatalf("record transaction mutated balance: %+v", credits)
	}
	transactions := store.Transactions()
	if len(transactions) != 1 || transactions[0].Amount != -1 {
		t.Fatalf("expected one -1 row, got %+v", transactions)
	}
}

func TestRecordTransaction_RejectsUnknownKind(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if err := ledger.RecordTransaction(context.Background(), "usr_1", core.TransactionKind("bogus"), -1, "", nil); err == nil {
		t.Fatalf("expected unknown kind rejection")
	}
}

func TestRefund_RestoresSpentBucket(t *testing.T) {
	ledger, store := newTestLedger(t)
	store.Seed("usr_1", 0, 5)

	result, err := ledger.Deduct(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if err := ledger.Refund(context.Background(), "usr_1", result.Kind); err != nil {
		t.Fatalf("refund: %v", err)
	}
	credits, err := store.GetCredits(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("get credits: %v", err)
	}
	if credits.Purchased != 5 {
		t.Fatalf("expected purchased restored to 5, got %d", credits.Purchased)
	}
	if len(store.Transactions()) != 0 {
		t.Fatalf("refund must not write log rows, got %+v", store.Transactions())
	}
}
