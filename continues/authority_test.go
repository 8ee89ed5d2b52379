package continues

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-arcade/core"
	"github.com/goliatone/go-arcade/token"
)

const testSecret = "continue-test-secret"

func newTestAuthority(t *testing.T, options ...AuthorityOption) (*Authority, *core.MemoryContinueTokenStore) {
	t.Helper()
	store := core.NewMemoryContinueTokenStore()
	authority, err := NewAuthority(store, testSecret, options...)
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	return authority, store
}

func TestIssue_EmbedsSaveVersion(t *testing.T) {
	authority, _ := newTestAuthority(t)
	issued, err := authority.Issue(context.Background(), "usr_1", 42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.SaveVersion != 42 || issued.Consumed {
		t.Fatalf("unexpected token row: %+v", issued)
	}

	payload, err := token.Verify(issued.Token, testSecret)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	version, err := saveVersionFromPayload(payload)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if version != 42 {
		t.Fatalf("expected payload version 42, got %d", version)
	}
}

func TestConsume_AtMostOnce(t *testing.T) {
	authority, _ := newTestAuthority(t)
	issued, err := authority.Issue(context.Background(), "usr_1", 7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	version, err := authority.Consume(context.Background(), "usr_1", issued.Token)
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if version != 7 {
		t.Fatalf("expected save version 7, got %d", version)
	}

	if _, err := authority.Consume(context.Background(), "usr_1", issued.Token); err == nil {
		t.Fatalf("expected second consume to be rejected")
	}
}

func TestConsume_StoreFailureIsNotTokenRejection(t *testing.T) {
	inner := core.NewMemoryContinueTokenStore()
	store := &failingConsumeStore{ContinueTokenStore: inner}
	authority, err := NewAuthority(store, testSecret)
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	issued, err := authority.Issue(context.Background(), "usr_1", 7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	store.consumeErr = errors.New("connection reset")
	_, err = authority.Consume(context.Background(), "usr_1", issued.Token)
	if err == nil {
		t.Fatalf("expected store failure to surface")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected mapped error, got %v", err)
	}
	if rich.TextCode == core.ArcadeErrorContinueToken {
		t.Fatalf("store failure must not masquerade as a token rejection")
	}
	if rich.Code != 500 {
		t.Fatalf("expected 500 for a store failure, got %d", rich.Code)
	}
}

type failingConsumeStore struct {
	core.ContinueTokenStore
	consumeErr error
}

func (s *failingConsumeStore) ConsumeToken(ctx context.Context, userID, tokenValue string, now time.Time) (core.ContinueToken, error) {
	if s.consumeErr != nil {
		return core.ContinueToken{}, s.consumeErr
	}
	return s.ContinueTokenStore.ConsumeToken(ctx, userID, tokenValue, now)
}

func TestConsume_RejectsAfterTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	authority, _ := newTestAuthority(t, WithAuthorityNow(func() time.Time { return now }))

	issued, err := authority.Issue(context.Background(), "usr_1", 3)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(DefaultTTL + time.Second)
	if _, err := authority.Consume(context.Background(), "usr_1", issued.Token); err == nil {
		t.Fatalf("expected expired token rejection even though never consumed")
	}
}

func TestConsume_RejectsWrongUser(t *testing.T) {
	authority, _ := newTestAuthority(t)
	issued, err := authority.Issue(context.Background(), "usr_a", 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := authority.Consume(context.Background(), "usr_b", issued.Token); err == nil {
		t.Fatalf("expected cross-user rejection")
	}
}

func TestConsume_RejectsForgedToken(t *testing.T) {
	authority, _ := newTestAuthority(t)
	forged, err := token.Sign([]byte("usr_1:nonce:9:0"), "some-other-secret")
	if err != nil {
		t.Fatalf("sign forged: %v", err)
	}
	if _, err := authority.Consume(context.Background(), "usr_1", forged); err == nil {
		t.Fatalf("expected forged token rejection")
	}
}

func TestIssue_AllowsMultipleOutstandingTokens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	authority, store := newTestAuthority(t, WithAuthorityNow(func() time.Time { return now }))

	if _, err := authority.Issue(context.Background(), "usr_1", 1); err != nil {
		t.Fatalf("issue first: %v", err)
	}
	if _, err := authority.Issue(context.Background(), "usr_1", 2); err != nil {
		t.Fatalf("issue second: %v", err)
	}
	if outstanding := store.Outstanding("usr_1", now); outstanding != 2 {
		t.Fatalf("expected 2 outstanding tokens, got %d", outstanding)
	}
}

func TestPurgeExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	authority, _ := newTestAuthority(t, WithAuthorityNow(func() time.Time { return now }))

	if _, err := authority.Issue(context.Background(), "usr_1", 1); err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(DefaultTTL + time.Minute)
	pruned, err := authority.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned token, got %d", pruned)
	}
}
