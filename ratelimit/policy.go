package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-arcade/core"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// Operations that carry a per-user budget. Anything else passes through
// unmetered.
const (
	OperationContinue = "continue"
	OperationCheckout = "checkout"
)

type Key struct {
	Operation string
	UserID    string
}

// State is one user's counter inside the current fixed window.
type State struct {
	Key         Key
	Count       int
	WindowStart time.Time
	UpdatedAt   time.Time
}

type StateStore interface {
	Get(ctx context.Context, key Key) (State, error)
	Upsert(ctx context.Context, state State) error
}

type ThrottledError struct {
	Operation  string
	UserID     string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: operation %q throttled for user %q, retry in %s",
		strings.TrimSpace(e.Operation),
		strings.TrimSpace(e.UserID),
		e.RetryAfter,
	)
}

func (e ThrottledError) ToArcadeError() *goerrors.Error {
	metadata := map[string]any{
		"operation": strings.TrimSpace(e.Operation),
		"user_id":   strings.TrimSpace(e.UserID),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ArcadeErrorRateLimited).
		WithMetadata(metadata)
}

// FixedWindowPolicy counts spend attempts per user inside a fixed window
// and refuses the attempt once the operation's budget is exhausted. A
// refused attempt never reaches the ledger.
type FixedWindowPolicy struct {
	Store  StateStore
	Now    func() time.Time
	Window time.Duration

	mu     sync.RWMutex
	limits map[string]int
}

func NewFixedWindowPolicy(store StateStore, cfg core.RateLimitConfig) *FixedWindowPolicy {
	return &FixedWindowPolicy{
		Store:  store,
		Now:    func() time.Time { return time.Now().UTC() },
		Window: time.Minute,
		limits: map[string]int{
			OperationContinue: cfg.ContinuePerMinute,
			OperationCheckout: cfg.CheckoutPerMinute,
		},
	}
}

// SetLimit overrides one operation's budget. A limit of zero or less
// removes metering for that operation.
func (p *FixedWindowPolicy) SetLimit(operation string, limit int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limits == nil {
		p.limits = map[string]int{}
	}
	p.limits[normalizeField(operation)] = limit
}

// Allow consumes one slot for the user in the current window, or returns
// a ThrottledError carrying how long the caller has to wait.
func (p *FixedWindowPolicy) Allow(ctx context.Context, operation, userID string) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key := normalizeKey(Key{Operation: operation, UserID: userID})
	limit := p.limitFor(key.Operation)
	if limit <= 0 {
		return nil
	}

	now := p.now()
	window := p.window()

	state, err := p.Store.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) || !now.Before(state.WindowStart.Add(window)) {
		state = State{Key: key, WindowStart: now}
	}

	if state.Count >= limit {
		return ThrottledError{
			Operation:  key.Operation,
			UserID:     key.UserID,
			RetryAfter: state.WindowStart.Add(window).Sub(now),
		}
	}

	state.Count++
	state.UpdatedAt = now
	return p.Store.Upsert(ctx, state)
}

func (p *FixedWindowPolicy) limitFor(operation string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.limits[operation]
}

func (p *FixedWindowPolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *FixedWindowPolicy) window() time.Duration {
	if p != nil && p.Window > 0 {
		return p.Window
	}
	return time.Minute
}

func normalizeKey(key Key) Key {
	return Key{
		Operation: normalizeField(key.Operation),
		UserID:    strings.TrimSpace(key.UserID),
	}
}

func normalizeField(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[string]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key Key) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	normalized := normalizeKey(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[stateKey(normalized)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Key = normalizeKey(state.Key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[stateKey(state.Key)] = state
	return nil
}

func stateKey(key Key) string {
	return key.Operation + "|" + key.UserID
}
