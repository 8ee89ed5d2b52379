package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryCreditStore is the deterministic in-memory CreditStore used by unit
// tests and local development. It honors the same compare-and-swap contract
// as the SQL store: decrements check their precondition under the lock and
// report false instead of going negative.
type MemoryCreditStore struct {
	mu           sync.Mutex
	credits      map[string]Credits
	transactions []CreditTransaction
	Now          NowFunc
}

func NewMemoryCreditStore() *MemoryCreditStore {
	return &MemoryCreditStore{
		credits: map[string]Credits{},
	}
}

// Seed replaces a user's balances, bypassing the conditional-write path.
// Test setup only.
func (s *MemoryCreditStore) Seed(userID string, free, purchased uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := ResolveNow(s.Now)
	s.credits[userID] = Credits{
		UserID:        userID,
		FreeRemaining: free,
		Purchased:     purchased,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *MemoryCreditStore) GetCredits(_ context.Context, userID string) (Credits, error) {
	if s == nil {
		return Credits{}, fmt.Errorf("core: credit store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.credits[strings.TrimSpace(userID)]
	if !ok {
		return Credits{}, ErrNotFound
	}
	return row, nil
}

func (s *MemoryCreditStore) EnsureCredits(_ context.Context, userID string) (Credits, error) {
	if s == nil {
		return Credits{}, fmt.Errorf("core: credit store is not configured")
	}
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return Credits{}, fmt.Errorf("core: user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.credits[trimmed]; ok {
		return row, nil
	}
	now := ResolveNow(s.Now)
	row := Credits{UserID: trimmed, CreatedAt: now, UpdatedAt: now}
	s.credits[trimmed] = row
	return row, nil
}

func (s *MemoryCreditStore) DecrementFree(_ context.Context, userID string) (bool, error) {
	return s.adjust(userID, func(row *Credits) bool {
		if row.FreeRemaining == 0 {
			return false
		}
		row.FreeRemaining--
		return true
	})
}

func (s *MemoryCreditStore) DecrementPurchased(_ context.Context, userID string) (bool, error) {
	return s.adjust(userID, func(row *Credits) bool {
		if row.Purchased == 0 {
			return false
		}
		row.Purchased--
		return true
	})
}

func (s *MemoryCreditStore) IncrementFree(_ context.Context, userID string, amount uint) (bool, error) {
	return s.adjust(userID, func(row *Credits) bool {
		row.FreeRemaining += amount
		return true
	})
}

func (s *MemoryCreditStore) IncrementPurchased(_ context.Context, userID string, amount uint) (bool, error) {
	return s.adjust(userID, func(row *Credits) bool {
		row.Purchased += amount
		return true
	})
}

func (s *MemoryCreditStore) adjust(userID string, apply func(*Credits) bool) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("core: credit store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.credits[strings.TrimSpace(userID)]
	if !ok {
		return false, nil
	}
	if !apply(&row) {
		return false, nil
	}
	row.UpdatedAt = ResolveNow(s.Now)
	s.credits[row.UserID] = row
	return true, nil
}

func (s *MemoryCreditStore) AppendTransaction(_ context.Context, tx CreditTransaction) error {
	if s == nil {
		return fmt.Errorf("core: credit store is not configured")
	}
	if err := tx.Kind.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = ResolveNow(s.Now)
	}
	tx.Metadata = copyAnyMap(tx.Metadata)
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *MemoryCreditStore) FindTransactionByExternalRef(_ context.Context, ref string) (CreditTransaction, error) {
	if s == nil {
		return CreditTransaction{}, fmt.Errorf("core: credit store is not configured")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return CreditTransaction{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.transactions {
		if tx.ExternalRef == ref {
			return tx, nil
		}
	}
	return CreditTransaction{}, ErrNotFound
}

// ListTransactions returns a user's rows newest first, capped at limit.
func (s *MemoryCreditStore) ListTransactions(_ context.Context, userID string, limit int) ([]CreditTransaction, error) {
	if s == nil {
		return nil, fmt.Errorf("core: credit store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []CreditTransaction{}
	for i := len(s.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if s.transactions[i].UserID == userID {
			out = append(out, s.transactions[i])
		}
	}
	return out, nil
}

// Transactions returns a copy of the log in append order. Test helper.
func (s *MemoryCreditStore) Transactions() []CreditTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CreditTransaction(nil), s.transactions...)
}

// MemoryContinueTokenStore keeps continue tokens keyed by token string.
type MemoryContinueTokenStore struct {
	mu     sync.Mutex
	tokens map[string]ContinueToken
}

func NewMemoryContinueTokenStore() *MemoryContinueTokenStore {
	return &MemoryContinueTokenStore{tokens: map[string]ContinueToken{}}
}

func (s *MemoryContinueTokenStore) InsertToken(_ context.Context, token ContinueToken) error {
	if s == nil {
		return fmt.Errorf("core: continue token store is not configured")
	}
	if strings.TrimSpace(token.Token) == "" {
		return fmt.Errorf("core: token value is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Token] = token
	return nil
}

func (s *MemoryContinueTokenStore) ConsumeToken(_ context.Context, userID, token string, now time.Time) (ContinueToken, error) {
	if s == nil {
		return ContinueToken{}, fmt.Errorf("core: continue token store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[strings.TrimSpace(token)]
	if !ok || row.UserID != strings.TrimSpace(userID) || row.Consumed || !now.Before(row.ExpiresAt) {
		return ContinueToken{}, ErrNotFound
	}
	row.Consumed = true
	s.tokens[row.Token] = row
	return row, nil
}

func (s *MemoryContinueTokenStore) DeleteExpiredTokens(_ context.Context, now time.Time) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: continue token store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for key, row := range s.tokens {
		if !now.Before(row.ExpiresAt) {
			delete(s.tokens, key)
			pruned++
		}
	}
	return pruned, nil
}

// Outstanding counts unconsumed, unexpired tokens for a user. Test helper.
func (s *MemoryContinueTokenStore) Outstanding(userID string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, row := range s.tokens {
		if row.UserID == userID && !row.Consumed && now.Before(row.ExpiresAt) {
			count++
		}
	}
	return count
}

// MemorySessionStore keeps save sessions keyed by userID+token.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]SaveSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]SaveSession{}}
}

func sessionKey(userID, token string) string {
	return strings.TrimSpace(userID) + "\x00" + strings.TrimSpace(token)
}

func (s *MemorySessionStore) InsertSession(_ context.Context, session SaveSession) error {
	if s == nil {
		return fmt.Errorf("core: session store is not configured")
	}
	if strings.TrimSpace(session.Token) == "" {
		return fmt.Errorf("core: session token is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionKey(session.UserID, session.Token)] = session
	return nil
}

func (s *MemorySessionStore) GetSession(_ context.Context, userID, token string) (SaveSession, error) {
	if s == nil {
		return SaveSession{}, fmt.Errorf("core: session store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionKey(userID, token)]
	if !ok {
		return SaveSession{}, ErrNotFound
	}
	return session, nil
}

func (s *MemorySessionStore) DeleteSession(_ context.Context, userID, token string) error {
	if s == nil {
		return fmt.Errorf("core: session store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey(userID, token))
	return nil
}

func (s *MemorySessionStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: session store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for key, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, key)
			pruned++
		}
	}
	return pruned, nil
}

// MemorySaveStore stands in for the externally owned save snapshot store.
type MemorySaveStore struct {
	mu    sync.Mutex
	saves map[string]SaveSnapshot
}

func NewMemorySaveStore() *MemorySaveStore {
	return &MemorySaveStore{saves: map[string]SaveSnapshot{}}
}

func (s *MemorySaveStore) Put(snapshot SaveSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot.Payload = copyAnyMap(snapshot.Payload)
	s.saves[strings.TrimSpace(snapshot.UserID)] = snapshot
}

func (s *MemorySaveStore) Load(_ context.Context, userID string) (SaveSnapshot, error) {
	if s == nil {
		return SaveSnapshot{}, fmt.Errorf("core: save store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.saves[strings.TrimSpace(userID)]
	if !ok {
		return SaveSnapshot{}, ErrSaveNotFound
	}
	snapshot.Payload = copyAnyMap(snapshot.Payload)
	return snapshot, nil
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
