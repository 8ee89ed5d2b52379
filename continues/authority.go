// Package continues implements the one-time "continue" protocol: spending a
// credit buys a short-lived token bound to the user and the save version
// current at issuance; redeeming the token is gated purely by its one-time,
// time-limited nature.
package continues

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-arcade/core"
	"github.com/goliatone/go-arcade/token"
)

const DefaultTTL = 5 * time.Minute

// Authority issues and consumes continue tokens. There is no cap on
// outstanding tokens per user; each one cost a credit to mint and each can
// be used at most once.
type Authority struct {
	store  core.ContinueTokenStore
	secret string
	ttl    time.Duration
	logger core.Logger
	now    core.NowFunc
}

type AuthorityOption func(*Authority)

func WithAuthorityTTL(ttl time.Duration) AuthorityOption {
	return func(a *Authority) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

func WithAuthorityLogger(logger core.Logger) AuthorityOption {
	return func(a *Authority) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithAuthorityNow(now core.NowFunc) AuthorityOption {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAuthority(store core.ContinueTokenStore, secret string, options ...AuthorityOption) (*Authority, error) {
	if store == nil {
		return nil, core.NewInternalError("continues: token store is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, core.NewInternalError("continues: signing secret is required")
	}
	authority := &Authority{
		store:  store,
		secret: strings.TrimSpace(secret),
		ttl:    DefaultTTL,
		logger: glog.Nop(),
	}
	for _, option := range options {
		option(authority)
	}
	return authority, nil
}

// Issue signs a userId:nonce:saveVersion:issuedAt payload and persists the
// unconsumed row.
func (a *Authority) Issue(ctx context.Context, userID string, saveVersion uint) (core.ContinueToken, error) {
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return core.ContinueToken{}, core.NewBadInputError(err.Error())
	}
	nonce, err := token.Nonce()
	if err != nil {
		return core.ContinueToken{}, core.ArcadeErrorMapper(err)
	}

	now := core.ResolveNow(a.now)
	payload := fmt.Sprintf("%s:%s:%d:%d", userID, nonce, saveVersion, now.Unix())
	signed, err := token.Sign([]byte(payload), a.secret)
	if err != nil {
		return core.ContinueToken{}, core.ArcadeErrorMapper(err)
	}

	row := core.ContinueToken{
		ID:          uuid.NewString(),
		UserID:      userID,
		Token:       signed,
		SaveVersion: saveVersion,
		Consumed:    false,
		CreatedAt:   now,
		ExpiresAt:   now.Add(a.ttl),
	}
	if err := a.store.InsertToken(ctx, row); err != nil {
		return core.ContinueToken{}, core.ArcadeErrorMapper(err)
	}
	return row, nil
}

// Consume retires a token through a single conditional update guarded by
// consumed = false and expires_at > now. Zero rows affected collapses
// "unknown", "expired", and "already used" into one rejection so the caller
// learns nothing about which it was. The signature is checked first; a
// forged token never reaches the store.
func (a *Authority) Consume(ctx context.Context, userID, tokenValue string) (uint, error) {
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return 0, core.NewContinueTokenError()
	}
	payload, err := token.Verify(tokenValue, a.secret)
	if err != nil {
		return 0, core.NewContinueTokenError()
	}
	parts := strings.SplitN(string(payload), ":", 4)
	if len(parts) != 4 || parts[0] != userID {
		return 0, core.NewContinueTokenError()
	}

	now := core.ResolveNow(a.now)
	row, err := a.store.ConsumeToken(ctx, userID, strings.TrimSpace(tokenValue), now)
	if errors.Is(err, core.ErrNotFound) {
		return 0, core.NewContinueTokenError()
	}
	if err != nil {
		return 0, core.ArcadeErrorMapper(err)
	}
	return row.SaveVersion, nil
}

// PurgeExpired removes expired token rows. Best-effort maintenance; callers
// never fail a request on its error.
func (a *Authority) PurgeExpired(ctx context.Context) (int, error) {
	pruned, err := a.store.DeleteExpiredTokens(ctx, core.ResolveNow(a.now))
	if err != nil {
		return 0, core.ArcadeErrorMapper(err)
	}
	return pruned, nil
}

// saveVersionFromPayload is used by tests to confirm the payload embeds the
// version the store recorded.
func saveVersionFromPayload(payload []byte) (uint, error) {
	parts := strings.SplitN(string(payload), ":", 4)
	if len(parts) != 4 {
		return 0, fmt.Errorf("continues: malformed payload")
	}
	version, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("continues: malformed save version: %w", err)
	}
	return uint(version), nil
}
