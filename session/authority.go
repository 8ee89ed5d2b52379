// Package session issues and validates save-write sessions. A session gates
// writes to a user's externally stored save snapshot; it has no consumed
// state and backs any number of writes until it expires.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-arcade/core"
	"github.com/goliatone/go-arcade/token"
)

const DefaultTTL = 48 * time.Hour

type Authority struct {
	store  core.SessionStore
	secret string
	ttl    time.Duration
	logger core.Logger
	now    core.NowFunc
}

type Option func(*Authority)

func WithTTL(ttl time.Duration) Option {
	return func(a *Authority) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(a *Authority) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithNow(now core.NowFunc) Option {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}

func New(store core.SessionStore, secret string, options ...Option) (*Authority, error) {
	if store == nil {
		return nil, core.NewInternalError("session: session store is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, core.NewInternalError("session: signing secret is required")
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

// StartSession signs a userId:nonce payload, persists the session, and
// opportunistically prunes expired rows. Pruning is best-effort: its failure
// is logged and never fails the request.
func (a *Authority) StartSession(ctx context.Context, userID string) (core.SaveSession, error) {
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return core.SaveSession{}, core.NewBadInputError(err.Error())
	}
	nonce, err := token.Nonce()
	if err != nil {
		return core.SaveSession{}, core.ArcadeErrorMapper(err)
	}
	signed, err := token.Sign([]byte(userID+":"+nonce), a.secret)
	if err != nil {
		return core.SaveSession{}, core.ArcadeErrorMapper(err)
	}

	now := core.ResolveNow(a.now)
	session := core.SaveSession{
		UserID:    userID,
		Token:     signed,
		ExpiresAt: now.Add(a.ttl),
	}
	if err := a.store.InsertSession(ctx, session); err != nil {
		return core.SaveSession{}, core.ArcadeErrorMapper(err)
	}

	if pruned, pruneErr := a.store.DeleteExpiredSessions(ctx, now); pruneErr != nil {
		a.logger.Warn("session: expired session cleanup failed", "error", pruneErr.Error())
	} else if pruned > 0 {
		a.logger.Debug("session: pruned expired sessions", "count", pruned)
	}

	return session, nil
}

// AuthorizeWrite checks a session token in two ordered steps. The
// cryptographic step runs first and needs no I/O: the signature must verify
// and the payload's userId prefix must match the claimed identity, which
// rejects forged and cross-user tokens immediately. Only then is the store
// consulted, rejecting revoked or expired sessions that still carry a valid
// signature. Either failure is an authorization error.
func (a *Authority) AuthorizeWrite(ctx context.Context, userID, sessionToken string) error {
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return core.NewUnauthorizedError("session: user identity is required")
	}

	payload, err := token.Verify(sessionToken, a.secret)
	if err != nil {
		return core.NewUnauthorizedError("session: invalid session token")
	}
	embedded, _, ok := strings.Cut(string(payload), ":")
	if !ok || embedded != userID {
		return core.NewUnauthorizedError("session: token does not belong to this user")
	}

	session, err := a.store.GetSession(ctx, userID, strings.TrimSpace(sessionToken))
	if err != nil {
		return core.NewUnauthorizedError("session: session not found or revoked")
	}
	if !core.ResolveNow(a.now).Before(session.ExpiresAt) {
		return core.NewUnauthorizedError("session: session expired")
	}
	return nil
}

// IdentityFromToken extracts the embedded userId after verifying the
// signature. It performs no store lookup; HTTP middleware uses it to resolve
// the caller before AuthorizeWrite runs the full check.
func (a *Authority) IdentityFromToken(sessionToken string) (string, error) {
	payload, err := token.Verify(sessionToken, a.secret)
	if err != nil {
		return "", core.NewUnauthorizedError("session: invalid session token")
	}
	embedded, _, ok := strings.Cut(string(payload), ":")
	if !ok || strings.TrimSpace(embedded) == "" {
		return "", core.NewUnauthorizedError("session: malformed session payload")
	}
	return embedded, nil
}

// EndSession revokes a session ahead of expiry.
func (a *Authority) EndSession(ctx context.Context, userID, sessionToken string) error {
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return core.NewBadInputError(err.Error())
	}
	if strings.TrimSpace(sessionToken) == "" {
		return core.NewBadInputError(fmt.Sprintf("session: token is required to end a session for %s", userID))
	}
	if err := a.store.DeleteSession(ctx, userID, strings.TrimSpace(sessionToken)); err != nil {
		return core.ArcadeErrorMapper(err)
	}
	return nil
}
