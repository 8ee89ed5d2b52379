package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-arcade/core"
)

// ContinueService is the mutating surface the continue commands wrap.
type ContinueService interface {
	RequestContinue(ctx context.Context, userID string) (core.ContinueGrant, error)
	RedeemContinue(ctx context.Context, userID, token string) (uint, error)
}

// GrantService applies idempotent purchase grants.
type GrantService interface {
	Grant(ctx context.Context, userID string, amount uint, externalRef string, metadata map[string]any) (core.GrantResult, error)
}

// TokenPurger and SessionPurger are the best-effort cleanup halves behind
// the maintenance command.
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type SessionPurger interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

type RequestContinueCommand struct {
	service ContinueService
}

func NewRequestContinueCommand(service ContinueService) *RequestContinueCommand {
	return &RequestContinueCommand{service: service}
}

func (c *RequestContinueCommand) Execute(ctx context.Context, msg RequestContinueMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: continue service is required")
	}
	out, err := c.service.RequestContinue(ctx, msg.UserID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RedeemContinueCommand struct {
	service ContinueService
}

func NewRedeemContinueCommand(service ContinueService) *RedeemContinueCommand {
	return &RedeemContinueCommand{service: service}
}

func (c *RedeemContinueCommand) Execute(ctx context.Context, msg RedeemContinueMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: continue service is required")
	}
	out, err := c.service.RedeemContinue(ctx, msg.UserID, msg.ContinueToken)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type GrantCreditsCommand struct {
	service GrantService
}

func NewGrantCreditsCommand(service GrantService) *GrantCreditsCommand {
	return &GrantCreditsCommand{service: service}
}

func (c *GrantCreditsCommand) Execute(ctx context.Context, msg GrantCreditsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	out, err := c.service.Grant(ctx, msg.UserID, msg.Amount, msg.ExternalRef, msg.Metadata)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// PurgeExpiredResult reports how many rows each cleanup half removed.
type PurgeExpiredResult struct {
	Tokens   int
	Sessions int
}

type PurgeExpiredCommand struct {
	tokens   TokenPurger
	sessions SessionPurger
	now      core.NowFunc
}

func NewPurgeExpiredCommand(tokens TokenPurger, sessions SessionPurger) *PurgeExpiredCommand {
	return &PurgeExpiredCommand{tokens: tokens, sessions: sessions}
}

func (c *PurgeExpiredCommand) Execute(ctx context.Context, _ PurgeExpiredMessage) error {
	if c == nil || (c.tokens == nil && c.sessions == nil) {
		return commandDependencyError("command: purge targets are required")
	}
	result := PurgeExpiredResult{}
	if c.tokens != nil {
		purged, err := c.tokens.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		result.Tokens = purged
	}
	if c.sessions != nil {
		purged, err := c.sessions.DeleteExpiredSessions(ctx, core.ResolveNow(c.now))
		if err != nil {
			return err
		}
		result.Sessions = purged
	}
	storeResult(ctx, result)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
