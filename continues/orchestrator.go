package continues

import (
	"context"
	"errors"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-arcade/core"
	"github.com/goliatone/go-arcade/ledger"
)

// Orchestrator composes the credit ledger, the continue-token authority, and
// the external save store. It is the only component that coordinates across
// them; no entity is shared-mutable between the leaves.
type Orchestrator struct {
	ledger    *ledger.Ledger
	authority *Authority
	saves     core.SaveStore
	logger    core.Logger
}

type OrchestratorOption func(*Orchestrator)

func WithOrchestratorLogger(logger core.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func NewOrchestrator(creditLedger *ledger.Ledger, authority *Authority, saves core.SaveStore, options ...OrchestratorOption) (*Orchestrator, error) {
	if creditLedger == nil {
		return nil, core.NewInternalError("continues: credit ledger is required")
	}
	if authority == nil {
		return nil, core.NewInternalError("continues: token authority is required")
	}
	if saves == nil {
		return nil, core.NewInternalError("continues: save store is required")
	}
	orchestrator := &Orchestrator{
		ledger:    creditLedger,
		authority: authority,
		saves:     saves,
		logger:    glog.Nop(),
	}
	for _, option := range options {
		option(orchestrator)
	}
	return orchestrator, nil
}

// RequestContinue spends one credit and mints a continue token against the
// user's current save. Credit failures (402, 409) propagate unchanged. A
// missing save is a 404 distinct from any credit failure, and the deducted
// credit is restored through a compensating conditional increment before the
// 404 returns; no transaction row is written on that path, so the log only
// ever records completed continues.
func (o *Orchestrator) RequestContinue(ctx context.Context, userID string) (core.ContinueGrant, error) {
	deducted, err := o.ledger.Deduct(ctx, userID)
	if err != nil {
		return core.ContinueGrant{}, err
	}

	save, err := o.saves.Load(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrSaveNotFound) {
			if refundErr := o.ledger.Refund(ctx, userID, deducted.Kind); refundErr != nil {
				// The user is down a credit with nothing to show for it;
				// surface the failure instead of a clean 404.
				o.logger.Error("continues: compensating refund failed",
					"user_id", userID, "kind", string(deducted.Kind), "error", refundErr.Error())
				return core.ContinueGrant{}, core.ArcadeErrorMapper(refundErr)
			}
			return core.ContinueGrant{}, core.NewNoSaveError(userID)
		}
		return core.ContinueGrant{}, core.ArcadeErrorMapper(err)
	}

	issued, err := o.authority.Issue(ctx, userID, save.Version)
	if err != nil {
		return core.ContinueGrant{}, err
	}

	if err := o.ledger.RecordTransaction(ctx, userID, deducted.Kind, -1, "", map[string]any{
		"wave":         save.Wave,
		"save_version": save.Version,
	}); err != nil {
		// The spend landed and the token exists; the missing log row is an
		// observability gap, not a correctness one. Log rows are never
		// written speculatively, so there is nothing to roll back.
		o.logger.Error("continues: transaction log append failed",
			"user_id", userID, "error", err.Error())
	}

	return core.ContinueGrant{
		Token:         issued.Token,
		ExpiresAt:     issued.ExpiresAt,
		Save:          save,
		FreeRemaining: deducted.FreeRemaining,
		Purchased:     deducted.Purchased,
	}, nil
}

// RedeemContinue consumes the one-time token and reports the save version
// recorded at issuance. The save snapshot is intentionally left untouched:
// repeat redemption is blocked by the token's consumed flag, and repeat
// continuation is gated by needing a fresh credit, not by deleting saves.
func (o *Orchestrator) RedeemContinue(ctx context.Context, userID, tokenValue string) (uint, error) {
	return o.authority.Consume(ctx, userID, tokenValue)
}
