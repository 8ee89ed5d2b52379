package command

import (
	"strings"
)

const (
	TypeRequestContinue = "arcade.command.continue.request"
	TypeRedeemContinue  = "arcade.command.continue.redeem"
	TypeGrantCredits    = "arcade.command.credits.grant"
	TypePurgeExpired    = "arcade.command.maintenance.purge_expired"
)

type RequestContinueMessage struct {
	UserID string
}

func (RequestContinueMessage) Type() string { return TypeRequestContinue }

func (m RequestContinueMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

type RedeemContinueMessage struct {
	UserID        string
	ContinueToken string
}

func (RedeemContinueMessage) Type() string { return TypeRedeemContinue }

func (m RedeemContinueMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.ContinueToken) == "" {
		return commandValidationError("continue_token", "continue token is required")
	}
	return nil
}

type GrantCreditsMessage struct {
	UserID      string
	Amount      uint
	ExternalRef string
	Metadata    map[string]any
}

func (GrantCreditsMessage) Type() string { return TypeGrantCredits }

func (m GrantCreditsMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if m.Amount == 0 {
		return commandValidationError("amount", "amount must be positive")
	}
	if strings.TrimSpace(m.ExternalRef) == "" {
		return commandValidationError("external_ref", "external ref is required")
	}
	return nil
}

// PurgeExpiredMessage triggers best-effort cleanup of expired continue
// tokens and save sessions.
type PurgeExpiredMessage struct{}

func (PurgeExpiredMessage) Type() string { return TypePurgeExpired }

func (PurgeExpiredMessage) Validate() error { return nil }
