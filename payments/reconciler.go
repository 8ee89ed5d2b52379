package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-arcade/core"
	"github.com/goliatone/go-arcade/ledger"
)

// EventCheckoutCompleted is the only event type that grants credits. Every
// other type is acknowledged without action so the provider stops retrying.
const EventCheckoutCompleted = "checkout.session.completed"

// Reconciler turns verified provider notifications into idempotent credit
// grants.
type Reconciler struct {
	secret string
	ledger *ledger.Ledger
	logger core.Logger
}

type ReconcilerOption func(*Reconciler)

func WithReconcilerLogger(logger core.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewReconciler(webhookSecret string, creditLedger *ledger.Ledger, options ...ReconcilerOption) (*Reconciler, error) {
	if strings.TrimSpace(webhookSecret) == "" {
		return nil, core.NewInternalError("payments: webhook secret is required")
	}
	if creditLedger == nil {
		return nil, core.NewInternalError("payments: credit ledger is required")
	}
	reconciler := &Reconciler{
		secret: strings.TrimSpace(webhookSecret),
		ledger: creditLedger,
		logger: glog.Nop(),
	}
	for _, option := range options {
		option(reconciler)
	}
	return reconciler, nil
}

type providerEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Ack is returned for accepted notifications, including ignored event types.
type Ack struct {
	Received bool
	Granted  bool
}

// HandleNotification verifies the provider signature over the raw,
// unparsed body and reconciles the event. Signature verification is the
// first thing that happens; no parsing or business logic runs on an
// unverified payload. Malformed payloads from a verified sender are
// rejected without panicking so the endpoint stays up.
func (r *Reconciler) HandleNotification(ctx context.Context, rawBody []byte, signatureHeader string) (Ack, error) {
	if err := r.verifySignature(rawBody, signatureHeader); err != nil {
		return Ack{}, err
	}

	var event providerEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		r.logger.Warn("payments: verified notification is not valid JSON", "error", err.Error())
		return Ack{}, core.NewBadInputError("payments: malformed notification body")
	}

	if event.Type != EventCheckoutCompleted {
		r.logger.Debug("payments: ignoring event type", "type", event.Type)
		return Ack{Received: true}, nil
	}

	userID := strings.TrimSpace(event.Data.Object.Metadata["userId"])
	if userID == "" {
		r.logger.Error("payments: completed event missing userId metadata",
			"event_id", event.ID)
		return Ack{}, core.NewBadInputError("payments: notification metadata missing userId")
	}
	amount, err := parseCreditsAmount(event.Data.Object.Metadata["creditsAmount"])
	if err != nil {
		r.logger.Error("payments: completed event has invalid creditsAmount",
			"event_id", event.ID, "error", err.Error())
		return Ack{}, core.NewBadInputError("payments: notification metadata has invalid creditsAmount")
	}

	externalRef := strings.TrimSpace(event.Data.Object.ID)
	if externalRef == "" {
		externalRef = strings.TrimSpace(event.ID)
	}

	result, err := r.ledger.Grant(ctx, userID, amount, externalRef, map[string]any{
		"event_id":   event.ID,
		"event_type": event.Type,
	})
	if err != nil {
		return Ack{}, err
	}
	if !result.Applied {
		r.logger.Info("payments: duplicate notification acknowledged",
			"event_id", event.ID, "external_ref", externalRef)
	}
	return Ack{Received: true, Granted: result.Applied}, nil
}

func (r *Reconciler) verifySignature(rawBody []byte, signatureHeader string) error {
	signature := strings.TrimSpace(signatureHeader)
	if signature == "" {
		return core.NewSignatureError("payments: signature header is required")
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return core.NewSignatureError("payments: signature is not valid hex")
	}
	mac := hmac.New(sha256.New, []byte(r.secret))
	_, _ = mac.Write(rawBody)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return core.NewSignatureError("payments: signature verification failed")
	}
	return nil
}

// SignBody computes the signature the provider would attach; used by tests
// and local tooling.
func SignBody(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	_, _ = mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseCreditsAmount(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("payments: creditsAmount is required")
	}
	amount, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || amount == 0 {
		return 0, fmt.Errorf("payments: creditsAmount must be a positive integer")
	}
	return uint(amount), nil
}
