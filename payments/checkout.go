package payments

import (
	"context"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-arcade/core"
)

// CheckoutService validates redirect targets and opens provider checkout
// sessions. The allow-list check always runs before the provider is
// contacted.
type CheckoutService struct {
	allowedHosts []string
	client       func() (*Client, error)
	logger       core.Logger
}

type CheckoutOption func(*CheckoutService)

func WithCheckoutLogger(logger core.Logger) CheckoutOption {
	return func(s *CheckoutService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCheckoutClient overrides the lazy default client; tests inject a fake.
func WithCheckoutClient(client *Client) CheckoutOption {
	return func(s *CheckoutService) {
		if client != nil {
			s.client = func() (*Client, error) { return client, nil }
		}
	}
}

func NewCheckoutService(allowedHosts []string, options ...CheckoutOption) (*CheckoutService, error) {
	hosts := make([]string, 0, len(allowedHosts))
	for _, host := range allowedHosts {
		if trimmed := strings.TrimSpace(host); trimmed != "" {
			hosts = append(hosts, trimmed)
		}
	}
	if len(hosts) == 0 {
		return nil, core.NewInternalError("payments: checkout requires at least one allow-listed host")
	}
	service := &CheckoutService{
		allowedHosts: hosts,
		client:       Default,
		logger:       glog.Nop(),
	}
	for _, option := range options {
		option(service)
	}
	return service, nil
}

// BeginCheckout validates both redirect URLs against the allow-list, then
// asks the provider for a hosted session.
func (s *CheckoutService) BeginCheckout(ctx context.Context, userID, successURL, cancelURL string) (CheckoutSession, error) {
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return CheckoutSession{}, core.NewBadInputError(err.Error())
	}
	if err := ValidateRedirectURL(successURL, s.allowedHosts); err != nil {
		return CheckoutSession{}, err
	}
	if err := ValidateRedirectURL(cancelURL, s.allowedHosts); err != nil {
		return CheckoutSession{}, err
	}

	client, err := s.client()
	if err != nil {
		return CheckoutSession{}, err
	}
	session, err := client.CreateCheckoutSession(ctx, userID, successURL, cancelURL)
	if err != nil {
		return CheckoutSession{}, err
	}
	s.logger.Info("payments: checkout session opened",
		"user_id", userID, "session_id", session.SessionID)
	return session, nil
}
