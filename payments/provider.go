// Package payments integrates the external checkout provider: creating
// hosted checkout sessions and reconciling completion notifications into
// credit grants exactly once per external reference.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-arcade/core"
)

const defaultClientTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 1 << 20 // 1 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the checkout provider's REST API.
type Client struct {
	httpClient HTTPDoer
	baseURL    string
	apiKey     string
	bodyLimit  int64
}

type ClientOption func(*Client)

func WithHTTPClient(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		if doer != nil {
			c.httpClient = doer
		}
	}
}

func NewClient(baseURL, apiKey string, options ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, core.NewPaymentUnavailableError("payments: provider base url is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, core.NewPaymentUnavailableError("payments: provider api key is required")
	}
	client := &Client{
		httpClient: &http.Client{Timeout: defaultClientTimeout},
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		bodyLimit:  defaultResponseBodyLimit,
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// CheckoutSession is the provider-hosted checkout the player is redirected
// to; SessionID doubles as the grant idempotency key when the completion
// notification arrives.
type CheckoutSession struct {
	SessionID string `json:"id"`
	URL       string `json:"url"`
}

type checkoutSessionRequest struct {
	UserID     string `json:"client_reference_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// CreateCheckoutSession opens a hosted checkout for the user. Provider
// failures map to the external error category, never to internal ones, so
// the HTTP surface reports 502 rather than blaming this process.
func (c *Client) CreateCheckoutSession(ctx context.Context, userID, successURL, cancelURL string) (CheckoutSession, error) {
	if c == nil || c.httpClient == nil {
		return CheckoutSession{}, core.NewPaymentUnavailableError("payments: client is not configured")
	}
	userID, err := core.NormalizeUserID(userID)
	if err != nil {
		return CheckoutSession{}, core.NewBadInputError(err.Error())
	}

	body, err := json.Marshal(checkoutSessionRequest{
		UserID:     userID,
		SuccessURL: strings.TrimSpace(successURL),
		CancelURL:  strings.TrimSpace(cancelURL),
	})
	if err != nil {
		return CheckoutSession{}, core.ArcadeErrorMapper(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return CheckoutSession{}, core.ArcadeErrorMapper(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return CheckoutSession{}, core.NewPaymentUnavailableError(
			fmt.Sprintf("payments: provider request failed: %v", err))
	}
	defer func() { _ = res.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(res.Body, c.bodyLimit))
	if err != nil {
		return CheckoutSession{}, core.NewPaymentUnavailableError(
			fmt.Sprintf("payments: read provider response: %v", err))
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return CheckoutSession{}, core.NewPaymentUnavailableError(
			fmt.Sprintf("payments: provider returned status %d", res.StatusCode))
	}

	var session CheckoutSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return CheckoutSession{}, core.NewPaymentUnavailableError("payments: malformed provider response")
	}
	if strings.TrimSpace(session.SessionID) == "" || strings.TrimSpace(session.URL) == "" {
		return CheckoutSession{}, core.NewPaymentUnavailableError("payments: provider response missing session fields")
	}
	return session, nil
}

// The process-wide client is constructed lazily on first use and reused.
// Configure must run before Default; Default fails closed when the
// configuration is absent rather than constructing a half-configured client.
var (
	defaultMu     sync.Mutex
	defaultConfig *core.PaymentsConfig
	defaultClient *Client
)

// Configure records the provider configuration for the lazy default client.
// Calling it again resets the cached client so tests can reconfigure.
func Configure(cfg core.PaymentsConfig) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	copied := cfg
	defaultConfig = &copied
	defaultClient = nil
}

// Default returns the shared client, constructing it on first use.
func Default() (*Client, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient != nil {
		return defaultClient, nil
	}
	if defaultConfig == nil {
		return nil, core.NewPaymentUnavailableError("payments: provider is not configured")
	}
	client, err := NewClient(defaultConfig.BaseURL, defaultConfig.APIKey)
	if err != nil {
		return nil, err
	}
	defaultClient = client
	return defaultClient, nil
}

// ValidateRedirectURL enforces the checkout redirect host allow-list. It
// runs before any provider call; a non-matching host never leaves the
// process.
func ValidateRedirectURL(rawURL string, allowedHosts []string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return core.NewBadInputError("payments: redirect url is malformed")
	}
	host := strings.ToLower(parsed.Hostname())
	for _, allowed := range allowedHosts {
		if host == strings.ToLower(strings.TrimSpace(allowed)) {
			return nil
		}
	}
	return core.NewBadInputError(
		fmt.Sprintf("payments: redirect host %q is not allow-listed", host))
}
