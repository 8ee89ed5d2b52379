package core

import (
	"fmt"
	"strings"
	"time"
)

type TokenConfig struct {
	// Secret signs session and continue tokens. Hex or raw; never logged.
	Secret         string        `koanf:"secret" mapstructure:"secret"`
	ContinueTTL    time.Duration `koanf:"continue_ttl" mapstructure:"continue_ttl"`
	SaveSessionTTL time.Duration `koanf:"save_session_ttl" mapstructure:"save_session_ttl"`
}

type PaymentsConfig struct {
	// WebhookSecret verifies provider notifications over the raw body.
	WebhookSecret string `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	APIKey        string `koanf:"api_key" mapstructure:"api_key"`
	BaseURL       string `koanf:"base_url" mapstructure:"base_url"`
	// AllowedRedirectHosts is the checkout redirect allow-list; a success or
	// cancel URL whose host is not listed is rejected before any provider
	// call.
	AllowedRedirectHosts []string `koanf:"allowed_redirect_hosts" mapstructure:"allowed_redirect_hosts"`
}

type RateLimitConfig struct {
	ContinuePerMinute int `koanf:"continue_per_minute" mapstructure:"continue_per_minute"`
	CheckoutPerMinute int `koanf:"checkout_per_minute" mapstructure:"checkout_per_minute"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Token       TokenConfig     `koanf:"token" mapstructure:"token"`
	Payments    PaymentsConfig  `koanf:"payments" mapstructure:"payments"`
	RateLimit   RateLimitConfig `koanf:"rate_limit" mapstructure:"rate_limit"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "arcade",
		Token: TokenConfig{
			ContinueTTL:    5 * time.Minute,
			SaveSessionTTL: 48 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			ContinuePerMinute: 10,
			CheckoutPerMinute: 5,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Token.ContinueTTL <= 0 {
		return fmt.Errorf("core: token.continue_ttl must be positive")
	}
	if c.Token.SaveSessionTTL <= 0 {
		return fmt.Errorf("core: token.save_session_ttl must be positive")
	}
	if c.RateLimit.ContinuePerMinute < 0 || c.RateLimit.CheckoutPerMinute < 0 {
		return fmt.Errorf("core: rate_limit windows cannot be negative")
	}
	return nil
}
