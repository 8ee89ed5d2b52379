package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults, loaded configuration, and runtime
// overrides with deterministic precedence: defaults < config < runtime.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	token := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Token.Secret) != "" {
		token["secret"] = cfg.Token.Secret
	}
	if includeZero || cfg.Token.ContinueTTL != 0 {
		token["continue_ttl"] = cfg.Token.ContinueTTL
	}
	if includeZero || cfg.Token.SaveSessionTTL != 0 {
		token["save_session_ttl"] = cfg.Token.SaveSessionTTL
	}
	if len(token) > 0 {
		layer["token"] = token
	}

	payments := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Payments.WebhookSecret) != "" {
		payments["webhook_secret"] = cfg.Payments.WebhookSecret
	}
	if includeZero || strings.TrimSpace(cfg.Payments.APIKey) != "" {
		payments["api_key"] = cfg.Payments.APIKey
	}
	if includeZero || strings.TrimSpace(cfg.Payments.BaseURL) != "" {
		payments["base_url"] = cfg.Payments.BaseURL
	}
	if includeZero || len(cfg.Payments.AllowedRedirectHosts) > 0 {
		payments["allowed_redirect_hosts"] = append([]string(nil), cfg.Payments.AllowedRedirectHosts...)
	}
	if len(payments) > 0 {
		layer["payments"] = payments
	}

	rateLimit := map[string]any{}
	if includeZero || cfg.RateLimit.ContinuePerMinute != 0 {
		rateLimit["continue_per_minute"] = cfg.RateLimit.ContinuePerMinute
	}
	if includeZero || cfg.RateLimit.CheckoutPerMinute != 0 {
		rateLimit["checkout_per_minute"] = cfg.RateLimit.CheckoutPerMinute
	}
	if len(rateLimit) > 0 {
		layer["rate_limit"] = rateLimit
	}

	return layer
}

// NowFunc is the injectable clock every time-sensitive component accepts so
// expiry tests never sleep.
type NowFunc func() time.Time

func ResolveNow(now NowFunc) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}
