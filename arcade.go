package arcade

import (
	"context"

	"github.com/goliatone/go-arcade/core"
)

type Config = core.Config

type TokenConfig = core.TokenConfig
type PaymentsConfig = core.PaymentsConfig
type RateLimitConfig = core.RateLimitConfig

type ConfigProvider = core.ConfigProvider
type OptionsResolver = core.OptionsResolver

type StoreProvider = core.StoreProvider
type CreditStore = core.CreditStore
type ContinueTokenStore = core.ContinueTokenStore
type SessionStore = core.SessionStore
type SaveStore = core.SaveStore

type Credits = core.Credits
type ContinueGrant = core.ContinueGrant
type SaveSnapshot = core.SaveSnapshot

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Setup resolves configuration through the provider and resolver layers,
// then builds the application with the merged result. Runtime overrides win
// over loaded configuration, which wins over defaults.
func Setup(ctx context.Context, provider ConfigProvider, runtime Config, options ...Option) (*App, error) {
	defaults := core.DefaultConfig()
	loaded := defaults
	if provider != nil {
		var err error
		loaded, err = provider.Load(ctx, defaults)
		if err != nil {
			return nil, err
		}
	}
	resolved, err := core.GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		return nil, err
	}
	return New(resolved, options...)
}
