package sqlstore

import "github.com/goliatone/go-arcade/core"

var (
	_ core.CreditStore        = (*CreditStore)(nil)
	_ core.ContinueTokenStore = (*ContinueTokenStore)(nil)
	_ core.SessionStore       = (*SessionStore)(nil)
	_ core.StoreProvider      = (*RepositoryFactory)(nil)
)
