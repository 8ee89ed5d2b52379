package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ CreditStore        = (*MemoryCreditStore)(nil)
	_ ContinueTokenStore = (*MemoryContinueTokenStore)(nil)
	_ SessionStore       = (*MemorySessionStore)(nil)
	_ SaveStore          = (*MemorySaveStore)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
