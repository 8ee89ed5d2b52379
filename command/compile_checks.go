package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RequestContinueMessage] = (*RequestContinueCommand)(nil)
	_ gocmd.Commander[RedeemContinueMessage]  = (*RedeemContinueCommand)(nil)
	_ gocmd.Commander[GrantCreditsMessage]    = (*GrantCreditsCommand)(nil)
	_ gocmd.Commander[PurgeExpiredMessage]    = (*PurgeExpiredCommand)(nil)
)
