package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-arcade/core"
)

var (
	_ gocmd.Querier[GetCreditsMessage, core.Credits]                   = (*GetCreditsQuery)(nil)
	_ gocmd.Querier[ListTransactionsMessage, []core.CreditTransaction] = (*ListTransactionsQuery)(nil)
	_ gocmd.Querier[LoadSaveMessage, core.SaveSnapshot]                = (*LoadSaveQuery)(nil)
)
