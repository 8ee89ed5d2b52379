package query

import (
	"strings"
)

const (
	TypeGetCredits       = "arcade.query.credits.get"
	TypeListTransactions = "arcade.query.transactions.list"
	TypeLoadSave         = "arcade.query.save.load"
)

type GetCreditsMessage struct {
	UserID string
}

func (GetCreditsMessage) Type() string { return TypeGetCredits }

func (m GetCreditsMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}

type ListTransactionsMessage struct {
	UserID string
	// Limit caps the page size; zero or negative asks the reader for its
	// default page.
	Limit int
}

func (ListTransactionsMessage) Type() string { return TypeListTransactions }

func (m ListTransactionsMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}

type LoadSaveMessage struct {
	UserID string
}

func (LoadSaveMessage) Type() string { return TypeLoadSave }

func (m LoadSaveMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}
