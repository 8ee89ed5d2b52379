package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type creditRecord struct {
	bun.BaseModel `bun:"table:user_credits,alias:uc"`

	UserID        string    `bun:"user_id,pk"`
	FreeRemaining uint      `bun:"free_remaining,notnull"`
	Purchased     uint      `bun:"purchased,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type creditTransactionRecord struct {
	bun.BaseModel `bun:"table:credit_transactions,alias:ct"`

	ID          string         `bun:"id,pk"`
	UserID      string         `bun:"user_id,notnull"`
	Kind        string         `bun:"kind,notnull"`
	Amount      int            `bun:"amount,notnull"`
	ExternalRef *string        `bun:"external_ref"`
	Metadata    map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type continueTokenRecord struct {
	bun.BaseModel `bun:"table:continue_tokens,alias:cot"`

	ID          string    `bun:"id,pk"`
	UserID      string    `bun:"user_id,notnull"`
	Token       string    `bun:"token,notnull"`
	SaveVersion uint      `bun:"save_version,notnull"`
	Consumed    bool      `bun:"consumed,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt   time.Time `bun:"expires_at,notnull"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:rate_limit_states,alias:rls"`

	ID          string    `bun:"id,pk"`
	Operation   string    `bun:"operation,notnull"`
	UserID      string    `bun:"user_id,notnull"`
	Count       int       `bun:"count,notnull"`
	WindowStart time.Time `bun:"window_start,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type saveSessionRecord struct {
	bun.BaseModel `bun:"table:save_sessions,alias:svs"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	Token     string    `bun:"token,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
