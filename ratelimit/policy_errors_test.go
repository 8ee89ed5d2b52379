package ratelimit

import (
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-arcade/core"
)

func TestThrottledError_ToArcadeError(t *testing.T) {
	throttled := ThrottledError{
		Operation:  OperationContinue,
		UserID:     "usr_1",
		RetryAfter: 42 * time.Second,
	}

	mapped := throttled.ToArcadeError()
	if mapped.Category != goerrors.CategoryRateLimit {
		t.Fatalf("unexpected category %s", mapped.Category)
	}
	if mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected code %d", mapped.Code)
	}
	if mapped.TextCode != core.ArcadeErrorRateLimited {
		t.Fatalf("unexpected text code %s", mapped.TextCode)
	}
	if mapped.Metadata["retry_after_ms"] != int64(42000) {
		t.Fatalf("unexpected retry hint %v", mapped.Metadata["retry_after_ms"])
	}
}
