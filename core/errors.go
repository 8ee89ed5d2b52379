package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ArcadeErrorBadInput            = "ARCADE_BAD_INPUT"
	ArcadeErrorUnauthorized        = "ARCADE_UNAUTHORIZED"
	ArcadeErrorInsufficientCredits = "ARCADE_INSUFFICIENT_CREDITS"
	ArcadeErrorContinueToken       = "ARCADE_CONTINUE_TOKEN_INVALID"
	ArcadeErrorNoSave              = "ARCADE_NO_SAVE"
	ArcadeErrorWriteConflict       = "ARCADE_WRITE_CONFLICT"
	ArcadeErrorRateLimited         = "ARCADE_RATE_LIMITED"
	ArcadeErrorSignatureInvalid    = "ARCADE_SIGNATURE_INVALID"
	ArcadeErrorPaymentUnavailable  = "ARCADE_PAYMENT_UNAVAILABLE"
	ArcadeErrorInternal            = "ARCADE_INTERNAL"
)

// NewBadInputError covers malformed request payloads and failed validation.
func NewBadInputError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ArcadeErrorBadInput)
}

// NewUnauthorizedError covers missing, forged, or expired bearer material.
// Cryptographic failures use this before any storage access happens.
func NewUnauthorizedError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ArcadeErrorUnauthorized)
}

// NewInsufficientCreditsError is terminal: both buckets were empty when the
// spend was attempted.
func NewInsufficientCreditsError(userID string) *goerrors.Error {
	return goerrors.New("credits: no credits remaining", goerrors.CategoryOperation).
		WithCode(http.StatusPaymentRequired).
		WithTextCode(ArcadeErrorInsufficientCredits).
		WithMetadata(map[string]any{"user_id": strings.TrimSpace(userID)})
}

// NewContinueTokenError deliberately does not reveal whether the token was
// unknown, expired, or already used.
func NewContinueTokenError() *goerrors.Error {
	return goerrors.New("continues: token invalid, expired, or already used", goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(ArcadeErrorContinueToken)
}

// NewNoSaveError distinguishes a missing snapshot from credit failures.
func NewNoSaveError(userID string) *goerrors.Error {
	return goerrors.New("continues: no save snapshot to continue from", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ArcadeErrorNoSave).
		WithMetadata(map[string]any{"user_id": strings.TrimSpace(userID)})
}

// NewWriteConflictError is retryable: the conditional write lost its race
// and the caller should re-read and retry the whole operation.
func NewWriteConflictError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(ArcadeErrorWriteConflict)
}

// NewSignatureError rejects an inbound webhook before any business logic.
func NewSignatureError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ArcadeErrorSignatureInvalid)
}

// NewPaymentUnavailableError covers provider outages and misconfiguration.
func NewPaymentUnavailableError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(ArcadeErrorPaymentUnavailable)
}

func NewInternalError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ArcadeErrorInternal)
}

// IsConflict reports whether err is the retryable optimistic-write outcome.
func IsConflict(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == ArcadeErrorWriteConflict
}

// ArcadeErrorMapper normalizes foreign errors into the arcade envelope so
// every error leaving the module carries a category, an HTTP code, and a
// text code.
func ArcadeErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureArcadeEnvelope(richErr)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureArcadeEnvelope(mapped)
}

func ensureArcadeEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = arcadeHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultArcadeTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultArcadeTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ArcadeErrorBadInput
	case goerrors.CategoryAuth:
		return ArcadeErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ArcadeErrorContinueToken
	case goerrors.CategoryNotFound:
		return ArcadeErrorNoSave
	case goerrors.CategoryConflict:
		return ArcadeErrorWriteConflict
	case goerrors.CategoryRateLimit:
		return ArcadeErrorRateLimited
	case goerrors.CategoryExternal:
		return ArcadeErrorPaymentUnavailable
	default:
		return ArcadeErrorInternal
	}
}

func arcadeHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
