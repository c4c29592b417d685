package stateguard

import (
	stderrors "errors"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeMissingState     = "stateguard_missing_state"
	TextCodeStateNotFound    = "stateguard_state_not_found"
	TextCodeStateExpired     = "stateguard_state_expired"
	TextCodeTokenMintFailed  = "stateguard_token_mint_failed"
	TextCodeProviderRequired = "stateguard_provider_required"
	TextCodeProviderNotFound = "stateguard_provider_not_found"
)

// ErrMissingState is the rejection for a callback with no state parameter.
var ErrMissingState = errors.New("missing oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingState).
	WithCode(errors.CodeBadRequest)

// ErrStateNotFound is the rejection for a state that was already consumed,
// swept, or never issued.
var ErrStateNotFound = errors.New("unknown oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeStateNotFound).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is the rejection for a state found in the store but older
// than the expiry threshold.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrTokenMintFailed is returned when the secure random source fails. This is
// a process-level condition, not a per-request error.
var ErrTokenMintFailed = errors.New("unable to mint state token", errors.CategoryInternal).
	WithTextCode(TextCodeTokenMintFailed).
	WithCode(errors.CodeInternal)

// ErrProviderRequired is returned when BeginFlow is called without a provider.
var ErrProviderRequired = errors.New("provider is required", errors.CategoryValidation).
	WithTextCode(TextCodeProviderRequired).
	WithCode(errors.CodeBadRequest)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("oauth provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// IsRejection reports whether err is one of the structured callback
// rejection outcomes, as opposed to an infrastructure fault.
func IsRejection(err error) bool {
	return stderrors.Is(err, ErrMissingState) ||
		stderrors.Is(err, ErrStateNotFound) ||
		stderrors.Is(err, ErrStateExpired)
}
