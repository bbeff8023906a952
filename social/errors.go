package social

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound = "social_provider_not_found"
	TextCodeInvalidState     = "social_invalid_state"
	TextCodeStateExpired     = "social_state_expired"
	TextCodeExternalAuth     = "social_external_auth_failed"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("social provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrExternalAuthFailed covers a failed code exchange or identity token
// verification. No local state is created on this path.
var ErrExternalAuthFailed = errors.New("external identity verification failed", errors.CategoryAuth).
	WithTextCode(TextCodeExternalAuth).
	WithCode(errors.CodeUnauthorized)
