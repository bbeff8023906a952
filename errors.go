package accounts

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds       = "invalid_credentials"
	TextCodeAccountDeactivated = "account_deactivated"
	TextCodeEmailTaken         = "registration_email_taken"
	TextCodeResendable         = "registration_resendable"
	TextCodeUsernameTaken      = "username_taken"
	TextCodeTokenInvalid       = "token_invalid_or_expired"
	TextCodePasswordMismatch   = "password_mismatch"
	TextCodeDeliveryFailed     = "email_delivery_failed"
	TextCodeAccountNotFound    = "account_not_found"
	TextCodeAssertionExpired   = "assertion_expired"
	TextCodeAssertionInvalid   = "assertion_invalid"
	TextCodeTooManyAttempts    = "too_many_login_attempts"
)

// ErrInvalidCredentials is returned for both unknown identifiers and bad
// passwords so login never acts as an account existence oracle.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrAccountDeactivated is returned only after a successful credential match.
var ErrAccountDeactivated = errors.New("account is deactivated", errors.CategoryAuth).
	WithTextCode(TextCodeAccountDeactivated).
	WithCode(errors.CodeForbidden)

// ErrEmailTaken is returned when a registration claim hits an active account.
var ErrEmailTaken = errors.New("an account with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrRegistrationResendable signals an inactive account already holds the
// email; callers should offer a resend instead of a fresh claim.
var ErrRegistrationResendable = errors.New("registration already in progress for this email", errors.CategoryConflict).
	WithTextCode(TextCodeResendable).
	WithCode(errors.CodeConflict)

// ErrUsernameTaken is returned when the requested username is held by
// another account, compared case-insensitively.
var ErrUsernameTaken = errors.New("username is already taken", errors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(errors.CodeConflict)

// ErrTokenInvalidOrExpired covers verification and reset tokens that are
// unknown, already consumed, or past their expiry. Single-use tokens fail
// with this on the second redemption.
var ErrTokenInvalidOrExpired = errors.New("token is invalid or has expired", errors.CategoryValidation).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeBadRequest)

// ErrPasswordMismatch is returned when password and confirmation differ.
var ErrPasswordMismatch = errors.New("password confirmation does not match", errors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(errors.CodeBadRequest)

// ErrDeliveryFailed is returned after email delivery fails and any
// provisional state created for the message has been rolled back.
var ErrDeliveryFailed = errors.New("could not deliver email", errors.CategoryOperation).
	WithTextCode(TextCodeDeliveryFailed).
	WithCode(errors.CodeInternal)

// ErrAccountNotFound is returned by flows that intentionally reveal account
// existence, such as password reset requests.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrAssertionExpired is returned when a session assertion is past expiry.
var ErrAssertionExpired = errors.New("session assertion expired", errors.CategoryAuth).
	WithTextCode(TextCodeAssertionExpired).
	WithCode(errors.CodeUnauthorized)

// ErrAssertionInvalid is returned for bad signatures or malformed payloads.
var ErrAssertionInvalid = errors.New("session assertion invalid", errors.CategoryAuth).
	WithTextCode(TextCodeAssertionInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts throttles repeated failed logins inside the
// cooldown window.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)
