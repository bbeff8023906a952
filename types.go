package accounts

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Mailer is the email delivery collaborator. Implementations own transport
// and templating; workflows only decide whether a failure is fatal.
type Mailer interface {
	SendRegistrationEmail(ctx context.Context, email, rawToken string) error
	SendResendEmail(ctx context.Context, email, rawToken string) error
	SendVerificationEmail(ctx context.Context, email, displayName, rawToken string) error
	SendWelcomeEmail(ctx context.Context, email, displayName string) error
	SendPasswordResetEmail(ctx context.Context, email, displayName, rawToken string) error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// AuthResult is returned by every workflow that ends with an authenticated
// caller: login, password reset, registration completion, and OAuth callback.
type AuthResult struct {
	Account *Account
	Token   string
}

// DefaultLogger returns the printf fallback used when no logger is injected.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
