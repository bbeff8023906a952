package accounts_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	accounts "github.com/fitstack/go-accounts"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateAccounts = `CREATE TABLE accounts (
    id TEXT NOT NULL PRIMARY KEY,
    role TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    username TEXT UNIQUE,
    first_name TEXT,
    last_name TEXT,
    avatar_url TEXT,
    height_cm REAL,
    weight_kg REAL,
    password_hash TEXT,
    provider TEXT NOT NULL,
    external_provider TEXT,
    external_id TEXT,
    is_active BOOLEAN NOT NULL DEFAULT FALSE,
    is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
    verify_token_digest TEXT,
    verify_token_expires_at TIMESTAMP NULL,
    reset_token_digest TEXT,
    reset_token_expires_at TIMESTAMP NULL,
    login_attempts INTEGER NOT NULL DEFAULT 0,
    login_attempt_at TIMESTAMP NULL,
    loggedin_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP NULL,
    CONSTRAINT ux_accounts_external_identity UNIQUE (external_provider, external_id)
);`

	sqliteCreatePending = `CREATE TABLE pending_registrations (
    id TEXT NOT NULL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    token_digest TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
)

func setupRepoManager(t *testing.T) accounts.RepositoryManager {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateAccounts)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreatePending)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	return accounts.NewRepositoryManager(bunDB)
}

func newTestConfig() *accounts.ConfigObject {
	return &accounts.ConfigObject{
		SigningKey:           "test-signing-key",
		Issuer:               "fitstack-test",
		Audience:             []string{"fitstack-api"},
		AssertionTTL:         time.Hour,
		RegistrationTokenTTL: time.Hour,
		ResetTokenTTL:        time.Hour,
	}
}

func newTestCodec() *accounts.TokenCodec {
	return accounts.NewTokenCodec(newTestConfig())
}

// seedAccount inserts an account ready for password login unless the caller
// mutates it first.
func seedAccount(t *testing.T, repo accounts.RepositoryManager, mutate func(*accounts.Account)) *accounts.Account {
	t.Helper()

	hash, err := accounts.HashPassword("correct horse battery")
	require.NoError(t, err)

	account := &accounts.Account{
		Email:         "seed@example.com",
		Username:      "seeduser",
		Role:          accounts.RoleMember,
		Provider:      accounts.ProviderLocal,
		PasswordHash:  hash,
		Active:        true,
		EmailVerified: true,
	}
	if mutate != nil {
		mutate(account)
	}

	created, err := repo.Accounts().Create(context.Background(), account)
	require.NoError(t, err)
	return created
}

// MockMailer implements accounts.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendRegistrationEmail(ctx context.Context, email, rawToken string) error {
	args := m.Called(ctx, email, rawToken)
	return args.Error(0)
}

func (m *MockMailer) SendResendEmail(ctx context.Context, email, rawToken string) error {
	args := m.Called(ctx, email, rawToken)
	return args.Error(0)
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, email, displayName, rawToken string) error {
	args := m.Called(ctx, email, displayName, rawToken)
	return args.Error(0)
}

func (m *MockMailer) SendWelcomeEmail(ctx context.Context, email, displayName string) error {
	args := m.Called(ctx, email, displayName)
	return args.Error(0)
}

func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, email, displayName, rawToken string) error {
	args := m.Called(ctx, email, displayName, rawToken)
	return args.Error(0)
}

// capturingMailer records the tokens it was asked to deliver so tests can
// redeem them.
type capturingMailer struct {
	registrationTokens []string
	resendTokens       []string
	resetTokens        []string
	welcomeEmails      []string
	failNext           error
}

func (m *capturingMailer) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *capturingMailer) SendRegistrationEmail(ctx context.Context, email, rawToken string) error {
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.registrationTokens = append(m.registrationTokens, rawToken)
	return nil
}

func (m *capturingMailer) SendResendEmail(ctx context.Context, email, rawToken string) error {
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.resendTokens = append(m.resendTokens, rawToken)
	return nil
}

func (m *capturingMailer) SendVerificationEmail(ctx context.Context, email, displayName, rawToken string) error {
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.resendTokens = append(m.resendTokens, rawToken)
	return nil
}

func (m *capturingMailer) SendWelcomeEmail(ctx context.Context, email, displayName string) error {
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.welcomeEmails = append(m.welcomeEmails, email)
	return nil
}

func (m *capturingMailer) SendPasswordResetEmail(ctx context.Context, email, displayName, rawToken string) error {
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.resetTokens = append(m.resetTokens, rawToken)
	return nil
}
