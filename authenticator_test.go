package accounts_test

import (
	"context"
	"testing"
	"time"

	accounts "github.com/fitstack/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthenticator(t *testing.T) (*accounts.Authenticator, accounts.RepositoryManager) {
	t.Helper()
	repo := setupRepoManager(t)
	return accounts.NewAuthenticator(repo, newTestCodec()), repo
}

func TestLoginByEmail(t *testing.T) {
	auth, repo := newAuthenticator(t)
	account := seedAccount(t, repo, nil)

	result, err := auth.Login(context.Background(), "seed@example.com", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, account.ID, result.Account.ID)
	assert.NotEmpty(t, result.Token)

	claims, err := auth.Codec().VerifyAssertion(result.Token)
	require.NoError(t, err)
	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, account.ID, id)
}

func TestLoginByUsername(t *testing.T) {
	auth, repo := newAuthenticator(t)
	account := seedAccount(t, repo, nil)

	result, err := auth.Login(context.Background(), "SeedUser", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, account.ID, result.Account.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	auth, repo := newAuthenticator(t)
	seedAccount(t, repo, nil)

	_, err := auth.Login(context.Background(), "seed@example.com", "wrong password")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestLoginUnknownIdentifier(t *testing.T) {
	auth, _ := newAuthenticator(t)

	// Unknown identifiers and wrong passwords must be indistinguishable.
	_, err := auth.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	_, err = auth.Login(context.Background(), "nobodyuser", "whatever")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestLoginDeactivatedAccount(t *testing.T) {
	auth, repo := newAuthenticator(t)
	seedAccount(t, repo, func(a *accounts.Account) {
		a.Active = false
	})

	// Status only surfaces after the credential matched.
	_, err := auth.Login(context.Background(), "seed@example.com", "correct horse battery")
	assert.ErrorIs(t, err, accounts.ErrAccountDeactivated)

	_, err = auth.Login(context.Background(), "seed@example.com", "wrong password")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestLoginTracksFailedAttempts(t *testing.T) {
	auth, repo := newAuthenticator(t)
	account := seedAccount(t, repo, nil)

	ctx := context.Background()
	_, err := auth.Login(ctx, "seed@example.com", "wrong password")
	require.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	stored, err := repo.Accounts().GetByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LoginAttempts)
	assert.NotNil(t, stored.LoginAttemptAt)

	// A successful login resets the counter.
	_, err = auth.Login(ctx, "seed@example.com", "correct horse battery")
	require.NoError(t, err)

	stored, err = repo.Accounts().GetByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.NotNil(t, stored.LoggedInAt)
}

func TestLoginThrottledAfterTooManyAttempts(t *testing.T) {
	auth, repo := newAuthenticator(t)
	account := seedAccount(t, repo, func(a *accounts.Account) {
		attemptAt := time.Now()
		a.LoginAttempts = accounts.MaxLoginAttempts + 1
		a.LoginAttemptAt = &attemptAt
	})

	// Even the correct password is rejected inside the cooldown window.
	_, err := auth.Login(context.Background(), account.Email, "correct horse battery")
	assert.ErrorIs(t, err, accounts.ErrTooManyLoginAttempts)
}

func TestLoginCooldownExpiryResetsAttempts(t *testing.T) {
	auth, repo := newAuthenticator(t)
	account := seedAccount(t, repo, func(a *accounts.Account) {
		attemptAt := time.Now().Add(-25 * time.Hour)
		a.LoginAttempts = accounts.MaxLoginAttempts + 1
		a.LoginAttemptAt = &attemptAt
	})

	result, err := auth.Login(context.Background(), account.Email, "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, account.ID, result.Account.ID)
}

func TestAccountFromAssertion(t *testing.T) {
	auth, repo := newAuthenticator(t)
	account := seedAccount(t, repo, nil)

	result, err := auth.Login(context.Background(), account.Email, "correct horse battery")
	require.NoError(t, err)

	got, err := auth.AccountFromAssertion(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, account.Email, got.Email)
}

func TestAccountFromAssertionInvalid(t *testing.T) {
	auth, _ := newAuthenticator(t)

	_, err := auth.AccountFromAssertion(context.Background(), "garbage")
	assert.ErrorIs(t, err, accounts.ErrAssertionInvalid)
}

func TestAccountFromAssertionUnknownAccount(t *testing.T) {
	auth, _ := newAuthenticator(t)

	// Valid signature but the subject was never persisted here.
	signed, err := newTestCodec().SignAssertion(uuid.New(), accounts.RoleMember, 0)
	require.NoError(t, err)

	_, err = auth.AccountFromAssertion(context.Background(), signed)
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}
