package accounts

import (
	"context"
	"net/mail"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// MaxLoginAttempts is the maximum number of failed attempts an account gets
// inside the cooldown window.
var MaxLoginAttempts = 5

// CoolDownPeriod is the window in which failed attempts accumulate.
var CoolDownPeriod = "24h"

// Authenticator verifies credentials and issues session assertions. There
// is no server side session store: an assertion stays valid until its
// natural expiry (see SECURITY.md).
type Authenticator struct {
	repo   RepositoryManager
	codec  *TokenCodec
	logger Logger
}

func NewAuthenticator(repo RepositoryManager, codec *TokenCodec) *Authenticator {
	return &Authenticator{
		repo:   repo,
		codec:  codec,
		logger: defLogger{},
	}
}

func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Codec exposes the TokenCodec for verification middleware.
func (a *Authenticator) Codec() *TokenCodec {
	return a.codec
}

// Login authenticates an email or username plus password. Unknown
// identifiers and wrong passwords fail identically with
// ErrInvalidCredentials; ErrAccountDeactivated surfaces only after the
// credential matched, so pre-auth callers cannot probe account status.
func (a *Authenticator) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	account, err := a.findByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// Burn a comparison so the miss path costs the same as a
			// wrong password.
			_ = ComparePasswordAndHash(password, dummyPasswordHash)
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account during login")
	}

	if account.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*account.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to calculate login cooldown")
		}
		if expired {
			account.LoginAttempts = 0
		}
	}

	if account.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if trackErr := a.repo.Accounts().TrackAttemptedLogin(ctx, account); trackErr != nil {
			a.logger.Error("failed to track login attempt", "error", trackErr)
		}
		return nil, ErrInvalidCredentials
	}

	if !account.Active {
		return nil, ErrAccountDeactivated
	}

	if err := a.repo.Accounts().TrackSuccessfulLogin(ctx, account); err != nil {
		a.logger.Error("failed to track successful login", "error", err)
	}

	token, err := a.codec.SignAssertion(account.ID, account.Role, 0)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Account: account, Token: token}, nil
}

// AccountFromAssertion verifies a signed assertion and loads its account.
func (a *Authenticator) AccountFromAssertion(ctx context.Context, signed string) (*Account, error) {
	claims, err := a.codec.VerifyAssertion(signed)
	if err != nil {
		return nil, err
	}

	id, err := claims.AccountID()
	if err != nil {
		return nil, ErrAssertionInvalid
	}

	account, err := a.repo.Accounts().GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account from assertion")
	}

	return account, nil
}

func (a *Authenticator) findByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	identifier = strings.TrimSpace(identifier)
	if isEmail(identifier) {
		return a.repo.Accounts().GetByEmail(ctx, identifier)
	}
	return a.repo.Accounts().GetByUsername(ctx, identifier)
}

func isEmail(s string) bool {
	_, err := mail.ParseAddress(s)
	return err == nil
}
