package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// PasswordReset issues and redeems single use reset tokens.
type PasswordReset struct {
	repo     RepositoryManager
	mailer   Mailer
	codec    *TokenCodec
	tokenTTL time.Duration
	logger   Logger
}

func NewPasswordReset(repo RepositoryManager, mailer Mailer, codec *TokenCodec, cfg Config) *PasswordReset {
	return &PasswordReset{
		repo:     repo,
		mailer:   mailer,
		codec:    codec,
		tokenTTL: cfg.GetResetTokenTTL(),
		logger:   defLogger{},
	}
}

func (p *PasswordReset) WithLogger(logger Logger) *PasswordReset {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Request stores a reset token digest on the account and emails the raw
// token. Unlike login this flow reveals whether the email exists; that is a
// product decision, not an oversight. A failed send clears the token fields
// before the error returns.
func (p *PasswordReset) Request(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	account, err := p.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	raw, err := NewOpaqueToken()
	if err != nil {
		return err
	}

	expires := time.Now().Add(p.tokenTTL)
	err = p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return p.repo.Accounts().SetResetTokenTx(ctx, tx, account.ID, HashToken(raw), expires)
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset token")
	}

	if err := p.mailer.SendPasswordResetEmail(ctx, email, account.DisplayName(), raw); err != nil {
		p.logger.Error("password reset email delivery failed", "email", email, "error", err)
		rollback := func(ctx context.Context, tx bun.Tx) error {
			return p.repo.Accounts().ClearResetTokenTx(ctx, tx, account.ID)
		}
		if rbErr := p.repo.RunInTx(ctx, nil, rollback); rbErr != nil {
			p.logger.Error("failed to roll back reset token", "email", email, "error", rbErr)
		}
		return ErrDeliveryFailed
	}

	return nil
}

// Redeem consumes a reset token, sets the new password and issues a session
// assertion. The token is cleared atomically with the lookup so it cannot be
// redeemed twice, even under concurrent requests.
func (p *PasswordReset) Redeem(ctx context.Context, input RedeemResetInput) (*AuthResult, error) {
	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid reset input")
	}

	digest := HashToken(input.Token)
	account := &Account{}

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = p.repo.Accounts().GetByResetDigestTx(ctx, tx, digest)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrTokenInvalidOrExpired
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
		}

		if input.Password != input.ConfirmPassword {
			return ErrPasswordMismatch
		}

		hash, err := HashPassword(input.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if account, err = p.repo.Accounts().ConsumeResetTokenTx(ctx, tx, digest); err != nil {
			if goerrors.IsNotFound(err) {
				return ErrTokenInvalidOrExpired
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume reset token")
		}

		_, err = tx.NewUpdate().Model((*Account)(nil)).
			Set("password_hash = ?", hash).
			Where("id = ?", account.ID).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
		}

		account.PasswordHash = hash
		account.ResetDigest = ""
		account.ResetExpires = nil

		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := p.codec.SignAssertion(account.ID, account.Role, 0)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Account: account, Token: token}, nil
}
