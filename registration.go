package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// tempUsernameAttempts bounds collision retries while generating the
// placeholder username for a freshly verified account.
const tempUsernameAttempts = 5

// Registration drives the three step signup flow:
//
//	NoRecord -> Pending -> Inactive(emailVerified) -> Active
//
// Start claims an email, Confirm redeems the emailed token and creates the
// inactive account, Complete sets username and password and activates it.
type Registration struct {
	repo     RepositoryManager
	mailer   Mailer
	codec    *TokenCodec
	tokenTTL time.Duration
	logger   Logger
}

func NewRegistration(repo RepositoryManager, mailer Mailer, codec *TokenCodec, cfg Config) *Registration {
	return &Registration{
		repo:     repo,
		mailer:   mailer,
		codec:    codec,
		tokenTTL: cfg.GetRegistrationTokenTTL(),
		logger:   defLogger{},
	}
}

func (r *Registration) WithLogger(logger Logger) *Registration {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Start claims an email address. An active account for the email fails with
// ErrEmailTaken; an inactive one fails with ErrRegistrationResendable so the
// caller can offer a resend. Otherwise any stale claim is superseded and a
// fresh verification token is emailed. If delivery fails the claim is
// deleted again before the error returns.
func (r *Registration) Start(ctx context.Context, input StartRegistrationInput) error {
	if err := input.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration input")
	}

	email := NormalizeEmail(input.Email)

	if existing, err := r.repo.Accounts().GetByEmail(ctx, email); err == nil {
		if existing.Active {
			return ErrEmailTaken
		}
		return ErrRegistrationResendable
	} else if !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
	}

	raw, err := NewOpaqueToken()
	if err != nil {
		return err
	}

	pending := &PendingRegistration{
		Email:       email,
		TokenDigest: HashToken(raw),
		ExpiresAt:   time.Now().Add(r.tokenTTL),
	}

	err = r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := r.repo.PendingRegistrations().ReplaceTx(ctx, tx, pending); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create registration claim")
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Delivery is a blocking external call; a failure must not leave the
	// provisional claim behind.
	if err := r.mailer.SendRegistrationEmail(ctx, email, raw); err != nil {
		r.logger.Error("registration email delivery failed", "email", email, "error", err)
		if delErr := r.repo.PendingRegistrations().DeleteByEmail(ctx, email); delErr != nil {
			r.logger.Error("failed to roll back registration claim", "email", email, "error", delErr)
		}
		return ErrDeliveryFailed
	}

	return nil
}

// Confirm redeems a verification token from the registration email. On
// success it creates the inactive account that anchors the same token digest
// until Complete redeems it, and removes the pending claim. This is the only
// place the registration path creates an account.
func (r *Registration) Confirm(ctx context.Context, rawToken string) (*Account, error) {
	digest := HashToken(rawToken)
	account := &Account{}

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		pending, err := r.repo.PendingRegistrations().ClaimByDigestTx(ctx, tx, digest)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrTokenInvalidOrExpired
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem registration claim")
		}

		// A concurrent registration may have created the account already.
		if _, err := r.repo.Accounts().GetByEmailTx(ctx, tx, pending.Email); err == nil {
			return ErrEmailTaken
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		username, err := r.tempUsernameTx(ctx, tx, pending.Email)
		if err != nil {
			return err
		}

		expires := pending.ExpiresAt
		account = &Account{
			Email:         pending.Email,
			Username:      username,
			Role:          RoleMember,
			Provider:      ProviderLocal,
			Active:        false,
			EmailVerified: true,
			// The pending record's digest is carried onto the account so the
			// activation step redeems the same raw token the email carried.
			VerifyDigest:  pending.TokenDigest,
			VerifyExpires: &expires,
		}

		if account, err = r.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// Complete activates a verified account: it redeems the verification token a
// second time, sets the chosen username and password, and issues a session
// assertion. The token is cleared atomically so it cannot be redeemed twice.
func (r *Registration) Complete(ctx context.Context, input CompleteRegistrationInput) (*AuthResult, error) {
	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid activation input")
	}

	digest := HashToken(input.Token)
	account := &Account{}

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = r.repo.Accounts().GetByVerifyDigestTx(ctx, tx, digest)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrTokenInvalidOrExpired
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification token")
		}

		// Validation failures must leave the account inactive and the token
		// live, so they run before the consuming update.
		if input.Password != input.ConfirmPassword {
			return ErrPasswordMismatch
		}

		username := NormalizeUsername(input.Username)
		taken, err := r.repo.Accounts().UsernameTakenTx(ctx, tx, username, account.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		}
		if taken {
			return ErrUsernameTaken
		}

		hash, err := HashPassword(input.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		if account, err = r.repo.Accounts().ConsumeVerificationTokenTx(ctx, tx, digest); err != nil {
			if goerrors.IsNotFound(err) {
				return ErrTokenInvalidOrExpired
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification token")
		}

		_, err = tx.NewUpdate().Model((*Account)(nil)).
			Set("username = ?", username).
			Set("password_hash = ?", hash).
			Set("is_active = ?", true).
			Set("first_name = ?", input.FirstName).
			Set("last_name = ?", input.LastName).
			Set("height_cm = ?", input.HeightCM).
			Set("weight_kg = ?", input.WeightKG).
			Where("id = ?", account.ID).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
		}

		account.Username = username
		account.PasswordHash = hash
		account.Active = true
		account.FirstName = input.FirstName
		account.LastName = input.LastName
		account.HeightCM = input.HeightCM
		account.WeightKG = input.WeightKG
		account.VerifyDigest = ""
		account.VerifyExpires = nil

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best effort: a failed welcome email must not fail the activation.
	if err := r.mailer.SendWelcomeEmail(ctx, account.Email, account.DisplayName()); err != nil {
		r.logger.Warn("welcome email delivery failed", "email", account.Email, "error", err)
	}

	token, err := r.codec.SignAssertion(account.ID, account.Role, 0)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Account: account, Token: token}, nil
}

// Resend issues a fresh verification token for an inactive account,
// invalidating whatever token was outstanding. Pending claims restart via
// Start; active accounts have nothing to resend.
func (r *Registration) Resend(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	account, err := r.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if account.Active {
		return ErrEmailTaken
	}

	raw, err := NewOpaqueToken()
	if err != nil {
		return err
	}

	expires := time.Now().Add(r.tokenTTL)
	err = r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return r.repo.Accounts().SetVerificationTokenTx(ctx, tx, account.ID, HashToken(raw), expires)
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification token")
	}

	if err := r.mailer.SendResendEmail(ctx, email, raw); err != nil {
		r.logger.Error("resend email delivery failed", "email", email, "error", err)
		// Clear rather than restore: neither the new token nor the
		// superseded one should stay live after a failed send.
		rollback := func(ctx context.Context, tx bun.Tx) error {
			return r.repo.Accounts().ClearVerificationTokenTx(ctx, tx, account.ID)
		}
		if rbErr := r.repo.RunInTx(ctx, nil, rollback); rbErr != nil {
			r.logger.Error("failed to roll back verification token", "email", email, "error", rbErr)
		}
		return ErrDeliveryFailed
	}

	return nil
}

func (r *Registration) tempUsernameTx(ctx context.Context, tx bun.IDB, email string) (string, error) {
	local := email
	if i := strings.Index(email, "@"); i > 0 {
		local = email[:i]
	}
	local = sanitizeUsernamePart(local)

	for attempt := 0; attempt < tempUsernameAttempts; attempt++ {
		candidate := "temp_" + local + "_" + randomSuffix(4)

		taken, err := r.repo.Accounts().UsernameTakenTx(ctx, tx, candidate, uuid.Nil)
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check temporary username")
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", goerrors.New("exhausted temporary username attempts", goerrors.CategoryInternal)
}

func sanitizeUsernamePart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("150405")))[:n*2]
	}
	return hex.EncodeToString(buf)
}
