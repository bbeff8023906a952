package social

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

	accounts "github.com/fitstack/go-accounts"
)

// linkUsernameAttempts bounds collision retries while deriving a username
// from the email local part for a provisioned account.
const linkUsernameAttempts = 5

// Result is the outcome of resolving an external identity.
type Result struct {
	Account *accounts.Account
	Created bool
	Linked  bool
}

// Linker reconciles a verified external identity with the account store:
// match by provider id, else link by email, else provision a new account.
type Linker struct {
	repo   accounts.RepositoryManager
	logger accounts.Logger
}

func NewLinker(repo accounts.RepositoryManager) *Linker {
	return &Linker{
		repo:   repo,
		logger: accounts.DefaultLogger(),
	}
}

func (l *Linker) WithLogger(logger accounts.Logger) *Linker {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Resolve returns the account for an external identity, creating or linking
// one as needed. The caller must have verified the identity already; Resolve
// never talks to the provider.
func (l *Linker) Resolve(ctx context.Context, identity *ExternalIdentity) (*Result, error) {
	if identity == nil || identity.Provider == "" || identity.ExternalID == "" {
		return nil, ErrExternalAuthFailed
	}

	result := &Result{}

	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		repo := l.repo.Accounts()

		account, err := repo.GetByExternalIDTx(ctx, tx, identity.Provider, identity.ExternalID)
		if err == nil {
			result.Account, err = l.refreshTx(ctx, tx, account, identity)
			return err
		}
		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up external identity")
		}

		if identity.Email != "" {
			account, err = repo.GetByEmailTx(ctx, tx, identity.Email)
			if err == nil {
				result.Account, err = l.linkTx(ctx, tx, account, identity)
				result.Linked = err == nil
				return err
			}
			if !repository.IsRecordNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account by email")
			}
		}

		result.Account, err = l.provisionTx(ctx, tx, identity)
		result.Created = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}

	switch {
	case result.Created:
		l.logger.Info("provisioned account %s from %s identity", result.Account.ID, identity.Provider)
	case result.Linked:
		l.logger.Info("linked %s identity to account %s", identity.Provider, result.Account.ID)
	}

	return result, nil
}

// refreshTx updates cached profile fields on an already linked account. An
// externally verified email upgrades the local flag only when it is
// currently unverified.
func (l *Linker) refreshTx(ctx context.Context, tx bun.IDB, account *accounts.Account, identity *ExternalIdentity) (*accounts.Account, error) {
	q := tx.NewUpdate().Model((*accounts.Account)(nil)).
		Where("id = ?", account.ID)

	changed := false

	if identity.PictureURL != "" && identity.PictureURL != account.AvatarURL {
		q = q.Set("avatar_url = ?", identity.PictureURL)
		account.AvatarURL = identity.PictureURL
		changed = true
	}

	if identity.EmailVerified && !account.EmailVerified {
		q = q.Set("is_email_verified = ?", true)
		account.EmailVerified = true
		changed = true
	}

	if !changed {
		return account, nil
	}

	if _, err := q.Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to refresh linked profile")
	}

	return account, nil
}

// linkTx attaches the external identity to an existing local account. The
// password hash is left untouched; the provider tag records dual auth.
func (l *Linker) linkTx(ctx context.Context, tx bun.IDB, account *accounts.Account, identity *ExternalIdentity) (*accounts.Account, error) {
	provider := identity.Provider
	if accounts.HasLocalCredential(account.Provider) && account.PasswordHash != "" {
		provider = accounts.DualProviderTag(identity.Provider)
	}

	emailVerified := account.EmailVerified || identity.EmailVerified

	_, err := tx.NewUpdate().Model((*accounts.Account)(nil)).
		Set("external_provider = ?", identity.Provider).
		Set("external_id = ?", identity.ExternalID).
		Set("provider = ?", provider).
		Set("is_email_verified = ?", emailVerified).
		Where("id = ?", account.ID).
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not link external identity")
	}

	account.ExternalSource = identity.Provider
	account.ExternalID = identity.ExternalID
	account.Provider = provider
	account.EmailVerified = emailVerified

	return account, nil
}

// provisionTx creates a new account from the external identity alone: no
// password, active immediately, email trust per the provider's assertion.
func (l *Linker) provisionTx(ctx context.Context, tx bun.IDB, identity *ExternalIdentity) (*accounts.Account, error) {
	username, err := l.deriveUsernameTx(ctx, tx, identity)
	if err != nil {
		return nil, err
	}

	account := &accounts.Account{
		Email:          accounts.NormalizeEmail(identity.Email),
		Username:       username,
		FirstName:      identity.GivenName,
		LastName:       identity.FamilyName,
		AvatarURL:      identity.PictureURL,
		Role:           accounts.RoleMember,
		Provider:       identity.Provider,
		ExternalSource: identity.Provider,
		ExternalID:     identity.ExternalID,
		Active:         true,
		EmailVerified:  identity.EmailVerified,
	}

	created, err := l.repo.Accounts().CreateTx(ctx, tx, account)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not provision account")
	}

	return created, nil
}

func (l *Linker) deriveUsernameTx(ctx context.Context, tx bun.IDB, identity *ExternalIdentity) (string, error) {
	local := identity.Email
	if i := strings.Index(local, "@"); i > 0 {
		local = local[:i]
	}
	if local == "" {
		local = identity.Provider + "_" + identity.ExternalID
	}
	local = accounts.NormalizeUsername(local)

	for attempt := 0; attempt < linkUsernameAttempts; attempt++ {
		candidate := local + "_" + uniquenessSuffix()

		taken, err := l.repo.Accounts().UsernameTakenTx(ctx, tx, candidate, uuid.Nil)
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", goerrors.New("exhausted username attempts", goerrors.CategoryInternal)
}

// uniquenessSuffix combines a timestamp with randomness so usernames derived
// from the same email local part stay distinct.
func uniquenessSuffix() string {
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	return time.Now().UTC().Format("060102150405") + "_" + hex.EncodeToString(b)
}
