package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Token consumption must be read-then-clear atomic per token: a single
// conditional UPDATE keyed on the stored digest and a future expiry, so two
// concurrent redemptions of the same raw value cannot both succeed.
var consumeVerificationTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"verify_token_digest" = NULL,
	"verify_token_expires_at" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND "acc"."is_email_verified" = TRUE
AND "acc"."verify_token_digest" = ?
AND "acc"."verify_token_expires_at" > ?
RETURNING *;`

var consumeResetTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"reset_token_digest" = NULL,
	"reset_token_expires_at" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND "acc"."reset_token_digest" = ?
AND "acc"."reset_token_expires_at" > ?
RETURNING *;`

type Accounts interface {
	repository.Repository[*Account]

	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error)
	GetByExternalID(ctx context.Context, provider, externalID string) (*Account, error)
	GetByExternalIDTx(ctx context.Context, tx bun.IDB, provider, externalID string) (*Account, error)

	GetByVerifyDigestTx(ctx context.Context, tx bun.IDB, digest string) (*Account, error)
	GetByResetDigestTx(ctx context.Context, tx bun.IDB, digest string) (*Account, error)

	UsernameTaken(ctx context.Context, username string, exclude uuid.UUID) (bool, error)
	UsernameTakenTx(ctx context.Context, tx bun.IDB, username string, exclude uuid.UUID) (bool, error)

	ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, digest string) (*Account, error)
	ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, digest string) (*Account, error)
	SetVerificationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, expires time.Time) error
	SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, expires time.Time) error
	ClearVerificationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	ClearResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error

	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
}

type accountsRepo struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accountsRepo)(nil)
	_ repository.Repository[*Account] = (*accountsRepo)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accountsRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *accountsRepo) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accountsRepo) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.getByColumnTx(ctx, tx, "email", NormalizeEmail(email))
}

func (a *accountsRepo) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

// GetByUsernameTx matches case-insensitively; usernames are stored lowercase.
func (a *accountsRepo) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error) {
	return a.getByColumnTx(ctx, tx, "username", NormalizeUsername(username))
}

func (a *accountsRepo) GetByExternalID(ctx context.Context, provider, externalID string) (*Account, error) {
	return a.GetByExternalIDTx(ctx, a.db, provider, externalID)
}

func (a *accountsRepo) GetByExternalIDTx(ctx context.Context, tx bun.IDB, provider, externalID string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.external_provider = ?", provider).
		Where("?TableAlias.external_id = ?", externalID).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"provider":    provider,
					"external_id": externalID,
				})
		}
		return nil, err
	}

	return record, nil
}

// GetByVerifyDigestTx finds the account holding a live verification token.
// Expired records are treated as not found.
func (a *accountsRepo) GetByVerifyDigestTx(ctx context.Context, tx bun.IDB, digest string) (*Account, error) {
	return a.getByDigestTx(ctx, tx, "verify_token_digest", "verify_token_expires_at", digest)
}

func (a *accountsRepo) GetByResetDigestTx(ctx context.Context, tx bun.IDB, digest string) (*Account, error) {
	return a.getByDigestTx(ctx, tx, "reset_token_digest", "reset_token_expires_at", digest)
}

func (a *accountsRepo) getByDigestTx(ctx context.Context, tx bun.IDB, digestCol, expiryCol, digest string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias."+digestCol+" = ?", digest).
		Where("?TableAlias."+expiryCol+" > ?", time.Now()).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"digest": digest,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accountsRepo) getByColumnTx(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accountsRepo) UsernameTaken(ctx context.Context, username string, exclude uuid.UUID) (bool, error) {
	return a.UsernameTakenTx(ctx, a.db, username, exclude)
}

func (a *accountsRepo) UsernameTakenTx(ctx context.Context, tx bun.IDB, username string, exclude uuid.UUID) (bool, error) {
	q := tx.NewSelect().Model((*Account)(nil)).
		Where("?TableAlias.username = ?", NormalizeUsername(username)).
		Where("?TableAlias.deleted_at IS NULL")

	if exclude != uuid.Nil {
		q = q.Where("?TableAlias.id != ?", exclude)
	}

	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (a *accountsRepo) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, digest string) (*Account, error) {
	return a.consumeTokenTx(ctx, tx, consumeVerificationTokenSQL, digest)
}

func (a *accountsRepo) ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, digest string) (*Account, error) {
	return a.consumeTokenTx(ctx, tx, consumeResetTokenSQL, digest)
}

func (a *accountsRepo) consumeTokenTx(ctx context.Context, tx bun.IDB, query, digest string) (*Account, error) {
	res, err := a.Repository.RawTx(ctx, tx, query, digest, time.Now())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"digest": digest,
			})
	}

	return res[0], nil
}

func (a *accountsRepo) SetVerificationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, expires time.Time) error {
	_, err := tx.NewUpdate().Model((*Account)(nil)).
		Set("verify_token_digest = ?", digest).
		Set("verify_token_expires_at = ?", expires).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	return err
}

func (a *accountsRepo) SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, expires time.Time) error {
	_, err := tx.NewUpdate().Model((*Account)(nil)).
		Set("reset_token_digest = ?", digest).
		Set("reset_token_expires_at = ?", expires).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	return err
}

func (a *accountsRepo) ClearVerificationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewUpdate().Model((*Account)(nil)).
		Set("verify_token_digest = NULL").
		Set("verify_token_expires_at = NULL").
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	return err
}

func (a *accountsRepo) ClearResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewUpdate().Model((*Account)(nil)).
		Set("reset_token_digest = NULL").
		Set("reset_token_expires_at = NULL").
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	return err
}

func (a *accountsRepo) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	now := time.Now()
	_, err := a.db.NewUpdate().Model((*Account)(nil)).
		Set("login_attempts = login_attempts + 1").
		Set("login_attempt_at = ?", now).
		Where("id = ?", account.ID).
		Where("deleted_at IS NULL").
		Exec(ctx)
	return err
}

func (a *accountsRepo) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	now := time.Now()
	_, err := a.db.NewUpdate().Model((*Account)(nil)).
		Set("loggedin_at = ?", now).
		Set("login_attempt_at = NULL").
		Set("login_attempts = 0").
		Where("id = ?", account.ID).
		Where("deleted_at IS NULL").
		Exec(ctx)
	return err
}

func (a *accountsRepo) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accountsRepo) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)
	if record.Username != "" {
		record.Username = NormalizeUsername(record.Username)
	}

	if record.Role == "" {
		record.Role = RoleMember
	}

	if record.Provider == "" {
		record.Provider = ProviderLocal
	}

	if record.ID == uuid.Nil {
		if id, err := hashid.NewUUID(record.Email); err == nil {
			record.ID = id
		} else {
			record.ID = uuid.New()
		}
	}
}
