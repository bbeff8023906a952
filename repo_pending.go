package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// claimPendingSQL implements the compare-and-delete redemption of a pending
// registration: delete keyed on digest plus non-expiry, returning the row.
// Under concurrent redemptions exactly one caller gets the record back.
var claimPendingSQL = `DELETE FROM "pending_registrations"
WHERE
	"token_digest" = ?
AND "expires_at" > ?
RETURNING *;`

type PendingRegistrations interface {
	repository.Repository[*PendingRegistration]

	GetByEmail(ctx context.Context, email string) (*PendingRegistration, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*PendingRegistration, error)

	// ReplaceTx deletes any stale claim for the email and inserts the new
	// record, so at most one active claim exists per email.
	ReplaceTx(ctx context.Context, tx bun.IDB, record *PendingRegistration) (*PendingRegistration, error)

	// ClaimByDigestTx atomically removes and returns the non-expired record
	// bearing the digest. An expired or missing record is not found.
	ClaimByDigestTx(ctx context.Context, tx bun.IDB, digest string) (*PendingRegistration, error)

	DeleteByEmail(ctx context.Context, email string) error
	DeleteByEmailTx(ctx context.Context, tx bun.IDB, email string) error

	// PurgeExpired reclaims expired rows. Advisory only: lookups re-check
	// expiry, this is storage hygiene.
	PurgeExpired(ctx context.Context) (int64, error)
}

type pendingRepo struct {
	repository.Repository[*PendingRegistration]
	db *bun.DB
}

var _ PendingRegistrations = (*pendingRepo)(nil)

func NewPendingRegistrationsRepository(db *bun.DB) PendingRegistrations {
	repo := repository.NewRepository[*PendingRegistration](db, repository.ModelHandlers[*PendingRegistration]{
		NewRecord: func() *PendingRegistration { return &PendingRegistration{} },
		GetID: func(p *PendingRegistration) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *PendingRegistration, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &pendingRepo{
		Repository: repo,
		db:         db,
	}
}

func (r *pendingRepo) GetByEmail(ctx context.Context, email string) (*PendingRegistration, error) {
	return r.GetByEmailTx(ctx, r.db, email)
}

func (r *pendingRepo) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*PendingRegistration, error) {
	record := &PendingRegistration{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Where("?TableAlias.expires_at > ?", time.Now()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *pendingRepo) ReplaceTx(ctx context.Context, tx bun.IDB, record *PendingRegistration) (*PendingRegistration, error) {
	record.Email = NormalizeEmail(record.Email)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if err := r.DeleteByEmailTx(ctx, tx, record.Email); err != nil {
		return nil, err
	}

	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *pendingRepo) ClaimByDigestTx(ctx context.Context, tx bun.IDB, digest string) (*PendingRegistration, error) {
	res, err := r.Repository.RawTx(ctx, tx, claimPendingSQL, digest, time.Now())
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

func (r *pendingRepo) DeleteByEmail(ctx context.Context, email string) error {
	return r.DeleteByEmailTx(ctx, r.db, email)
}

func (r *pendingRepo) DeleteByEmailTx(ctx context.Context, tx bun.IDB, email string) error {
	_, err := tx.NewDelete().Model((*PendingRegistration)(nil)).
		Where("email = ?", NormalizeEmail(email)).
		Exec(ctx)
	return err
}

func (r *pendingRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().Model((*PendingRegistration)(nil)).
		Where("expires_at <= ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
