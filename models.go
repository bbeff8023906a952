package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auth providers recorded on an account. Local and an external provider can
// both be present only after an explicit linking operation.
const (
	ProviderLocal = "local"
)

// DualProviderTag composes the provider tag for an account holding both a
// local credential and a linked external identity.
func DualProviderTag(external string) string {
	return ProviderLocal + "+" + external
}

// HasLocalCredential reports whether the provider tag includes local auth.
func HasLocalCredential(provider string) bool {
	return provider == ProviderLocal || strings.HasPrefix(provider, ProviderLocal+"+")
}

// Account is the durable identity record. It is created inactive at the
// verification step of registration and activated once username and password
// are set; OAuth provisioned accounts are created active without a password.
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole   `bun:"role,notnull" json:"role,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Username       string     `bun:"username,nullzero,unique" json:"username,omitempty"`
	FirstName      string     `bun:"first_name" json:"first_name,omitempty"`
	LastName       string     `bun:"last_name" json:"last_name,omitempty"`
	AvatarURL      string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	HeightCM       float64    `bun:"height_cm,nullzero" json:"height_cm,omitempty"`
	WeightKG       float64    `bun:"weight_kg,nullzero" json:"weight_kg,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	Provider       string     `bun:"provider,notnull" json:"provider,omitempty"`
	ExternalSource string     `bun:"external_provider,nullzero,unique:ux_accounts_external_identity" json:"external_provider,omitempty"`
	ExternalID     string     `bun:"external_id,nullzero,unique:ux_accounts_external_identity" json:"external_id,omitempty"`
	Active         bool       `bun:"is_active" json:"is_active"`
	EmailVerified  bool       `bun:"is_email_verified" json:"is_email_verified"`
	VerifyDigest   string     `bun:"verify_token_digest,nullzero" json:"-"`
	VerifyExpires  *time.Time `bun:"verify_token_expires_at,nullzero" json:"-"`
	ResetDigest    string     `bun:"reset_token_digest,nullzero" json:"-"`
	ResetExpires   *time.Time `bun:"reset_token_expires_at,nullzero" json:"-"`
	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// DisplayName is used in email salutations.
func (a *Account) DisplayName() string {
	switch {
	case a.FirstName != "":
		return strings.TrimSpace(a.FirstName + " " + a.LastName)
	case a.Username != "":
		return a.Username
	default:
		return a.Email
	}
}

// CanPasswordLogin reports whether the account may authenticate with a
// password at all. Inactive accounts exist only to anchor the verification
// token between the verify and activate steps.
func (a *Account) CanPasswordLogin() bool {
	return a.Active && a.PasswordHash != ""
}

// PendingRegistration is a provisional email claim. At most one active
// record exists per email; it is deleted on successful verification or
// superseded by a newer attempt.
type PendingRegistration struct {
	bun.BaseModel `bun:"table:pending_registrations,alias:pnd"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	TokenDigest   string     `bun:"token_digest,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// NormalizeEmail lowercases and trims an email address; every store lookup
// and every persisted email goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername lowercases a username so the unique index enforces
// case-insensitive uniqueness at the store level.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
