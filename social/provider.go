package social

import (
	"context"
	"time"
)

// Provider is the OAuth2 collaborator: authorization URL construction,
// code-for-token exchange and identity token verification.
type Provider interface {
	// Name returns the provider identifier (e.g. "google").
	Name() string

	// AuthCodeURL returns the URL to redirect users for authorization.
	// The state parameter is included for CSRF protection.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token set.
	Exchange(ctx context.Context, code string) (*Token, error)

	// VerifyIdentity validates the identity token in the exchanged set and
	// returns the normalized external identity.
	VerifyIdentity(ctx context.Context, token *Token) (*ExternalIdentity, error)
}

// Token is an OAuth2 token response.
type Token struct {
	AccessToken  string
	IDToken      string
	TokenType    string
	RefreshToken string
	ExpiresAt    time.Time
	Raw          map[string]any
}

// ExternalIdentity is the verified identity assertion from a provider.
type ExternalIdentity struct {
	Provider      string
	ExternalID    string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	PictureURL    string
}
