package accounts

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// CookiePolicy derives cookie directives for session assertions. HttpOnly is
// unconditional; cross origin deployments force SameSite=None, which in turn
// forces Secure. Cookie expiry mirrors the assertion TTL exactly.
type CookiePolicy struct {
	Name        string
	CrossOrigin bool
	Secure      bool
	TTL         time.Duration
}

func NewCookiePolicy(cfg Config) CookiePolicy {
	return CookiePolicy{
		Name:        cfg.GetCookieName(),
		CrossOrigin: cfg.GetCrossOriginCookies(),
		Secure:      cfg.GetSecureCookies(),
		TTL:         cfg.GetAssertionTTL(),
	}
}

// SessionCookie builds the directive carrying a signed assertion.
func (p CookiePolicy) SessionCookie(token string) *router.Cookie {
	return &router.Cookie{
		Name:     p.Name,
		Value:    token,
		Expires:  time.Now().Add(p.TTL),
		HTTPOnly: true,
		Secure:   p.Secure || p.CrossOrigin,
		SameSite: p.sameSite(),
	}
}

// ClearCookie builds the logout directive. This expires the transport
// cookie only; the assertion itself stays valid until its natural expiry.
func (p CookiePolicy) ClearCookie() *router.Cookie {
	return &router.Cookie{
		Name:     p.Name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   p.Secure || p.CrossOrigin,
		SameSite: p.sameSite(),
	}
}

func (p CookiePolicy) sameSite() string {
	if p.CrossOrigin {
		return "None"
	}
	return "Lax"
}

// LoginPayload is the credential input the transport layer hands to Login.
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// RouteAuthenticator bridges the Authenticator to an HTTP router: it moves
// assertions in and out of the session cookie.
type RouteAuthenticator struct {
	auth   *Authenticator
	policy CookiePolicy
	Logger Logger
}

func NewRouteAuthenticator(auth *Authenticator, cfg Config) *RouteAuthenticator {
	return &RouteAuthenticator{
		auth:   auth,
		policy: NewCookiePolicy(cfg),
		Logger: defLogger{},
	}
}

// Policy exposes the cookie policy so workflows that end authenticated
// (registration completion, password reset, OAuth callback) can set the
// same cookie.
func (a *RouteAuthenticator) Policy() CookiePolicy {
	return a.policy
}

func (a *RouteAuthenticator) Login(c router.Context, payload LoginPayload) error {
	result, err := a.auth.Login(c.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return err
	}

	c.Cookie(a.policy.SessionCookie(result.Token))
	return nil
}

func (a *RouteAuthenticator) Logout(c router.Context) {
	c.Cookie(a.policy.ClearCookie())
}

// SetAssertion writes an already issued assertion into the session cookie.
func (a *RouteAuthenticator) SetAssertion(c router.Context, token string) {
	c.Cookie(a.policy.SessionCookie(token))
}

// AccountFromRequest reads the session cookie and resolves its account.
func (a *RouteAuthenticator) AccountFromRequest(c router.Context) (*Account, error) {
	raw := c.Cookies(a.policy.Name)
	if raw == "" {
		return nil, goerrors.New("no session cookie present", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	return a.auth.AccountFromAssertion(c.Context(), raw)
}
