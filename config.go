package accounts

import "time"

// Config holds process configuration for the account core. It is built once
// at startup and handed to each component; nothing here is ambient state.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAssertionTTL() time.Duration
	GetRegistrationTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetCookieName() string
	GetCrossOriginCookies() bool
	GetSecureCookies() bool
}

// ConfigObject is a plain Config implementation for callers that load
// values from the environment or a config file.
type ConfigObject struct {
	SigningKey           string        `json:"signing_key"`
	Issuer               string        `json:"issuer"`
	Audience             []string      `json:"audience"`
	AssertionTTL         time.Duration `json:"assertion_ttl"`
	RegistrationTokenTTL time.Duration `json:"registration_token_ttl"`
	ResetTokenTTL        time.Duration `json:"reset_token_ttl"`
	CookieName           string        `json:"cookie_name"`
	CrossOriginCookies   bool          `json:"cross_origin_cookies"`
	SecureCookies        bool          `json:"secure_cookies"`
}

var _ Config = (*ConfigObject)(nil)

func (c *ConfigObject) GetSigningKey() string { return c.SigningKey }

func (c *ConfigObject) GetIssuer() string { return c.Issuer }

func (c *ConfigObject) GetAudience() []string { return c.Audience }

func (c *ConfigObject) GetAssertionTTL() time.Duration {
	if c.AssertionTTL <= 0 {
		return 24 * time.Hour
	}
	return c.AssertionTTL
}

func (c *ConfigObject) GetRegistrationTokenTTL() time.Duration {
	if c.RegistrationTokenTTL <= 0 {
		return 24 * time.Hour
	}
	return c.RegistrationTokenTTL
}

func (c *ConfigObject) GetResetTokenTTL() time.Duration {
	if c.ResetTokenTTL <= 0 {
		return time.Hour
	}
	return c.ResetTokenTTL
}

func (c *ConfigObject) GetCookieName() string {
	if c.CookieName == "" {
		return "token"
	}
	return c.CookieName
}

func (c *ConfigObject) GetCrossOriginCookies() bool { return c.CrossOriginCookies }

func (c *ConfigObject) GetSecureCookies() bool { return c.SecureCookies }
