package accounts

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// opaqueTokenBytes is the entropy of verification and reset tokens.
const opaqueTokenBytes = 32

// NewOpaqueToken produces a cryptographically random token. The raw value is
// sent to the user; only its digest is persisted.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken computes the deterministic one-way digest stored in place of a
// raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// AssertionClaims is the payload of a session assertion. Validity is fully
// determined by signature and expiry; there is no server side session store.
type AssertionClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
}

// AccountID parses the subject back into an account identifier.
func (c *AssertionClaims) AccountID() (uuid.UUID, error) {
	if c.UID != "" {
		return uuid.Parse(c.UID)
	}
	return uuid.Parse(c.RegisteredClaims.Subject)
}

// TokenCodec signs and verifies session assertions under a server held
// secret, and owns opaque token hashing for the workflows.
type TokenCodec struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	defaultTTL time.Duration
	logger     Logger
}

// NewTokenCodec creates a TokenCodec from configuration.
func NewTokenCodec(cfg Config) *TokenCodec {
	return &TokenCodec{
		signingKey: []byte(cfg.GetSigningKey()),
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		defaultTTL: cfg.GetAssertionTTL(),
		logger:     defLogger{},
	}
}

func (tc *TokenCodec) WithLogger(logger Logger) *TokenCodec {
	if logger != nil {
		tc.logger = logger
	}
	return tc
}

// DefaultTTL returns the assertion lifetime used when callers pass zero.
func (tc *TokenCodec) DefaultTTL() time.Duration {
	return tc.defaultTTL
}

// SignAssertion produces a tamper evident token binding the account id and
// an expiration instant.
func (tc *TokenCodec) SignAssertion(accountID uuid.UUID, role UserRole, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = tc.defaultTTL
	}

	now := time.Now()
	claims := &AssertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tc.issuer,
			Subject:   accountID.String(),
			Audience:  tc.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      accountID.String(),
		UserRole: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(tc.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session assertion")
	}

	return signed, nil
}

// VerifyAssertion parses and validates a signed assertion. It fails with
// ErrAssertionExpired past expiry and ErrAssertionInvalid for bad signatures
// or malformed payloads. It has no side effects.
func (tc *TokenCodec) VerifyAssertion(signed string) (*AssertionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if tc.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(tc.issuer))
	}
	if len(tc.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(tc.audience...))
	}

	token, err := jwt.ParseWithClaims(signed, &AssertionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			tc.logger.Error("VerifyAssertion unexpected signing method", "alg", t.Header["alg"])
			return nil, ErrAssertionInvalid
		}
		return tc.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAssertionExpired
		}
		return nil, ErrAssertionInvalid
	}

	claims, ok := token.Claims.(*AssertionClaims)
	if !ok || !token.Valid {
		tc.logger.Error("VerifyAssertion could not decode claims")
		return nil, ErrAssertionInvalid
	}

	return claims, nil
}
