package accounts_test

import (
	"encoding/base64"
	"testing"
	"time"

	accounts "github.com/fitstack/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpaqueToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, err := accounts.NewOpaqueToken()
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		assert.Len(t, raw, 32)

		assert.False(t, seen[token], "tokens must not repeat")
		seen[token] = true
	}
}

func TestHashToken(t *testing.T) {
	a := accounts.HashToken("some-token")
	b := accounts.HashToken("some-token")
	c := accounts.HashToken("other-token")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "some-token")
}

func TestSignAndVerifyAssertion(t *testing.T) {
	codec := newTestCodec()
	accountID := uuid.New()

	signed, err := codec.SignAssertion(accountID, accounts.RoleCoach, 0)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := codec.VerifyAssertion(signed)
	require.NoError(t, err)

	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, accountID, id)
	assert.Equal(t, accounts.RoleCoach, claims.UserRole)
	assert.Equal(t, "fitstack-test", claims.Issuer)
}

func TestVerifyAssertionExpired(t *testing.T) {
	codec := newTestCodec()

	signed, err := codec.SignAssertion(uuid.New(), accounts.RoleMember, time.Nanosecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = codec.VerifyAssertion(signed)
	assert.ErrorIs(t, err, accounts.ErrAssertionExpired)
}

func TestVerifyAssertionTampered(t *testing.T) {
	codec := newTestCodec()

	signed, err := codec.SignAssertion(uuid.New(), accounts.RoleMember, 0)
	require.NoError(t, err)

	tampered := signed[:len(signed)-2] + "xx"
	_, err = codec.VerifyAssertion(tampered)
	assert.ErrorIs(t, err, accounts.ErrAssertionInvalid)
}

func TestVerifyAssertionWrongKey(t *testing.T) {
	codec := newTestCodec()

	otherCfg := newTestConfig()
	otherCfg.SigningKey = "a-different-key"
	other := accounts.NewTokenCodec(otherCfg)

	signed, err := other.SignAssertion(uuid.New(), accounts.RoleMember, 0)
	require.NoError(t, err)

	_, err = codec.VerifyAssertion(signed)
	assert.ErrorIs(t, err, accounts.ErrAssertionInvalid)
}

func TestVerifyAssertionGarbage(t *testing.T) {
	codec := newTestCodec()

	_, err := codec.VerifyAssertion("not.a.token")
	assert.ErrorIs(t, err, accounts.ErrAssertionInvalid)
}
