package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-jwt-secret")

func TestNewAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	tok, exp, err := NewAccessToken(42, "admin", secret, 24*time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), exp, 2*time.Second)

	claims, err := AccessClaimsFromToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
}

func TestAccessClaimsFromToken_Rejects(t *testing.T) {
	t.Parallel()

	expired, _, err := NewAccessToken(1, "customer", secret, -time.Minute)
	require.NoError(t, err)
	_, err = AccessClaimsFromToken(expired, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	valid, _, err := NewAccessToken(1, "customer", secret, time.Minute)
	require.NoError(t, err)
	_, err = AccessClaimsFromToken(valid, []byte("other-secret"))
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	none := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{Role: "admin"})
	s, err := none.SignedString(secret)
	require.NoError(t, err)
	_, err = AccessClaimsFromToken(s, secret)
	assert.Error(t, err)

	_, err = AccessClaimsFromToken("garbage", secret)
	assert.Error(t, err)
}

func TestAccessClaims_UserIDInvalidSubject(t *testing.T) {
	t.Parallel()

	c := &AccessClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "abc"}}
	_, err := c.UserID()
	assert.Error(t, err)
}
