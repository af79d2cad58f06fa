package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_listing/internal/adapters/auth"
	"hotel_listing/internal/domain"
)

const testSecret = "test-secret-key-for-testing-purposes"

func TestSignAndVerify(t *testing.T) {
	v := auth.NewVerifier(testSecret, "hotel-accounts")
	tok, err := v.Sign(domain.Identity{ID: 42, Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.ID)
	assert.True(t, id.IsAdmin())
}

func TestVerify_Rejects(t *testing.T) {
	v := auth.NewVerifier(testSecret, "")
	good, err := v.Sign(domain.Identity{ID: 7, Role: domain.RoleMerchant}, time.Hour)
	require.NoError(t, err)

	expired, err := v.Sign(domain.Identity{ID: 7, Role: domain.RoleMerchant}, -time.Minute)
	require.NoError(t, err)

	other, err := auth.NewVerifier("another-secret", "").Sign(domain.Identity{ID: 7, Role: domain.RoleMerchant}, time.Hour)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role: "ROOT",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	badSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role: "MERCHANT",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role:             "MERCHANT",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "7"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":     "not.a.token",
		"expired":     expired,
		"wrong key":   other,
		"bad role":    badRole,
		"bad subject": badSub,
		"no expiry":   noExp,
		"tampered":    good + "x",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestVerify_Issuer(t *testing.T) {
	tok, err := auth.NewVerifier(testSecret, "someone-else").Sign(domain.Identity{ID: 1, Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	_, err = auth.NewVerifier(testSecret, "hotel-accounts").Verify(tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
