package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier(testSecret)
	tok, err := v.Sign("producer@example.com", time.Hour)
	require.NoError(t, err)

	sub, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "producer@example.com", sub)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier(testSecret)

	expired, err := v.Sign("a", -time.Hour)
	require.NoError(t, err)
	other, err := NewVerifier("another-secret").Sign("a", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "a"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"expired", expired, ErrExpiredToken},
		{"wrong secret", other, ErrInvalidToken},
		{"no subject", noSubject, ErrInvalidToken},
		{"alg none", unsigned, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("Bearer "))
}

func TestActorContext(t *testing.T) {
	assert.Equal(t, "", ActorFrom(context.Background()))
	assert.Equal(t, "x", ActorFrom(WithActor(context.Background(), "x")))
}
