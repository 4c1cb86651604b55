package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(nil, "test-secret")
	userID := uuid.New()

	token, err := svc.issueToken(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService(nil, "secret-a")
	verifier := NewAuthService(nil, "secret-b")

	token, err := issuer.issueToken(uuid.New())
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(nil, "test-secret")

	_, err := svc.VerifyToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.VerifyToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService(nil, "test-secret")

	// Expired well past the verification leeway
	claims := jwt.MapClaims{
		"user_id": uuid.New().String(),
		"iat":     time.Now().Add(-48 * time.Hour).Unix(),
		"exp":     time.Now().Add(-24 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsUnsignedAlgorithm(t *testing.T) {
	svc := NewAuthService(nil, "test-secret")

	claims := jwt.MapClaims{
		"user_id": uuid.New().String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsMissingUserID(t *testing.T) {
	svc := NewAuthService(nil, "test-secret")

	claims := jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
