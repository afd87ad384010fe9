package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cauldronwatch/cauldronwatch/internal/auth"
)

func newService() *auth.Service {
	return auth.NewService(auth.Config{
		SigningKey: "test-signing-key-for-unit-tests",
		Issuer:     "https://api.cauldronwatch.test",
		Audience:   "cauldronwatch-api",
	})
}

func TestService_GenerateAndValidate(t *testing.T) {
	svc := newService()

	token, expiresAt, err := svc.GenerateAccessToken("op_quartermaster")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.AccessTokenExpiry), expiresAt, time.Minute)

	operatorID, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op_quartermaster", operatorID)
}

func TestService_ValidateAccessToken_WrongKey(t *testing.T) {
	svc := newService()
	token, _, err := svc.GenerateAccessToken("op_1")
	require.NoError(t, err)

	other := auth.NewService(auth.Config{
		SigningKey: "a-different-signing-key",
		Issuer:     "https://api.cauldronwatch.test",
		Audience:   "cauldronwatch-api",
	})

	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestService_ValidateAccessToken_WrongAudience(t *testing.T) {
	issuing := auth.NewService(auth.Config{
		SigningKey: "shared-key",
		Issuer:     "https://api.cauldronwatch.test",
		Audience:   "some-other-audience",
	})
	token, _, err := issuing.GenerateAccessToken("op_1")
	require.NoError(t, err)

	validating := auth.NewService(auth.Config{
		SigningKey: "shared-key",
		Issuer:     "https://api.cauldronwatch.test",
		Audience:   "cauldronwatch-api",
	})

	_, err = validating.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestService_ValidateAccessToken_Garbage(t *testing.T) {
	svc := newService()

	_, err := svc.ValidateAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}
