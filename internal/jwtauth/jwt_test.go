package jwtauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kinlink/pkg/domain"
	dErrors "kinlink/pkg/domain-errors"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("test-key", "kinlink", "kinlink-api")
	accountID := id.NewAccountID()

	token, err := svc.GenerateAccessToken(accountID, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, accountID.String(), claims.AccountID)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewService("test-key", "kinlink", "kinlink-api")

	token, err := svc.GenerateAccessToken(id.NewAccountID(), -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateToken_WrongKey(t *testing.T) {
	issuer := NewService("key-a", "kinlink", "kinlink-api")
	validator := NewService("key-b", "kinlink", "kinlink-api")

	token, err := issuer.GenerateAccessToken(id.NewAccountID(), time.Minute)
	require.NoError(t, err)

	_, err = validator.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewService("test-key", "kinlink", "kinlink-api")

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
