package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/shareledger/src/config"
)

func testConfig(t *testing.T) {
	t.Helper()
	prev := config.Cfg
	config.Cfg = &config.AppConfig{AccessTokenExpiry: time.Hour}
	t.Cleanup(func() { config.Cfg = prev })
}

func TestHashAndComparePassword(t *testing.T) {
	svc := NewAuthService("0123456789abcdef0123456789abcdef")

	hash, err := svc.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, svc.CompareHashAndPassword(hash, "correct horse battery staple"))
	assert.Error(t, svc.CompareHashAndPassword(hash, "wrong password"))
}

func TestGenerateAndValidateToken(t *testing.T) {
	testConfig(t)
	svc := NewAuthService("0123456789abcdef0123456789abcdef")

	token, err := svc.GenerateToken("admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	testConfig(t)
	svc := NewAuthService("0123456789abcdef0123456789abcdef")
	other := NewAuthService("ffffffffffffffffffffffffffffffff")

	token, err := svc.GenerateToken("admin")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	testConfig(t)
	svc := NewAuthService("0123456789abcdef0123456789abcdef")
	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}
