package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustreg/contracts/registry"
	id "trustreg/pkg/domain"
	dErrors "trustreg/pkg/domain-errors"
)

const authority registry.Principal = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(authority, id.APIVersionV1, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, string(authority), claims.Subject)
	assert.Equal(t, id.APIVersionV1, claims.APIVersion())
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_GenerateAccessToken_DefaultsVersion(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(authority, "", time.Hour)
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id.DefaultVersion(), claims.APIVersion())
}

func Test_GenerateAccessToken_RequiresPrincipal(t *testing.T) {
	_, err := jwtService.GenerateAccessToken("", id.APIVersionV1, time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "invalid token")
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(authority, id.APIVersionV1, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "token has expired")
}

func Test_ValidateToken_Rejections(t *testing.T) {
	sign := func(key string, claims Claims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return tok
	}
	registered := func(sub string) jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "test-issuer",
			Audience:  []string{"test-audience"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
	}

	wrongIssuer := registered(string(authority))
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := registered(string(authority))
	wrongAudience.Audience = []string{"other-api"}

	tests := []struct {
		name  string
		token string
	}{
		{"wrong key", sign("other-key", Claims{RegisteredClaims: registered(string(authority))})},
		{"wrong issuer", sign("test-signing-key", Claims{RegisteredClaims: wrongIssuer})},
		{"wrong audience", sign("test-signing-key", Claims{RegisteredClaims: wrongAudience})},
		{"missing subject", sign("test-signing-key", Claims{RegisteredClaims: registered("")})},
		{"unknown api version", sign("test-signing-key", Claims{Version: "v9", RegisteredClaims: registered(string(authority))})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jwtService.ValidateToken(tt.token)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}

func Test_ValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  string(authority),
		Issuer:   "test-issuer",
		Audience: []string{"test-audience"},
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(tok)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Adapter(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(authority, id.APIVersionV1, time.Hour)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, string(authority), claims.Subject)
	assert.Equal(t, "v1", claims.APIVersion)
	assert.NotEmpty(t, claims.JTI)
}
