package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/pkg/types"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{Secret: "test-secret", Audience: "authenticated"}
}

func TestJWTVerifier_Verify(t *testing.T) {
	cfg := testAuthConfig()
	token, err := NewUserToken(cfg, "alice", time.Hour)
	require.NoError(t, err)

	owner, err := NewJWTVerifier(cfg).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	cfg := testAuthConfig()
	v := NewJWTVerifier(cfg)
	ctx := context.Background()

	expired, err := Encode(cfg.Secret, &types.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	require.NoError(t, err)

	wrongSecret, err := NewUserToken(&config.AuthConfig{Secret: "other", Audience: "authenticated"}, "alice", time.Hour)
	require.NoError(t, err)

	noSubject, err := Encode(cfg.Secret, &types.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	require.NoError(t, err)

	wrongAudience, err := NewUserToken(&config.AuthConfig{Secret: cfg.Secret, Audience: "anon"}, "alice", time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":        expired,
		"wrong secret":   wrongSecret,
		"no subject":     noSubject,
		"wrong audience": wrongAudience,
		"garbage":        "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(ctx, token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestJWTVerifier_AllowedUsers(t *testing.T) {
	cfg := testAuthConfig()
	cfg.AllowedUsers = []string{"bob"}
	token, err := NewUserToken(cfg, "alice", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier(cfg).Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestBlobToken(t *testing.T) {
	token, err := EncodeBlobToken("s", &types.BlobClaims{Path: "alice/x", Name: "x.pdf", MimeType: "application/pdf"}, time.Minute)
	require.NoError(t, err)

	claims, err := DecodeBlobToken("s", token)
	require.NoError(t, err)
	assert.Equal(t, "alice/x", claims.Path)
	assert.Equal(t, "x.pdf", claims.Name)

	_, err = DecodeBlobToken("other", token)
	assert.Error(t, err)

	// a blob token never authenticates a user
	_, err = NewJWTVerifier(&config.AuthConfig{Secret: "s"}).Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestBlobToken_UserTokenRejected(t *testing.T) {
	token, err := NewUserToken(&config.AuthConfig{Secret: "s"}, "alice", time.Minute)
	require.NoError(t, err)
	_, err = DecodeBlobToken("s", token)
	assert.Error(t, err)
}

func TestContextUser(t *testing.T) {
	ctx := WithUser(context.Background(), "alice")
	assert.Equal(t, "alice", GetUser(ctx))
	assert.Equal(t, "", GetUser(context.Background()))
}
