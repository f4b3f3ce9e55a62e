package auth

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/pkg/types"
)

type authContextKey string

const authKey authContextKey = "authUser"

const blobAudience = "clouddrive-blob"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("user not allowed")
)

// Verifier turns a bearer token into an owner id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// JWTVerifier checks HS256 tokens issued by the identity provider.
type JWTVerifier struct {
	secret   string
	issuer   string
	audience string
	allowed  []string
}

func NewJWTVerifier(cfg *config.AuthConfig) *JWTVerifier {
	return &JWTVerifier{
		secret:   cfg.Secret,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		allowed:  cfg.AllowedUsers,
	}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	claims, err := Decode(v.secret, token, opts...)
	if err != nil {
		return "", errors.Wrap(ErrUnauthorized, err.Error())
	}
	if claims.Subject == "" || slices.Contains(claims.Audience, blobAudience) {
		return "", errors.Wrap(ErrUnauthorized, "token has no subject")
	}
	if len(v.allowed) > 0 && !slices.Contains(v.allowed, claims.Subject) {
		return "", ErrForbidden
	}
	return claims.Subject, nil
}

func Encode(secret string, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func Decode(secret string, token string, opts ...jwt.ParserOption) (*types.JWTClaims, error) {
	claims := &types.JWTClaims{}
	if err := parse(secret, token, claims, opts...); err != nil {
		return nil, err
	}
	return claims, nil
}

// NewUserToken mints a bearer token for ownerID, used by the token command.
func NewUserToken(cfg *config.AuthConfig, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &types.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return Encode(cfg.Secret, claims)
}

// EncodeBlobToken signs short-lived access to a single blob.
func EncodeBlobToken(secret string, claims *types.BlobClaims, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims.Audience = jwt.ClaimStrings{blobAudience}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return Encode(secret, claims)
}

func DecodeBlobToken(secret, token string) (*types.BlobClaims, error) {
	claims := &types.BlobClaims{}
	if err := parse(secret, token, claims, jwt.WithAudience(blobAudience), jwt.WithExpirationRequired()); err != nil {
		return nil, err
	}
	if claims.Path == "" {
		return nil, errors.New("blob token has no path")
	}
	return claims, nil
}

func parse(secret, token string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tkn, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return err
	}
	if !tkn.Valid {
		return errors.New("invalid token")
	}
	return nil
}

func WithUser(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, authKey, ownerID)
}

func GetUser(ctx context.Context) string {
	ownerID, _ := ctx.Value(authKey).(string)
	return ownerID
}
