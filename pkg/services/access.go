package services

import (
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tgdrive/clouddrive/internal/auth"
	"github.com/tgdrive/clouddrive/internal/blob"
	"github.com/tgdrive/clouddrive/pkg/models"
	"github.com/tgdrive/clouddrive/pkg/types"
)

// AccessSigner hands out short-lived download references. Backends with
// native presigning are used directly; otherwise the server signs a token
// and streams the blob itself under /api/blobs.
type AccessSigner struct {
	blob      blob.Store
	secret    string
	publicURL string
	ttl       time.Duration
	now       Clock
}

type Access struct {
	URL       string
	ExpiresAt time.Time
}

func (a *AccessSigner) Issue(ctx context.Context, f *models.File, inline bool) (*Access, error) {
	expires := a.now().Add(a.ttl)
	opts := blob.AccessOptions{FileName: f.Name, ContentType: f.MimeType, Inline: inline}
	if p, ok := a.blob.(blob.Presigner); ok {
		u, err := p.PresignGet(ctx, f.BlobPath, a.ttl, opts)
		if err == nil {
			return &Access{URL: u, ExpiresAt: expires}, nil
		}
		if !errors.Is(err, blob.ErrNoPresign) {
			return nil, storeErr(err, "blob")
		}
	}
	token, err := auth.EncodeBlobToken(a.secret, &types.BlobClaims{
		Path:     f.BlobPath,
		Name:     f.Name,
		MimeType: f.MimeType,
		Inline:   inline,
	}, a.ttl)
	if err != nil {
		return nil, &apiError{err: err}
	}
	return &Access{URL: a.publicURL + "/api/blobs/" + token, ExpiresAt: expires}, nil
}

// Open validates a token minted by Issue and opens the blob it names.
func (a *AccessSigner) Open(ctx context.Context, token string) (*types.BlobClaims, io.ReadCloser, error) {
	claims, err := auth.DecodeBlobToken(a.secret, token)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, nil, fail(ErrExpired, "access link expired")
	}
	if err != nil {
		return nil, nil, fail(ErrNotFound, "access link")
	}
	rc, err := a.blob.Get(ctx, claims.Path)
	if errors.Is(err, blob.ErrNotExist) {
		return nil, nil, fail(ErrNotFound, "blob")
	}
	if err != nil {
		return nil, nil, storeErr(err, "blob")
	}
	return claims, rc, nil
}
