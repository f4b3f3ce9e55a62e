package services

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/tgdrive/clouddrive/internal/cache"
	"github.com/tgdrive/clouddrive/internal/category"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/internal/hash"
	"github.com/tgdrive/clouddrive/internal/logging"
	"github.com/tgdrive/clouddrive/internal/utils"
	"github.com/tgdrive/clouddrive/pkg/mapper"
	"github.com/tgdrive/clouddrive/pkg/models"
	"github.com/tgdrive/clouddrive/pkg/schemas"
	"github.com/tgdrive/clouddrive/pkg/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type ShareService struct {
	store     store.Store
	cache     cache.Cacher
	access    *AccessSigner
	signer    *hash.Signer
	cfg       *config.ShareConfig
	publicURL string
	now       Clock
}

func (s *ShareService) token(l *models.ShareLink) string {
	mac := s.signer.Sign(l.ID, l.FileID, strconv.FormatInt(l.ExpiresAt.UnixMicro(), 10))
	return l.ID + "." + base64.RawURLEncoding.EncodeToString(mac)
}

// Issue mints a share link for an active file. expiresIn is in seconds.
func (s *ShareService) Issue(ctx context.Context, ownerID, fileID string, in *schemas.CreateShare) (*schemas.ShareOut, error) {
	ttl := s.cfg.DefaultTTL
	if in.ExpiresIn != nil {
		if *in.ExpiresIn < 1 || *in.ExpiresIn > int64(s.cfg.MaxTTL/time.Second) {
			return nil, fail(ErrInvalidQuery, "expiresIn must be between 1 and %d seconds", int64(s.cfg.MaxTTL/time.Second))
		}
		ttl = time.Duration(*in.ExpiresIn) * time.Second
	}
	f, err := s.store.GetFile(ctx, fileID, ownerID)
	if err != nil {
		return nil, storeErr(err, "file "+fileID)
	}
	if f.Trashed() {
		return nil, fail(ErrNotFound, "file %s", fileID)
	}

	now := s.now()
	link := &models.ShareLink{
		ID:        uuid.NewString(),
		FileID:    f.ID,
		OwnerID:   ownerID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if in.Password != nil {
		h, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fail(ErrInvalidInput, "password: %v", err)
		}
		link.Password = utils.Ptr(string(h))
	}
	if err := s.store.CreateShare(ctx, link); err != nil {
		return nil, storeErr(err, "share link")
	}
	token := s.token(link)
	return &schemas.ShareOut{
		ID:        link.ID,
		Token:     token,
		SignedURL: s.publicURL + "/api/s/" + token,
		ExpiresAt: link.ExpiresAt,
	}, nil
}

// link loads the row behind a token and checks its signature. Every failure
// reads as NotFound so tokens cannot be guessed.
func (s *ShareService) link(ctx context.Context, token string) (*models.ShareLink, error) {
	id, sig, ok := strings.Cut(token, ".")
	if !ok || uuid.Validate(id) != nil {
		return nil, fail(ErrNotFound, "share link")
	}
	mac, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, fail(ErrNotFound, "share link")
	}
	load := func() (models.ShareLink, error) {
		l, err := s.store.GetShare(ctx, id)
		if err != nil {
			return models.ShareLink{}, err
		}
		return *l, nil
	}
	var l models.ShareLink
	if s.cache != nil && s.cfg.CacheTTL > 0 {
		l, err = cache.Fetch(ctx, s.cache, cache.KeyShare(id), s.cfg.CacheTTL, load)
	} else {
		l, err = load()
	}
	if err != nil {
		return nil, storeErr(err, "share link")
	}
	if !s.signer.Verify(mac, l.ID, l.FileID, strconv.FormatInt(l.ExpiresAt.UnixMicro(), 10)) {
		return nil, fail(ErrNotFound, "share link")
	}
	return &l, nil
}

// Resolve validates a token and returns the shared file with a short-lived
// download reference.
func (s *ShareService) Resolve(ctx context.Context, token string, password *string) (*schemas.SharedFile, error) {
	l, err := s.link(ctx, token)
	if err != nil {
		return nil, err
	}
	switch l.Status(s.now()) {
	case models.ShareRevoked:
		return nil, fail(ErrRevoked, "")
	case models.ShareExpired:
		return nil, fail(ErrExpired, "")
	}
	if l.Password != nil {
		if password == nil || bcrypt.CompareHashAndPassword([]byte(*l.Password), []byte(*password)) != nil {
			return nil, fail(ErrInvalidPassword, "")
		}
	}
	f, err := s.store.GetFile(ctx, l.FileID, l.OwnerID)
	if err != nil {
		return nil, storeErr(err, "shared file")
	}
	if f.Trashed() {
		return nil, fail(ErrNotFound, "shared file")
	}
	a, err := s.access.Issue(ctx, f, false)
	if err != nil {
		return nil, err
	}
	return &schemas.SharedFile{
		Name:      f.Name,
		Size:      f.Size,
		MimeType:  f.MimeType,
		FileType:  category.PreviewKind(f.Name, f.MimeType),
		URL:       a.URL,
		ExpiresAt: a.ExpiresAt,
	}, nil
}

// Revoke disables a link. Revoking twice keeps the first revocation time.
func (s *ShareService) Revoke(ctx context.Context, ownerID, linkID string) (*schemas.ShareLinkOut, error) {
	l, err := s.store.RevokeShare(ctx, linkID, ownerID, s.now())
	if err != nil {
		return nil, storeErr(err, "share link "+linkID)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.KeyShare(linkID)); err != nil {
			logging.FromContext(ctx).Warn("drop cached share link", zap.String("id", linkID), zap.Error(err))
		}
	}
	out := mapper.ToShareLinkOut(*l, s.now())
	return &out, nil
}

func (s *ShareService) List(ctx context.Context, ownerID string, fileID *string) (*schemas.ShareList, error) {
	links, err := s.store.ListShares(ctx, ownerID, fileID)
	if err != nil {
		return nil, storeErr(err, "share links")
	}
	now := s.now()
	return &schemas.ShareList{Shares: utils.Map(links, func(l models.ShareLink) schemas.ShareLinkOut {
		return mapper.ToShareLinkOut(l, now)
	})}, nil
}

// Prune deletes links that expired or were revoked before the retention
// window.
func (s *ShareService) Prune(ctx context.Context) (int, error) {
	n, err := s.store.PruneShares(ctx, s.now().Add(-s.cfg.Retention))
	if err != nil {
		return 0, errors.Wrap(err, "prune share links")
	}
	return n, nil
}
