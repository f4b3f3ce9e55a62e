package services

import (
	"strings"
	"time"

	"github.com/tgdrive/clouddrive/internal/blob"
	"github.com/tgdrive/clouddrive/internal/cache"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/internal/hash"
	"github.com/tgdrive/clouddrive/pkg/store"
	"go.uber.org/zap"
)

// RootID is the reserved folder id for "no parent". It is never stored.
const RootID = "root"

// Clock returns the current time. Services store UTC timestamps truncated
// to microseconds so they survive a database round trip unchanged.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

type Options struct {
	Store  store.Store
	Blob   blob.Store
	Cache  cache.Cacher
	Config *config.ServerCmdConfig
	Clock  Clock
	Logger *zap.Logger
}

// Service bundles the components behind the HTTP API and the cron jobs.
type Service struct {
	Folders *FolderService
	Files   *FileService
	Listing *ListService
	Search  *SearchService
	Shares  *ShareService
	Access  *AccessSigner
	Sweeper *Sweeper
}

func New(opts Options) *Service {
	now := opts.Clock
	if now == nil {
		now = SystemClock
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cnf := opts.Config
	publicURL := strings.TrimRight(cnf.Server.PublicURL, "/")

	access := &AccessSigner{
		blob:      opts.Blob,
		secret:    cnf.Auth.Secret,
		publicURL: publicURL,
		ttl:       cnf.Storage.AccessTTL,
		now:       now,
	}
	folders := &FolderService{store: opts.Store, now: now}
	files := &FileService{
		store:   opts.Store,
		blob:    opts.Blob,
		cache:   opts.Cache,
		folders: folders,
		access:  access,
		storage: &cnf.Storage,
		trash:   &cnf.Trash,
		now:     now,
		logger:  logger,
	}
	listing := &ListService{store: opts.Store, folders: folders, now: now}
	return &Service{
		Folders: folders,
		Files:   files,
		Listing: listing,
		Search:  &SearchService{listing: listing},
		Shares: &ShareService{
			store:     opts.Store,
			cache:     opts.Cache,
			access:    access,
			signer:    hash.NewSigner("clouddrive share link v1", cnf.ShareSecret()),
			cfg:       &cnf.Share,
			publicURL: publicURL,
			now:       now,
		},
		Access: access,
		Sweeper: &Sweeper{
			files:  files,
			store:  opts.Store,
			blob:   opts.Blob,
			cfg:    &cnf.Trash,
			now:    now,
			logger: logger.Named("sweeper"),
		},
	}
}

// cleanName validates a file or folder name.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fail(ErrInvalidInput, "name must not be empty")
	case len(name) > 255:
		return "", fail(ErrInvalidInput, "name is longer than 255 bytes")
	case strings.ContainsAny(name, "/\\\x00"):
		return "", fail(ErrInvalidInput, "name must not contain slashes")
	}
	return name, nil
}

// folderRef normalizes an optional folder reference; nil means root.
func folderRef(id *string) *string {
	if id == nil || *id == "" || *id == RootID {
		return nil
	}
	return id
}
