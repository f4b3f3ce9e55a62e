// Package blob stores file content behind an opaque path.
package blob

import (
	"context"
	"io"
	"mime"
	"path"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	// ErrNotExist is returned when no blob is stored at a path.
	ErrNotExist = errors.New("blob does not exist")
	// ErrUnavailable is returned once retries against the backend are exhausted.
	ErrUnavailable = errors.New("blob storage unavailable")
	// ErrNoPresign is returned by backends without native short-lived URLs.
	ErrNoPresign = errors.New("backend cannot presign urls")
	// ErrInvalidPath is returned for empty paths or paths escaping the store root.
	ErrInvalidPath = errors.New("invalid blob path")
)

// Store is the byte-level content store. Paths use forward slashes.
type Store interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete succeeds when the blob is already gone.
	Delete(ctx context.Context, path string) error
	Stat(ctx context.Context, path string) (int64, error)
	Close() error
}

type AccessOptions struct {
	FileName    string
	ContentType string
	Inline      bool
}

// Presigner is implemented by backends that can mint their own short-lived
// download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, path string, ttl time.Duration, opts AccessOptions) (string, error)
}

type noPresignError struct {
	err error
}

func (e *noPresignError) Error() string {
	return "backend cannot presign urls: " + e.err.Error()
}

func (e *noPresignError) Unwrap() []error {
	return []error{ErrNoPresign, e.err}
}

// NewPath returns a fresh blob path for an owner: <owner>/<yyyy>/<mm>/<dd>/<uuid>.
func NewPath(ownerID string, now time.Time) string {
	return path.Join(ownerID, now.UTC().Format("2006/01/02"), uuid.NewString())
}

// ContentDisposition renders the header value for a download of opts.FileName.
func ContentDisposition(opts AccessOptions) string {
	kind := "attachment"
	if opts.Inline {
		kind = "inline"
	}
	if opts.FileName == "" {
		return kind
	}
	if v := mime.FormatMediaType(kind, map[string]string{"filename": opts.FileName}); v != "" {
		return v
	}
	return kind
}

func cleanPath(p string) (string, error) {
	if p == "" {
		return "", ErrInvalidPath
	}
	c := path.Clean("/" + p)[1:]
	if c == "" || c != p {
		return "", errors.Wrapf(ErrInvalidPath, "%q", p)
	}
	return c, nil
}
