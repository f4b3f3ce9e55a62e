package blob

import (
	"context"
	"io"
	"os"
	"path"
	"time"

	"github.com/go-faster/errors"
	"github.com/studio-b12/gowebdav"
	"github.com/tgdrive/clouddrive/internal/config"
)

// WebDAV stores blobs on a WebDAV share. The client has no context support,
// so calls are bounded by the client timeout instead.
type WebDAV struct {
	client *gowebdav.Client
	root   string
}

func NewWebDAV(cfg *config.WebDAVConfig, timeout time.Duration) (*WebDAV, error) {
	if cfg.URL == "" {
		return nil, errors.New("webdav url is required")
	}
	c := gowebdav.NewClient(cfg.URL, cfg.User, cfg.Password)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	root := cfg.Root
	if root == "" {
		root = "/"
	}
	return &WebDAV{client: c, root: root}, nil
}

func (w *WebDAV) resolve(p string) (string, error) {
	c, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	return path.Join(w.root, c), nil
}

func (w *WebDAV) Put(_ context.Context, p string, r io.Reader, _ int64, _ string) error {
	full, err := w.resolve(p)
	if err != nil {
		return err
	}
	if err := w.client.MkdirAll(path.Dir(full), 0o755); err != nil {
		return errors.Wrap(err, "create collection")
	}
	return w.client.WriteStream(full, r, 0o644)
}

func (w *WebDAV) Get(_ context.Context, p string) (io.ReadCloser, error) {
	full, err := w.resolve(p)
	if err != nil {
		return nil, err
	}
	rc, err := w.client.ReadStream(full)
	if err != nil {
		return nil, webdavError(err)
	}
	return rc, nil
}

func (w *WebDAV) Delete(_ context.Context, p string) error {
	full, err := w.resolve(p)
	if err != nil {
		return err
	}
	if err := webdavError(w.client.Remove(full)); err != nil && !errors.Is(err, ErrNotExist) {
		return err
	}
	return nil
}

func (w *WebDAV) Stat(_ context.Context, p string) (int64, error) {
	full, err := w.resolve(p)
	if err != nil {
		return 0, err
	}
	fi, err := w.client.Stat(full)
	if err != nil {
		return 0, webdavError(err)
	}
	return fi.Size(), nil
}

func (w *WebDAV) Close() error { return nil }

func webdavError(err error) error {
	if err == nil {
		return nil
	}
	if gowebdav.IsErrNotFound(err) || errors.Is(err, os.ErrNotExist) {
		return ErrNotExist
	}
	return err
}
