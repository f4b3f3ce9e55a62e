package blob

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/go-faster/errors"
	"github.com/tgdrive/clouddrive/internal/config"
	"google.golang.org/api/option"
)

type GCS struct {
	client     *storage.Client
	bucket     *storage.BucketHandle
	accessID   string
	privateKey []byte
}

func NewGCS(ctx context.Context, cfg *config.GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create gcs client")
	}
	g := &GCS{client: client, bucket: client.Bucket(cfg.Bucket), accessID: cfg.AccessID}
	if cfg.PrivateKeyFile != "" {
		key, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			client.Close()
			return nil, errors.Wrap(err, "read gcs signing key")
		}
		g.privateKey = key
	}
	return g, nil
}

func (g *GCS) Put(ctx context.Context, p string, r io.Reader, _ int64, contentType string) error {
	key, err := cleanPath(p)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		w.Close()
		return errors.Wrap(err, "write object")
	}
	return w.Close()
}

func (g *GCS) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	rd, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return rd, nil
}

func (g *GCS) Delete(ctx context.Context, p string) error {
	key, err := cleanPath(p)
	if err != nil {
		return err
	}
	if err := g.bucket.Object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (g *GCS) Stat(ctx context.Context, p string) (int64, error) {
	key, err := cleanPath(p)
	if err != nil {
		return 0, err
	}
	attrs, err := g.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return 0, ErrNotExist
	}
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

func (g *GCS) PresignGet(_ context.Context, p string, ttl time.Duration, opts AccessOptions) (string, error) {
	key, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("response-content-disposition", ContentDisposition(opts))
	if opts.ContentType != "" {
		params.Set("response-content-type", opts.ContentType)
	}
	so := &storage.SignedURLOptions{
		Scheme:          storage.SigningSchemeV4,
		Method:          http.MethodGet,
		Expires:         time.Now().Add(ttl),
		QueryParameters: params,
	}
	if g.accessID != "" && len(g.privateKey) > 0 {
		so.GoogleAccessID = g.accessID
		so.PrivateKey = g.privateKey
	}
	u, err := g.bucket.SignedURL(key, so)
	if err != nil {
		// no signing key and no IAM signBlob access
		return "", &noPresignError{err: err}
	}
	return u, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
