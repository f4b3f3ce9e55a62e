package blob

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/tgdrive/clouddrive/internal/config"
	"go.uber.org/zap"
)

// Open builds the configured backend wrapped with retries.
func Open(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "", "local":
		s, err = NewLocal(cfg.Local.Root)
	case "bolt":
		s, err = NewBolt(cfg.Bolt.Path)
	case "s3":
		s, err = NewS3(ctx, &cfg.S3)
	case "gcs":
		s, err = NewGCS(ctx, &cfg.GCS)
	case "webdav":
		s, err = NewWebDAV(&cfg.WebDAV, cfg.Timeout)
	case "sftp":
		s, err = NewSFTP(&cfg.SFTP, cfg.Timeout)
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s storage", cfg.Backend)
	}
	logger.Info("blob storage ready", zap.String("backend", cfg.Backend))
	return WithRetry(s, RetryConfig{
		MaxRetries:      cfg.MaxRetries,
		Timeout:         cfg.Timeout,
		TransferTimeout: cfg.TransferTimeout,
		Backoff:         cfg.RetryBackoff,
		Rate:            cfg.Rate,
		Burst:           cfg.RateBurst,
	}, logger.Named("blob")), nil
}
