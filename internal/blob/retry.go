package blob

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type RetryConfig struct {
	MaxRetries int
	// Timeout bounds delete, stat, presign and open attempts.
	Timeout time.Duration
	// TransferTimeout bounds a single upload attempt.
	TransferTimeout time.Duration
	Backoff         time.Duration
	Rate            int
	Burst           int
}

type unavailableError struct {
	op  string
	err error
}

func (e *unavailableError) Error() string {
	return "blob storage unavailable: " + e.op + ": " + e.err.Error()
}

func (e *unavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.err}
}

var (
	errNoRewind    = errors.New("upload body cannot be rewound")
	errOpenTimeout = errors.New("blob open timed out")
)

type retrying struct {
	next    Store
	cfg     RetryConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// WithRetry wraps a backend with per-call timeouts, exponential backoff and
// optional rate limiting. Missing blobs and caller cancellation are not
// retried; exhausted retries surface as ErrUnavailable.
func WithRetry(next Store, cfg RetryConfig, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	r := &retrying{next: next, cfg: cfg, logger: logger}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return r
}

func (r *retrying) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.Backoff
	b.MaxInterval = 20 * r.cfg.Backoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(r.cfg.MaxRetries, 0))), ctx)
}

func (r *retrying) do(ctx context.Context, op, path string, timeout time.Duration, fn func(ctx context.Context) error) error {
	attempt := func() error {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		actx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()
		err := fn(actx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotExist) || errors.Is(err, ErrInvalidPath) || errors.Is(err, ErrNoPresign) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		r.logger.Warn("blob call failed, retrying",
			zap.String("op", op), zap.String("path", path),
			zap.Duration("backoff", d), zap.Error(err))
	}
	err := backoff.RetryNotify(attempt, r.policy(ctx), notify)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotExist), errors.Is(err, ErrInvalidPath), errors.Is(err, ErrNoPresign):
		return err
	case ctx.Err() != nil:
		return errors.Wrap(ctx.Err(), op)
	}
	return &unavailableError{op: op, err: err}
}

func (r *retrying) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	seeker, canRewind := body.(io.Seeker)
	var start int64
	if canRewind {
		off, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			canRewind = false
		}
		start = off
	}
	first := true
	return r.do(ctx, "put", path, r.cfg.TransferTimeout, func(ctx context.Context) error {
		if !first {
			if !canRewind {
				return backoff.Permanent(errNoRewind)
			}
			if _, err := seeker.Seek(start, io.SeekStart); err != nil {
				return backoff.Permanent(err)
			}
		}
		first = false
		return r.next.Put(ctx, path, body, size, contentType)
	})
}

// Get retries opening the blob. Each open is bounded by the call timeout;
// the returned stream lives as long as ctx.
func (r *retrying) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := r.do(ctx, "get", path, 0, func(ctx context.Context) error {
		sctx, cancel := context.WithCancel(ctx)
		var timer *time.Timer
		if r.cfg.Timeout > 0 {
			timer = time.AfterFunc(r.cfg.Timeout, cancel)
		}
		body, err := r.next.Get(sctx, path)
		if timer != nil && !timer.Stop() {
			if err == nil {
				body.Close()
			}
			cancel()
			return errors.Wrapf(errOpenTimeout, "after %s", r.cfg.Timeout)
		}
		if err != nil {
			cancel()
			return err
		}
		rc = &cancelOnClose{ReadCloser: body, cancel: cancel}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// cancelOnClose releases the stream context when the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (r *retrying) Delete(ctx context.Context, path string) error {
	return r.do(ctx, "delete", path, r.cfg.Timeout, func(ctx context.Context) error {
		return r.next.Delete(ctx, path)
	})
}

func (r *retrying) Stat(ctx context.Context, path string) (int64, error) {
	var n int64
	err := r.do(ctx, "stat", path, r.cfg.Timeout, func(ctx context.Context) error {
		var err error
		n, err = r.next.Stat(ctx, path)
		return err
	})
	return n, err
}

func (r *retrying) PresignGet(ctx context.Context, path string, ttl time.Duration, opts AccessOptions) (string, error) {
	p, ok := r.next.(Presigner)
	if !ok {
		return "", ErrNoPresign
	}
	var u string
	err := r.do(ctx, "presign", path, r.cfg.Timeout, func(ctx context.Context) error {
		var err error
		u, err = p.PresignGet(ctx, path, ttl, opts)
		return err
	})
	return u, err
}

func (r *retrying) Close() error {
	return r.next.Close()
}

// IsUnavailable reports whether err came from an exhausted blob call.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
