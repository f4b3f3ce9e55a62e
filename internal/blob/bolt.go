package blob

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	bolt "go.etcd.io/bbolt"
)

var blobBucket = []byte("blobs")

// Bolt keeps blobs inside a single bbolt file. Suited to small deployments.
type Bolt struct {
	db *bolt.DB
}

func NewBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Put(ctx context.Context, p string, r io.Reader, size int64, _ string) error {
	key, err := cleanPath(p)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(&ctxReader{ctx: ctx, r: r})
	if err != nil {
		return errors.Wrap(err, "read blob")
	}
	if size >= 0 && int64(len(data)) != size {
		return errors.Errorf("write blob: got %d bytes, want %d", len(data), size)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobBucket).Put([]byte(key), data)
	})
}

func (b *Bolt) Get(_ context.Context, p string) (io.ReadCloser, error) {
	key, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(blobBucket).Get([]byte(key))
		if v == nil {
			return ErrNotExist
		}
		data = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Bolt) Delete(_ context.Context, p string) error {
	key, err := cleanPath(p)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobBucket).Delete([]byte(key))
	})
}

func (b *Bolt) Stat(_ context.Context, p string) (int64, error) {
	key, err := cleanPath(p)
	if err != nil {
		return 0, err
	}
	var n int64
	err = b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(blobBucket).Get([]byte(key))
		if v == nil {
			return ErrNotExist
		}
		n = int64(len(v))
		return nil
	})
	return n, err
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
