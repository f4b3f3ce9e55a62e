package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/tgdrive/clouddrive/internal/config"
	"go.uber.org/zap"
)

// Schema holds every clouddrive table.
const Schema = "clouddrive"

// NewDatabase opens a pgx-backed pool, retrying while the server comes up.
func NewDatabase(ctx context.Context, cfg *config.DBConfig, logger *zap.Logger) (*sql.DB, error) {
	if cfg.DataSource == "" {
		return nil, errors.New("db.data-source is empty")
	}
	db, err := sql.Open("pgx", cfg.DataSource)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	err = backoff.RetryNotify(func() error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pctx)
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		logger.Warn("database not ready", zap.Error(err), zap.Duration("retry_in", d))
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect database")
	}

	if cfg.Pool.Enable {
		db.SetMaxOpenConns(cfg.Pool.MaxOpenConnections)
		db.SetMaxIdleConns(cfg.Pool.MaxIdleConnections)
		db.SetConnMaxLifetime(cfg.Pool.MaxLifetime)
	}
	return db, nil
}

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn in a transaction, committing on success and rolling back on
// error or panic.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, tx)
}
