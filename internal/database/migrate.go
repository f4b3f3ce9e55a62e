package database

import (
	"context"
	"database/sql"
	"embed"

	"github.com/go-faster/errors"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

type gooseLogger struct {
	l *zap.SugaredLogger
}

func (g gooseLogger) Fatalf(format string, v ...any) { g.l.Fatalf(format, v...) }
func (g gooseLogger) Printf(format string, v ...any) { g.l.Infof(format, v...) }

// MigrateDB applies the embedded migrations.
func MigrateDB(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{l: logger.Sugar()})
	goose.SetTableName(Schema + ".goose_db_version")
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+Schema); err != nil {
		return errors.Wrap(err, "create schema")
	}
	if err := gooseUp(ctx, db, "migrations"); err != nil {
		return errors.Wrap(err, "migrate")
	}
	return nil
}
