package pgbackend

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/unkn0wn-root/scopecache"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations. goose keeps global state,
// so concurrent calls are not supported.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string, log scopecache.Logger) error {
	// shares the pool's connections; closing it would close the pool
	db := stdlib.OpenDBFromPool(pool)

	if log == nil {
		log = scopecache.NopLogger{}
	}
	if table == "" {
		table = "scopecache_migrations"
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(&gooseLogger{log})
	goose.SetTableName(table)

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrSetDialect, err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Join(ErrApplyMigrations, err)
	}
	return nil
}

type gooseLogger struct {
	log scopecache.Logger
}

func (g *gooseLogger) Printf(format string, args ...any) {
	g.log.Info(fmt.Sprintf(format, args...), scopecache.Fields{"component": "goose"})
}

// Fatalf only logs; goose returns the error to Migrate.
func (g *gooseLogger) Fatalf(format string, args ...any) {
	g.log.Error(fmt.Sprintf(format, args...), scopecache.Fields{"component": "goose"})
}
