package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tartampluch/rappel-anniv/internal/config"
)

// sqlitePragmas are applied to every pooled SQLite connection.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Open connects to the configured backend, applies migrations and returns
// the ready Store.
func Open(ctx context.Context, s config.DatabaseSettings) (Store, error) {
	log := slog.With(config.LogKeyComponent, config.CompStorage, config.LogKeyDriver, s.Driver)

	if s.Driver == config.DriverMemory {
		log.Info(config.MsgStoreReady)
		return NewMemoryStore(), nil
	}

	var dialect Dialect
	dsn := s.DSN
	switch s.Driver {
	case config.DriverSQLite:
		dialect = DialectSQLite
		dsn = withSQLitePragmas(dsn)
	case config.DriverPostgres:
		dialect = DialectPostgres
	default:
		return nil, fmt.Errorf("%s: %q", config.ErrDriverUnknown, s.Driver)
	}

	db, err := sql.Open(s.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	if dialect == DialectSQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	if err := Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreMigrate, err)
	}

	store, err := NewSQLStore(db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info(config.MsgStoreReady)
	return store, nil
}

func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + sqlitePragmas
}
