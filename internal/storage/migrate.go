package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SchemaVersion is the latest schema version supported by the migrator.
const SchemaVersion = 2

// migrations are applied in order. "{{pk}}" expands to the dialect's
// auto-increment primary key.
var migrations = []struct {
	version    int
	statements []string
}{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id {{pk}},
				username TEXT NOT NULL,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'MEMBER'
			)`,
			`CREATE TABLE IF NOT EXISTS user_groups (
				id {{pk}},
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				password TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS group_members (
				id {{pk}},
				user_id BIGINT NOT NULL REFERENCES users(id),
				group_id BIGINT NOT NULL REFERENCES user_groups(id),
				is_leader BOOLEAN NOT NULL DEFAULT FALSE,
				UNIQUE (group_id, user_id)
			)`,
			`CREATE TABLE IF NOT EXISTS birthdays (
				id {{pk}},
				name TEXT NOT NULL,
				birth_date TEXT NOT NULL,
				notes TEXT NOT NULL DEFAULT '',
				group_id BIGINT NOT NULL REFERENCES user_groups(id),
				created_at TEXT NOT NULL,
				created_by BIGINT NOT NULL REFERENCES users(id)
			)`,
		},
	},
	{
		// Contacts imported from vCards may lack a birth year.
		version: 2,
		statements: []string{
			`ALTER TABLE birthdays ADD COLUMN year_known BOOLEAN NOT NULL DEFAULT TRUE`,
			`CREATE INDEX IF NOT EXISTS idx_birthdays_group_id ON birthdays(group_id)`,
			`CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id)`,
		},
	},
}

// Migrate brings the schema up to SchemaVersion. Pending migrations are
// applied in a single transaction.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}

	if current >= SchemaVersion {
		return nil
	}

	transaction, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = transaction.Rollback()
	}()

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for _, stmt := range m.statements {
			stmt = strings.ReplaceAll(stmt, "{{pk}}", dialect.primaryKey())
			if _, err := transaction.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: version %d: %w", m.version, err)
			}
		}
		_, err = transaction.ExecContext(ctx, dialect.Rebind(`INSERT INTO schema_migrations(version) VALUES (?)`), m.version)
		if err != nil {
			return fmt.Errorf("migrate: record schema version %d: %w", m.version, err)
		}
	}

	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}
