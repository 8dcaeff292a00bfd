package database

import (
	"context"
	"fmt"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS certificates (
	id                BIGSERIAL PRIMARY KEY,
	certificate_key   TEXT NOT NULL UNIQUE,
	student_name      TEXT NOT NULL,
	issue_date        BIGINT NOT NULL,
	authority_address TEXT NOT NULL DEFAULT '',
	transaction_hash  TEXT NOT NULL DEFAULT '',
	file_path         TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_certificates_student_name ON certificates (student_name);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS certificates (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	certificate_key   TEXT NOT NULL UNIQUE,
	student_name      TEXT NOT NULL,
	issue_date        INTEGER NOT NULL,
	authority_address TEXT NOT NULL DEFAULT '',
	transaction_hash  TEXT NOT NULL DEFAULT '',
	file_path         TEXT NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_certificates_student_name ON certificates (student_name);
`

// Migrate creates the schema if it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if db.Dialect == Postgres {
		schema = postgresSchema
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
