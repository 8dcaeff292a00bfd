// Package store persists certificate records. The SQL store serves both
// PostgreSQL and SQLite; the in-memory store backs tests and local runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"certledger/internal/certificate/models"
	"certledger/internal/platform/database"
	"certledger/pkg/platform/sentinel"
	txcontext "certledger/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

// SQLStore persists certificates with database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect
	exec    txcontext.Executor
}

// NewSQLStore constructs a store on db. Methods join a transaction carried in
// the context when there is one.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db.DB, dialect: db.Dialect}
}

// NewSQLTx binds a store to an open transaction.
func NewSQLTx(tx *sql.Tx, dialect database.Dialect) *SQLStore {
	return &SQLStore{dialect: dialect, exec: tx}
}

func (s *SQLStore) executor(ctx context.Context) txcontext.Executor {
	if s.exec != nil {
		return s.exec
	}
	return txcontext.ExecutorFrom(ctx, s.db)
}

func (s *SQLStore) q(query string) string {
	return database.Rebind(s.dialect, query)
}

// Insert relies on the unique constraint on certificate_key: there is no
// pre-read, a lost race surfaces as sentinel.ErrAlreadyUsed.
func (s *SQLStore) Insert(ctx context.Context, record *models.Record) error {
	res, err := s.executor(ctx).ExecContext(ctx, s.q(`
		INSERT INTO certificates (certificate_key, student_name, issue_date, authority_address, transaction_hash, file_path)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (certificate_key) DO NOTHING
	`), record.Key, record.StudentName, record.IssueDate, record.AuthorityAddress, record.TransactionHash, record.FilePath)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("certificate %s: %w", record.Key, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("certificate %s: %w", record.Key, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *SQLStore) FindByKey(ctx context.Context, key string) (*models.Record, error) {
	row := s.executor(ctx).QueryRowContext(ctx, s.q(`
		SELECT certificate_key, student_name, issue_date, authority_address, transaction_hash, file_path, created_at
		FROM certificates WHERE certificate_key = ?
	`), key)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return r, nil
}

// ListByStudentName returns records in insertion order.
func (s *SQLStore) ListByStudentName(ctx context.Context, name string) ([]*models.Record, error) {
	rows, err := s.executor(ctx).QueryContext(ctx, s.q(`
		SELECT certificate_key, student_name, issue_date, authority_address, transaction_hash, file_path, created_at
		FROM certificates WHERE student_name = ? ORDER BY id
	`), name)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*models.Record, error) {
	var r models.Record
	if err := sc.Scan(&r.Key, &r.StudentName, &r.IssueDate, &r.AuthorityAddress, &r.TransactionHash, &r.FilePath, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Health pings the underlying database. A transaction-bound store is healthy.
func (s *SQLStore) Health(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}
