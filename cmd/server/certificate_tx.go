package main

import (
	"context"
	"time"

	certservice "certledger/internal/certificate/service"
	certstore "certledger/internal/certificate/store"
	"certledger/internal/platform/database"
	dErrors "certledger/pkg/domain-errors"
)

const defaultCertificateTxTimeout = 5 * time.Second

// certificateSQLTx runs the record insert and file promotion in one database
// transaction.
type certificateSQLTx struct {
	db      *database.DB
	timeout time.Duration
}

func newCertificateSQLTx(db *database.DB) *certificateSQLTx {
	return &certificateSQLTx{db: db}
}

func (t *certificateSQLTx) RunInTx(ctx context.Context, fn func(store certservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultCertificateTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(certstore.NewSQLTx(tx, t.db.Dialect)); err != nil {
		return err
	}

	return tx.Commit()
}
