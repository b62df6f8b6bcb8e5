package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "certflow/pkg/domain-errors"
	txcontext "certflow/pkg/platform/tx"
)

const defaultWorkflowTxTimeout = 5 * time.Second

// workflowPostgresTx runs one transition's writes in a single database
// transaction, shared with the stores through the context.
type workflowPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newWorkflowPostgresTx(db *sql.DB) *workflowPostgresTx {
	return &workflowPostgresTx{db: db}
}

func (t *workflowPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultWorkflowTxTimeout
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

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
