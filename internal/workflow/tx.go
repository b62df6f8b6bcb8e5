package workflow

import "context"

// TxRunner runs fn as one atomic unit. The postgres implementation opens a
// transaction and places it in the context so the stores involved share it;
// the entity mutation and the ledger append commit or roll back together.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PassthroughTxRunner runs fn directly. Used with the in-memory stores,
// which have no transaction concept; unit tests accept that a mid-sequence
// failure leaves partial writes there.
type PassthroughTxRunner struct{}

func (PassthroughTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
