package shared

import "context"

// TxManager demarcates an explicit unit of work. Each ledger operation
// (read snapshot, compute, conditional write, append audit) runs inside a
// single Do call; if fn returns an error every write inside it is rolled
// back. Repositories participate by resolving the transaction from ctx.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
