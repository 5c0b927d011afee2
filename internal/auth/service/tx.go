package service

import (
	"context"
)

// TxRunner provides a transactional boundary for multi-store mutations.
// Implementations may wrap a database transaction or, in-memory, a coarse lock.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
