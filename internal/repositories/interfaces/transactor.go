package interfaces

import "context"

// Transactor runs fn inside a single database transaction. Repository calls
// made with the context handed to fn join the transaction; any error returned
// by fn aborts it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
