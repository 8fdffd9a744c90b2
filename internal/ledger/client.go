// Package ledger defines the abstract contract every ledger backend
// implements. The sync engine depends only on this interface, never on a
// concrete chain SDK.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"staysync/internal/models"
)

// Client is the ledger collaborator contract.
type Client interface {
	// QueryEvents returns the events emitted by the contract at sequences
	// fromSequence and later, in ascending sequence order. An empty slice
	// means the contract is caught up.
	QueryEvents(ctx context.Context, contractAddress string, fromSequence uint64) ([]models.SyncEvent, error)

	// SubmitContractCall invokes a contract method and returns the
	// transaction hash. Backends without submission support return
	// ErrSubmitUnavailable.
	SubmitContractCall(ctx context.Context, method string, args map[string]any) (string, error)

	// LatestSequence returns the most recent sequence the ledger has
	// closed.
	LatestSequence(ctx context.Context) (uint64, error)

	Close() error
}

// ErrSubmitUnavailable is returned by read-only backends when a contract
// call submission is requested.
var ErrSubmitUnavailable = errors.New("ledger: contract call submission not available")

// TransientError marks a transport-level failure (timeout, connection
// loss) that the engine should retry on a later tick rather than treat as
// fatal.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient ledger error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
