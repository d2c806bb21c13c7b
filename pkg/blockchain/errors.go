package blockchain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrLedgerUnavailable is matched by every failure to reach the node or to read its answer
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrRejectedByLedger is matched when the node refused a submitted transaction
	ErrRejectedByLedger = errors.New("rejected by ledger")
)

// UnavailableError wraps a transport, timeout or decoding failure of one RPC call
type UnavailableError struct {
	Method string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrLedgerUnavailable, e.Method, e.Err)
}

// Unwrap exposes the cause, e.g. context.Canceled
func (e *UnavailableError) Unwrap() error { return e.Err }

// Is implements errors.Is
func (e *UnavailableError) Is(target error) bool { return target == ErrLedgerUnavailable }

// RejectedError carries the node's reason for refusing a transaction.
// Double spends caused by a concurrent spender end up here.
type RejectedError struct {
	Code   int
	Reason string
	Data   interface{}
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", ErrRejectedByLedger, e.Reason, e.Code)
}

// Is implements errors.Is
func (e *RejectedError) Is(target error) bool { return target == ErrRejectedByLedger }
