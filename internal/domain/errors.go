package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConnection          = errors.New("chain connection unavailable")
	ErrInvalidOracleKind   = errors.New("invalid oracle kind")
	ErrInvalidEventKind    = errors.New("invalid outcome/event kind")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRecord       = errors.New("invalid record")
	ErrInsufficientBalance = errors.New("insufficient wrapped token balance")
	ErrTxReverted          = errors.New("transaction reverted")
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
	ErrLockHeld            = errors.New("lock already held")
)

// ConnectionError reports that the shared chain connection could not be
// established. It matches ErrConnection with errors.Is.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("chain connection to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}
