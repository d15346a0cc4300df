package device

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBusy indicates the channel is taken by another transaction.
	ErrBusy = errors.New("device busy")
	// ErrTooManyRecords indicates a record stream didn't terminate in time.
	ErrTooManyRecords = errors.New("too many records")
)

// InstallError aborts an installation.
type InstallError struct {
	Sent  int
	Total int
	Err   error
}

// Error implements error.
func (e *InstallError) Error() string {
	return fmt.Sprintf("install aborted at %d/%d bytes: %v", e.Sent, e.Total, e.Err)
}

// Cause returns the underlying error.
func (e *InstallError) Cause() error {
	return e.Err
}

// Unwrap returns the underlying error.
func (e *InstallError) Unwrap() error {
	return e.Err
}
