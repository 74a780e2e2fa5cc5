package session

import (
	"errors"
	"fmt"
)

// ErrOpenInProgress is returned by Open while another Open has not finished.
var ErrOpenInProgress = errors.New("open already in progress")

// TeardownError reports resources that failed to release while closing a
// session. Every resource is still attempted.
type TeardownError struct {
	SessionID string
	Err       error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown session %s: %v", e.SessionID, e.Err)
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}
