// Package integration defines the uniform vendor adapter contract and
// the run lifecycle that wraps every sync.
package integration

import (
	"fmt"

	"github.com/laikahq/sync-engine/alerts"
)

// Error is a sync failure that names its catalogue code directly,
// bypassing regex alert matching.
type Error struct {
	code    string
	message string
}

func (e *Error) Error() string     { return e.message }
func (e *Error) ErrorCode() string { return e.code }

// NewCodedError builds an adapter error bound to a catalogue code.
func NewCodedError(code, message string) *Error {
	return &Error{code: code, message: message}
}

var (
	// ErrDenialOfConsent is raised when an OAuth callback arrives
	// without an authorization code.
	ErrDenialOfConsent = NewCodedError(alerts.CodeDenialOfConsent, "oauth callback did not include an authorization code")

	// ErrConnectionAlreadyExists is raised by the duplicate guard when
	// another account in the organization owns the same vendor identity.
	ErrConnectionAlreadyExists = NewCodedError(alerts.CodeConnectionAlreadyExists, "a connection with this vendor identity already exists")

	// ErrTimeout is what a run that exceeded its wall-clock budget is
	// reported as.
	ErrTimeout = NewCodedError(alerts.CodeConnectionTimeout, "sync exceeded its time budget")
)

// NewConfigError reports a missing or invalid user selection, e.g. "no
// GitHub organization selected".
func NewConfigError(format string, args ...any) *Error {
	return &Error{code: alerts.CodeMissingConfiguration, message: fmt.Sprintf(format, args...)}
}

var _ alerts.Coded = (*Error)(nil)
