// File: api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a command failure so callers can branch on the kind
// of error rather than its message text.
type ErrorKind string

const (
	// KindValidation covers malformed or missing command parameters. These
	// are reported before any browser or filesystem resource is acquired.
	KindValidation ErrorKind = "validation"
	// KindPathViolation means a cookie path resolved outside the configured
	// base directory.
	KindPathViolation ErrorKind = "path_violation"
	// KindNavigation means the browser failed to reach or load the target.
	KindNavigation ErrorKind = "navigation"
	// KindElementNotFound means a required selector matched nothing.
	KindElementNotFound ErrorKind = "element_not_found"
	// KindCookieIO means the jar file was unreadable or unparsable for
	// reasons other than absence.
	KindCookieIO ErrorKind = "cookie_io"
	// KindTOTPConfig means the secret was missing, unresolvable, or code
	// generation itself failed.
	KindTOTPConfig ErrorKind = "totp_config"
	// KindRetryExhausted wraps the last underlying failure after all retry
	// attempts were spent.
	KindRetryExhausted ErrorKind = "retry_exhausted"
	// KindInternal is the fallback for failures outside the taxonomy.
	KindInternal ErrorKind = "internal"
)

// CommandError is the typed failure surfaced by every command. It carries
// the taxonomy kind, a human-readable message, and the wrapped cause.
type CommandError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CommandError) Unwrap() error { return e.Err }

// NewError constructs a CommandError with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *CommandError {
	return &CommandError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError constructs a CommandError wrapping an underlying cause.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *CommandError {
	return &CommandError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the taxonomy kind from err, unwrapping as needed.
// Errors outside the taxonomy report KindInternal.
func KindOf(err error) ErrorKind {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
