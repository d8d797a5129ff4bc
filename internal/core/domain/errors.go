package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// DomainError is a failure every layer can report. Code has the form
// SM-AREA-SSSN: SSS is the HTTP status a transport should answer with and N
// tells errors with the same status apart.
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error

	// Transient errors may succeed when retried unchanged.
	Transient bool
}

func (e *DomainError) Error() string {
	if e.Details == "" {
		return "[" + e.Code + "] " + e.Message
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
}

func (e *DomainError) Unwrap() error { return e.Cause }

// Is matches any DomainError with the same code, so a sentinel still matches
// after WithDetails or WithCause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// Status is the HTTP status encoded in the code, or 500 when the code
// carries none.
func (e *DomainError) Status() int {
	if len(e.Code) < 4 {
		return http.StatusInternalServerError
	}
	n, err := strconv.Atoi(e.Code[len(e.Code)-4:])
	if status := n / 10; err == nil && status >= 400 && status < 600 {
		return status
	}
	return http.StatusInternalServerError
}

// WithDetails returns a copy carrying details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func newTransient(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Transient: true}
}

// AsDomainError finds the first DomainError in err's chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// ErrorCode returns the code of the DomainError in err's chain, or "".
func ErrorCode(err error) string {
	if de, ok := AsDomainError(err); ok {
		return de.Code
	}
	return ""
}

// IsTransient reports whether retrying the failed operation unchanged may
// succeed.
func IsTransient(err error) bool {
	de, ok := AsDomainError(err)
	return ok && de.Transient
}

// Replication.
var (
	ErrUnknownCommand    = NewDomainError("SM-REPL-4001", "unknown command")
	ErrNotAuthorized     = NewDomainError("SM-REPL-4030", "not authorized to mutate field")
	ErrNotOwner          = NewDomainError("SM-REPL-4031", "session does not own field")
	ErrFieldNotFound     = NewDomainError("SM-REPL-4040", "field not found")
	ErrNotSubscribed     = NewDomainError("SM-REPL-4041", "session not subscribed to field")
	ErrAuthorityConflict = NewDomainError("SM-REPL-4090", "authority already held by another session")
	ErrFieldExists       = NewDomainError("SM-REPL-4091", "field already declared")
	ErrAlreadySubscribed = NewDomainError("SM-REPL-4092", "session already subscribed to field")

	ErrAuthorityUnavailable = newTransient("SM-REPL-5030", "no authority available for field")
	ErrQueueFull            = newTransient("SM-REPL-5031", "command queue full")
	ErrCommandTimedOut      = newTransient("SM-REPL-5040", "command timed out")
)

// Sessions.
var (
	ErrSessionNotFound = NewDomainError("SM-SESS-4040", "session not found")
	ErrSessionClosed   = NewDomainError("SM-SESS-4100", "session disconnected")
)

// System.
var (
	ErrRateLimited    = newTransient("SM-SYS-4290", "too many requests")
	ErrInternalServer = NewDomainError("SM-SYS-5000", "internal server error")
	ErrStorageError   = NewDomainError("SM-SYS-5001", "storage error")
)

// Arguments.
var (
	ErrInvalidArgument = NewDomainError("SM-ARG-4000", "invalid argument")
	ErrMissingArgument = NewDomainError("SM-ARG-4001", "missing required argument")
)
