package subdialog

import "fmt"

// ErrorCategory classifies an Error for logging and metrics dimensions.
type ErrorCategory string

const (
	// ErrorCategoryProtocol covers requests/replies that cannot be matched
	// to any subscription.
	ErrorCategoryProtocol ErrorCategory = "PROTOCOL"
	// ErrorCategoryState covers state-machine admission failures, such as
	// an overlapping SUBSCRIBE/REFER.
	ErrorCategoryState ErrorCategory = "STATE"
	// ErrorCategoryTimer covers timer-driven termination.
	ErrorCategoryTimer ErrorCategory = "TIMER"
)

func (c ErrorCategory) String() string { return string(c) }

// Error is a structured error carrying the event-package context a plain
// error string would lose.
type Error struct {
	Code     string
	Message  string
	Category ErrorCategory
	Event    string
	Role     Role
	CSeq     uint32
	Cause    error
}

func newError(category ErrorCategory, code, message string) *Error {
	return &Error{Code: code, Message: message, Category: category}
}

// WithField returns a copy of e carrying event/role/cseq context, leaving e
// itself untouched so package-level sentinels stay safe to share.
func (e *Error) WithField(event string, role Role, cseq uint32) *Error {
	cp := *e
	cp.Event = event
	cp.Role = role
	cp.CSeq = cseq
	return &cp
}

// WithCause returns a copy of e carrying an underlying cause.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("[%s:%s] %s (event=%s role=%s cseq=%d)", e.Category, e.Code, e.Message, e.Event, e.Role, e.CSeq)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap enables errors.Is/errors.As against the wrapped Cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Code, so a
// WithField/WithCause copy still compares equal to its originating
// sentinel under errors.Is.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Code == e.Code
}

var (
	// ErrNoMatch is returned when a request cannot be matched to any Sub
	// and cannot create one (protocol mismatch, e.g. a stray NOTIFY).
	ErrNoMatch = newError(ErrorCategoryProtocol, "NO_MATCH", "no matching subscription")
	// ErrOverlappingRefresh is returned when a SUBSCRIBE/REFER is refused
	// because a prior transaction on the same Sub is still pending.
	ErrOverlappingRefresh = newError(ErrorCategoryState, "OVERLAPPING_REFRESH", "overlapping SUBSCRIBE/REFER transaction")
)
