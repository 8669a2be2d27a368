package schemas

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the controller. Callers branch on
// the kind, never on message text.
type ErrorKind string

const (
	KindParse              ErrorKind = "PARSE_ERROR"
	KindOracle             ErrorKind = "ORACLE_ERROR"
	KindActuation          ErrorKind = "ACTUATION_ERROR"
	KindConvergenceTimeout ErrorKind = "CONVERGENCE_TIMEOUT"
	KindPlannerExhausted   ErrorKind = "PLANNER_EXHAUSTED"
	KindUnknown            ErrorKind = "UNKNOWN"
)

// Sentinels for errors.Is. An *OperationError matches the sentinel of its kind.
var (
	ErrParse              = &OperationError{Kind: KindParse}
	ErrOracle             = &OperationError{Kind: KindOracle}
	ErrActuation          = &OperationError{Kind: KindActuation}
	ErrConvergenceTimeout = &OperationError{Kind: KindConvergenceTimeout}
	ErrPlannerExhausted   = &OperationError{Kind: KindPlannerExhausted}
)

// OperationError is the typed failure returned by every player operation.
type OperationError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *OperationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error { return e.Err }

// Is matches any OperationError of the same kind, so sentinels work through wrapping.
func (e *OperationError) Is(target error) bool {
	var t *OperationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an OperationError of the given kind.
func NewError(kind ErrorKind, op, format string, args ...interface{}) *OperationError {
	return &OperationError{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and operation name to an underlying cause. If the
// cause already carries a kind, that kind is preserved.
func WrapError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *OperationError
	if errors.As(err, &existing) {
		kind = existing.Kind
	}
	return &OperationError{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the ErrorKind from an error chain.
func KindOf(err error) ErrorKind {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return KindUnknown
}
