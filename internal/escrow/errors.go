package escrow

import (
	"errors"
	"fmt"
)

// Code categorizes escrow failures. Both backends report the same codes.
type Code string

const (
	// CodeNotFound indicates a job or milestone key is absent.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInvalidParty indicates a malformed or unacceptable address.
	CodeInvalidParty Code = "INVALID_PARTY"

	// CodeInvalidAmount indicates a negative or missing amount.
	CodeInvalidAmount Code = "INVALID_AMOUNT"

	// CodeNotApproved indicates a release attempted before approval.
	CodeNotApproved Code = "NOT_APPROVED"

	// CodeAlreadyReleased indicates a second release of the same milestone.
	CodeAlreadyReleased Code = "ALREADY_RELEASED"

	// CodeInsufficientLocked indicates a release that would drive a job's
	// locked funds negative. Unreachable while conservation holds.
	CodeInsufficientLocked Code = "INSUFFICIENT_LOCKED"

	// CodeAuthority indicates a failure reported by the settlement authority
	// that has no closer equivalent, or a failure reaching it.
	CodeAuthority Code = "AUTHORITY_ERROR"
)

// Error is the single error type returned by the escrow core.
type Error struct {
	Code Code

	// Op is the operation that failed, e.g. "release payment".
	Op string

	// Message is a human-readable description.
	Message string

	// Reason is the settlement authority's raw rejection reason, if any.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is. Matching is by Code only.
var (
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrInvalidParty       = &Error{Code: CodeInvalidParty}
	ErrInvalidAmount      = &Error{Code: CodeInvalidAmount}
	ErrNotApproved        = &Error{Code: CodeNotApproved}
	ErrAlreadyReleased    = &Error{Code: CodeAlreadyReleased}
	ErrInsufficientLocked = &Error{Code: CodeInsufficientLocked}
	ErrAuthority          = &Error{Code: CodeAuthority}
)

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Reason != "" {
		msg += fmt.Sprintf(" (authority: %s)", e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code carried by err. Errors that did not originate in
// the escrow core report CodeAuthority; nil reports "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeAuthority
}

func newError(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// withOp returns err with its Op replaced, leaving foreign errors untouched.
func withOp(err error, op string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	c := *e
	c.Op = op
	return &c
}
