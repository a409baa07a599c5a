// Package domainerrors carries typed, coded errors across service boundaries.
//
// Services return *Error values so transports can translate them without
// string matching. Registry codes additionally carry a stable numeric value
// that existing clients depend on; see Code.Number.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

// Registry codes. Their numeric values are part of the external contract.
const (
	CodeNotAuthorized      Code = "not_authorized"
	CodeInvalidID          Code = "invalid_id"
	CodeAlreadyExists      Code = "already_exists"
	CodeNotOwner           Code = "not_owner"
	CodeInvalidRevision    Code = "invalid_revision"
	CodeCertExpired        Code = "cert_expired"
	CodeTransferRestricted Code = "transfer_restricted"
	CodeInvalidLog         Code = "invalid_log"
	CodeMaxLogsReached     Code = "max_logs_reached"
	CodeInvalidInput       Code = "invalid_input"
)

// Infrastructure and transport codes. These have no registry number.
const (
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"
)

var registryNumbers = map[Code]uint16{
	CodeNotAuthorized:      100,
	CodeInvalidID:          101,
	CodeAlreadyExists:      102,
	CodeNotOwner:           103,
	CodeInvalidRevision:    104,
	CodeCertExpired:        105,
	CodeTransferRestricted: 106,
	CodeInvalidLog:         107,
	CodeMaxLogsReached:     108,
	CodeInvalidInput:       109,
}

// Number returns the stable numeric registry code. ok is false for codes
// that are not part of the registry contract.
func (c Code) Number() (n uint16, ok bool) {
	n, ok = registryNumbers[c]
	return n, ok
}

// CodeFromNumber maps a numeric registry code back to its Code.
func CodeFromNumber(n uint16) (Code, bool) {
	for code, num := range registryNumbers {
		if num == n {
			return code, true
		}
	}
	return "", false
}

// Error is a coded domain error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain, or
// CodeInternal when err carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost *Error in err's chain has code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
