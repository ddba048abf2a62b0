// Package apperr carries the error taxonomy shared by every pipeline stage.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindTransientUpstream Kind = "transient_upstream"
	KindDataConflict      Kind = "data_conflict"
	KindValidation        Kind = "validation"
	KindPartialBatch      Kind = "partial_batch"
	KindTransaction       Kind = "transaction"
	KindNotFound          Kind = "not_found"
	KindInvalidArgument   Kind = "invalid_argument"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether a retry could succeed. Only upstream service
// failures qualify.
func IsRetryable(err error) bool {
	return Is(err, KindTransientUpstream)
}

// IsFatal reports errors that no amount of retrying will fix.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindInvalidArgument, KindNotFound, KindTransaction:
		return true
	}
	return false
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDataConflict:
		return http.StatusConflict
	case KindTransientUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
