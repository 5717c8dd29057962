// Package apperr defines the error taxonomy shared by the ingestion pipeline and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindStoreUnavailable      Kind = "store_unavailable"
	KindValidation            Kind = "validation"
	KindSubscriberSendFailure Kind = "subscriber_send_failure"
	KindNotFound              Kind = "not_found"
)

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func NewStoreUnavailable(op string, err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Op: op, Message: "store unavailable", Err: err}
}

func NewValidation(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func NewSubscriberSendFailure(subscriberID string, err error) *Error {
	return &Error{Kind: KindSubscriberSendFailure, Op: "send to " + subscriberID, Message: "subscriber send failed", Err: err}
}

func NewNotFound(op, msg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsStoreUnavailable(err error) bool      { return KindOf(err) == KindStoreUnavailable }
func IsValidation(err error) bool            { return KindOf(err) == KindValidation }
func IsSubscriberSendFailure(err error) bool { return KindOf(err) == KindSubscriberSendFailure }
func IsNotFound(err error) bool              { return KindOf(err) == KindNotFound }

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
