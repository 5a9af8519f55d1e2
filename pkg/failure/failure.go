// Package failure classifies why a capture cycle did not complete.
//
// Kinds map one-to-one onto the cycle error taxonomy:
//
//	authentication_failure       bad bootstrap credentials; fatal, never retried
//	session_refresh_failure      refresh exhausted its bounded retries
//	ticket_issuance_failure      ticket request rejected or unreachable
//	upload_failure               signed upload rejected or ticket expired
//	recognition_service_failure  recognition exhausted its bounded retries
//	downstream_dispatch_failure  one cart line failed; siblings unaffected
//
// Low-confidence discards are not failures and have no Kind.
package failure

import (
	"errors"
	"fmt"
)

// Kind names one class of cycle failure.
type Kind string

const (
	KindAuthentication Kind = "authentication_failure"
	KindSessionRefresh Kind = "session_refresh_failure"
	KindTicketIssuance Kind = "ticket_issuance_failure"
	KindUpload         Kind = "upload_failure"
	KindRecognition    Kind = "recognition_service_failure"
	KindDispatch       Kind = "downstream_dispatch_failure"
)

func (k Kind) String() string { return string(k) }

// AbortsCycle reports whether a failure of this kind abandons the whole cycle.
// Only dispatch failures are isolated to a single line.
func (k Kind) AbortsCycle() bool {
	return k != KindDispatch && k != ""
}

// Error is a classified failure. Op names the step that failed.
type Error struct {
	Kind      Kind
	Op        string
	Err       error
	retryable bool
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New classifies err as a permanent failure of kind.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transient classifies err as a failure of kind that may succeed if retried.
func Transient(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err, retryable: true}
}

// KindOf returns the outermost Kind in the chain, or "" if err is unclassified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the outermost classified error was marked transient.
func Retryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.retryable
	}
	return false
}
