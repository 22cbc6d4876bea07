package transport

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSinkClosed   = errors.New("sink is closed")
	ErrStatus       = errors.New("unexpected status")
	ErrMissingToken = errors.New("session started without an auth token")
)

// Kind classifies an Outcome
type Kind int

const (
	KindSuccess Kind = iota
	KindFailure
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the result of a handshake or delivery
type Outcome struct {
	Kind   Kind
	Body   []byte
	Status int
	Err    error
}

// Callback receives the outcome of an asynchronous call
type Callback func(Outcome)

// Succeeded builds a success outcome carrying the response body
func Succeeded(status int, body []byte) Outcome {
	return Outcome{Kind: KindSuccess, Status: status, Body: body}
}

// Failed builds a failure outcome
func Failed(err error) Outcome {
	out := Outcome{Kind: KindFailure, Err: err}
	var se *StatusError
	if errors.As(err, &se) {
		out.Status = se.Code
	}
	return out
}

// Cancelled builds a cancelled outcome
func Cancelled(err error) Outcome {
	return Outcome{Kind: KindCancelled, Err: err}
}

// OK reports whether the outcome is a success
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// SessionRejected reports whether the sink refused the session credentials.
// The session has to be started again before delivery can succeed.
func (o Outcome) SessionRejected() bool {
	return o.Kind == KindFailure && (o.Status == http.StatusUnauthorized || o.Status == http.StatusForbidden)
}

// Payload is one serialized batch
type Payload struct {
	Body        []byte
	ContentType string
}

// Transport is the boundary between the delivery engine and a sink.
// BeginSession and Deliver must not block; cb runs exactly once.
type Transport interface {
	Name() string
	BeginSession(cb Callback)
	Deliver(payload Payload, cb Callback)
	Shutdown() error
}

// StatusError reports a non-2xx response
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %d", ErrStatus, e.Code)
	}
	return fmt.Sprintf("%s: %d: %s", ErrStatus, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// IsSuccess reports whether code is in the 2xx range
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}
