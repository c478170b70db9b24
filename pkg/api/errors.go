package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when the service signals the resource does not
// exist, either with HTTP 404 or with a {"status":404} body.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response other than 404.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.Code)
}

// ErrorKind groups branch failures for the crawl metrics.
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindNotFound  ErrorKind = "not_found"
	KindTimeout   ErrorKind = "timeout"
	KindStatus    ErrorKind = "status"
	KindDecode    ErrorKind = "decode"
	KindCancelled ErrorKind = "cancelled"
	KindTransport ErrorKind = "transport"
)

// DecodeError wraps a body that could not be parsed.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Classify maps an error from this package to an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var se *StatusError
	if errors.As(err, &se) {
		return KindStatus
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return KindDecode
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return KindTimeout
	}
	return KindTransport
}
