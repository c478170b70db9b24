package api

import "fmt"

// Status tells a caller what kind of value a Result carries.
type Status int

const (
	StatusOK Status = iota
	// StatusSkip means the remote reported the item as absent or unavailable.
	StatusSkip
	// StatusFailed means the fetch or decode went wrong.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkip:
		return "skip"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result separates "legitimately empty" from "fetch failed" for leaf
// operations whose failures must not propagate.
type Result[T any] struct {
	Value  T
	Status Status
	Err    error
}

func OK[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

func Skip[T any](reason error) Result[T] {
	return Result[T]{Status: StatusSkip, Err: reason}
}

func Failed[T any](err error) Result[T] {
	return Result[T]{Status: StatusFailed, Err: err}
}

func (r Result[T]) IsOK() bool {
	return r.Status == StatusOK
}
