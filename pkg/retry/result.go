package retry

import "github.com/rohmanhakim/docs-crawler/pkg/failure"

// Result carries the outcome of a Retry call: the produced value on success,
// the terminal classified error on failure, and how many attempts it took.
type Result[T any] struct {
	value    T
	err      failure.ClassifiedError
	attempts int
}

// NewSuccessResult builds a Result representing a successful call.
func NewSuccessResult[T any](value T, attempts int) Result[T] {
	return Result[T]{
		value:    value,
		attempts: attempts,
	}
}

func (r Result[T]) IsSuccess() bool {
	return r.err == nil
}

func (r Result[T]) IsFailure() bool {
	return r.err != nil
}

func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) Attempts() int {
	return r.attempts
}

func (r Result[T]) Err() failure.ClassifiedError {
	return r.err
}
