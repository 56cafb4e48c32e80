package nexus

import "context"

// Result is the outcome of one periodic fetch. Pollers check OK explicitly
// instead of hiding failures in an empty error branch.
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Poll runs fetch and packages its outcome as a Result.
func Poll[T any](ctx context.Context, fetch func(context.Context) (T, error)) Result[T] {
	v, err := fetch(ctx)
	return Result[T]{Value: v, Err: err}
}
