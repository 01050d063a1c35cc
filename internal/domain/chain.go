package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrChainExhausted is wrapped by Chain.Run when every attempt failed.
var ErrChainExhausted = errors.New("all attempts failed")

// Attempt is one strategy in an ordered fallback chain.
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Chain tries its attempts in order and stops at the first success.
type Chain[T any] struct {
	Attempts []Attempt[T]

	// Between runs after a failed attempt when another attempt follows.
	// A non-nil error aborts the chain and is returned as-is.
	Between func(ctx context.Context) error

	// OnFailure observes every failed attempt.
	OnFailure func(name string, err error)
}

// Run executes the chain. The returned error wraps ErrChainExhausted and every
// attempt's error when nothing succeeded.
func (c Chain[T]) Run(ctx context.Context) (T, error) {
	var zero T
	errs := make([]error, 0, len(c.Attempts))

	for i, a := range c.Attempts {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := a.Run(ctx)
		if err == nil {
			return v, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", a.Name, err))
		if c.OnFailure != nil {
			c.OnFailure(a.Name, err)
		}

		if c.Between != nil && i < len(c.Attempts)-1 {
			if err := c.Between(ctx); err != nil {
				return zero, err
			}
		}
	}

	if len(errs) == 0 {
		return zero, ErrChainExhausted
	}
	return zero, fmt.Errorf("%w: %w", ErrChainExhausted, errors.Join(errs...))
}
