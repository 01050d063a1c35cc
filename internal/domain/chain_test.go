package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constAttempt(name string, v int, err error, calls *[]string) Attempt[int] {
	return Attempt[int]{
		Name: name,
		Run: func(context.Context) (int, error) {
			*calls = append(*calls, name)
			return v, err
		},
	}
}

func TestChain_StopsAtFirstSuccess(t *testing.T) {
	var calls []string
	pauses := 0
	c := Chain[int]{
		Attempts: []Attempt[int]{
			constAttempt("a", 0, errors.New("boom"), &calls),
			constAttempt("b", 2, nil, &calls),
			constAttempt("c", 3, nil, &calls),
		},
		Between: func(context.Context) error { pauses++; return nil },
	}

	v, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, 1, pauses)
}

func TestChain_AllFail(t *testing.T) {
	var calls []string
	var failed []string
	errB := errors.New("b failed")
	c := Chain[int]{
		Attempts: []Attempt[int]{
			constAttempt("a", 0, errors.New("a failed"), &calls),
			constAttempt("b", 0, errB, &calls),
		},
		OnFailure: func(name string, _ error) { failed = append(failed, name) },
	}

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChainExhausted)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, []string{"a", "b"}, failed)
}

func TestChain_Empty(t *testing.T) {
	_, err := Chain[int]{}.Run(context.Background())
	assert.ErrorIs(t, err, ErrChainExhausted)
}

func TestChain_BetweenAborts(t *testing.T) {
	var calls []string
	stop := errors.New("stop")
	c := Chain[int]{
		Attempts: []Attempt[int]{
			constAttempt("a", 0, errors.New("a failed"), &calls),
			constAttempt("b", 1, nil, &calls),
		},
		Between: func(context.Context) error { return stop },
	}

	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"a"}, calls)
}

func TestChain_CancelledContext(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Chain[int]{Attempts: []Attempt[int]{constAttempt("a", 1, nil, &calls)}}.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestErrorKinds(t *testing.T) {
	wrapped := errors.Join(errors.New("other"), &LookupError{Kind: LookupRateLimited, Message: "slow down"})
	assert.True(t, IsRateLimited(wrapped))
	assert.False(t, IsRateLimited(&LookupError{Kind: LookupNoData}))

	full := &StorageError{Kind: StorageQuotaExceeded, Err: errors.New("quota")}
	assert.True(t, IsStorageFull(full))
	assert.Contains(t, full.Error(), "storage is full")

	le := &LocationError{Kind: LocationAllProvidersFailed, Message: "no fix", Err: errors.New("x")}
	assert.Equal(t, "no fix: x", le.Error())
	assert.Equal(t, LocationUnavailable, ParseLocationErrorKind("weird"))
}
