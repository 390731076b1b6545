package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixed time.Duration

func (f fixed) Next(int) time.Duration { return time.Duration(f) }

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	}, Policy{Name: "test_success", Attempts: 5, Backoff: fixed(time.Millisecond)})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhausts(t *testing.T) {
	var exhausted error
	calls := 0
	sentinel := errors.New("down")
	err := Do(context.Background(), func() error {
		calls++
		return sentinel
	}, Policy{
		Name:      "test_exhaust",
		Attempts:  3,
		Backoff:   fixed(time.Millisecond),
		OnExhaust: func(e error) { exhausted = e },
	})

	assert.ErrorIs(t, err, sentinel)
	assert.ErrorIs(t, exhausted, sentinel)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return context.Canceled
	}, DefaultKafkaPolicy(nil))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithoutBackoff(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return errors.New("once")
		}
		return nil
	}, Policy{Name: "test_nil_backoff", Attempts: 2})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, func() error { return errors.New("fail") },
		Policy{Name: "test_ctx", Attempts: 3, Backoff: fixed(time.Hour)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpoJitterCapped(t *testing.T) {
	b := ExpoJitter{Base: time.Second, Max: 4 * time.Second}
	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, 2*time.Second, b.Next(1))
	assert.Equal(t, 4*time.Second, b.Next(10))
}
