package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type alertSpy struct {
	calls []string
}

func (a *alertSpy) fn(_ context.Context, op string, _ int, _ error) { a.calls = append(a.calls, op) }

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	spy := &alertSpy{}
	p := New(3, 0, zap.NewNop(), WithAlert(spy.fn))

	calls := 0
	err := p.Do(context.Background(), "price", KindQuery, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Empty(t, spy.calls)
}

func TestDoExhaustedAlertsOnce(t *testing.T) {
	t.Parallel()

	spy := &alertSpy{}
	var hooked []string
	p := New(3, 0, zap.NewNop(), WithAlert(spy.fn), WithExhaustedHook(func(op string) { hooked = append(hooked, op) }))

	boom := errors.New("boom")
	calls := 0
	err := p.Do(context.Background(), "create_order", KindTrade, func(context.Context) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"create_order"}, spy.calls)
	assert.Equal(t, []string{"create_order"}, hooked)
}

func TestDoHistoryKindOnlyLogs(t *testing.T) {
	t.Parallel()

	spy := &alertSpy{}
	p := New(2, 0, zap.NewNop(), WithAlert(spy.fn))

	err := p.Do(context.Background(), "candles", KindHistory, func(context.Context) error {
		return errors.New("503")
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Empty(t, spy.calls)
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	t.Parallel()

	spy := &alertSpy{}
	p := New(3, 0, zap.NewNop(), WithAlert(spy.fn))

	calls := 0
	err := p.Do(context.Background(), "create_order", KindTrade, func(context.Context) error {
		calls++
		return Permanent(errors.New("margin is insufficient"))
	})

	assert.True(t, IsPermanent(err))
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
	assert.Empty(t, spy.calls)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := New(5, time.Hour, zap.NewNop())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, "account", KindQuery, func(context.Context) error {
			calls++
			return errors.New("reset by peer")
		})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestCallReturnsValue(t *testing.T) {
	t.Parallel()

	p := New(3, 0, nil)
	calls := 0
	v, err := Call(context.Background(), p, "price", KindQuery, func(context.Context) (float64, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("flaky")
		}
		return 42.5, nil
	})

	require.NoError(t, err)
	assert.InDelta(t, 42.5, v, 1e-9)
}

func TestDoStopPredicate(t *testing.T) {
	t.Parallel()

	spy := &alertSpy{}
	gone := errors.New("unknown order")
	p := New(3, 0, zap.NewNop(), WithAlert(spy.fn), WithStop(func(err error) bool { return errors.Is(err, gone) }))

	calls := 0
	err := p.Do(context.Background(), "cancel_tp", KindTrade, func(context.Context) error {
		calls++
		return gone
	})

	assert.ErrorIs(t, err, gone)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
	assert.Empty(t, spy.calls)
}
