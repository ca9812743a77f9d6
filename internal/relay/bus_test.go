package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvTimeout(t *testing.T, s *Subscription) ([]byte, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.Recv(ctx)
}

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(8)
	subs := []*Subscription{bus.Subscribe(), bus.Subscribe(), bus.Subscribe()}
	require.Equal(t, 3, bus.Subscribers())

	bus.Publish([]byte("one"))
	bus.Publish([]byte("two"))

	for i, s := range subs {
		for _, want := range []string{"one", "two"} {
			got, err := recvTimeout(t, s)
			require.NoError(t, err, "subscriber %d", i)
			assert.Equal(t, want, string(got), "subscriber %d", i)
		}
	}
}

func TestBusLateSubscriberSeesNoHistory(t *testing.T) {
	bus := NewBus(8)
	early := bus.Subscribe()
	bus.Publish([]byte("before"))

	late := bus.Subscribe()
	bus.Publish([]byte("after"))

	got, err := recvTimeout(t, late)
	require.NoError(t, err)
	assert.Equal(t, "after", string(got))

	got, err = recvTimeout(t, early)
	require.NoError(t, err)
	assert.Equal(t, "before", string(got))
}

func TestBusLaggingSubscriberGetsGapThenResumes(t *testing.T) {
	bus := NewBus(4)
	slow := bus.Subscribe()
	fast := bus.Subscribe()

	for i := 0; i < 10; i++ {
		bus.Publish([]byte(fmt.Sprint(i)))
		got, err := recvTimeout(t, fast)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprint(i), string(got))
	}

	_, err := recvTimeout(t, slow)
	var lag *LagError
	require.True(t, errors.As(err, &lag), "expected LagError, got %v", err)
	assert.Equal(t, uint64(6), lag.Missed)

	for i := 6; i < 10; i++ {
		got, err := recvTimeout(t, slow)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(i), string(got))
	}

	bus.Publish([]byte("next"))
	got, err := recvTimeout(t, slow)
	require.NoError(t, err)
	assert.Equal(t, "next", string(got))
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus(2)
	bus.Subscribe()
	bus.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			bus.Publish([]byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on subscribers that never read")
	}
}

func TestBusCloseDrainsThenReportsClosed(t *testing.T) {
	bus := NewBus(8)
	s := bus.Subscribe()
	bus.Publish([]byte("last"))
	bus.Close()
	bus.Close()

	got, err := recvTimeout(t, s)
	require.NoError(t, err)
	assert.Equal(t, "last", string(got))

	_, err = recvTimeout(t, s)
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.Equal(t, 0, bus.Subscribers())

	_, err = recvTimeout(t, bus.Subscribe())
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestBusCloseWakesBlockedReceiver(t *testing.T) {
	bus := NewBus(8)
	s := bus.Subscribe()

	errs := make(chan error, 1)
	go func() {
		_, err := s.Recv(context.Background())
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	bus.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrBusClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Close")
	}
}

func TestSubscriptionRecvHonoursContext(t *testing.T) {
	bus := NewBus(8)
	s := bus.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(8)
	s := bus.Subscribe()
	s.Unsubscribe()
	require.Equal(t, 0, bus.Subscribers())

	bus.Publish([]byte("ignored"))
	_, err := recvTimeout(t, s)
	assert.ErrorIs(t, err, ErrBusClosed)
}
