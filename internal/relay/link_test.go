package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/serial-console"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type readStep struct {
	data []byte
	err  error
}

// scriptedDevice replays read steps and records writes. Close unblocks a
// pending Read the way the real driver does.
type scriptedDevice struct {
	reads     chan readStep
	writes    chan []byte
	writeErr  error
	closed    chan struct{}
	closeOnce sync.Once
}

func newScriptedDevice() *scriptedDevice {
	return &scriptedDevice{
		reads:  make(chan readStep),
		writes: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (d *scriptedDevice) Read(p []byte) (int, error) {
	select {
	case s, ok := <-d.reads:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, s.data), s.err
	case <-d.closed:
		return 0, serial.ErrPortClosed
	}
}

func (d *scriptedDevice) Write(p []byte) (int, error) {
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	d.writes <- cp
	return len(p), nil
}

func (d *scriptedDevice) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

func (d *scriptedDevice) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

type linkHarness struct {
	dev    *scriptedDevice
	bus    *Bus
	funnel *Funnel
	done   chan error
	cancel context.CancelFunc
}

func startLink(t *testing.T) *linkHarness {
	t.Helper()
	h := &linkHarness{
		dev:    newScriptedDevice(),
		bus:    NewBus(16),
		funnel: NewFunnel(16),
		done:   make(chan error, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)

	link := NewLink(h.dev, h.bus, h.funnel, discardLogger)
	go func() { h.done <- link.Run(ctx) }()
	return h
}

func (h *linkHarness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("link did not stop")
		return nil
	}
}

func TestLinkPublishesReads(t *testing.T) {
	h := startLink(t)
	sub := h.bus.Subscribe()

	h.dev.reads <- readStep{data: []byte("hello")}
	h.dev.reads <- readStep{data: []byte(" world")}

	for _, want := range []string{"hello", " world"} {
		got, err := recvTimeout(t, sub)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestLinkWritesFunnelItemsInOrder(t *testing.T) {
	h := startLink(t)

	require.NoError(t, h.funnel.Submit(context.Background(), []byte("A")))
	require.NoError(t, h.funnel.Submit(context.Background(), []byte("B")))

	for _, want := range []string{"A", "B"} {
		select {
		case got := <-h.dev.writes:
			assert.Equal(t, want, string(got))
		case <-time.After(time.Second):
			t.Fatalf("write %q never reached the device", want)
		}
	}
}

func TestLinkSkipsReadTimeouts(t *testing.T) {
	h := startLink(t)
	sub := h.bus.Subscribe()

	h.dev.reads <- readStep{err: serial.ErrReadTimeout}
	h.dev.reads <- readStep{data: []byte("after timeout")}

	got, err := recvTimeout(t, sub)
	require.NoError(t, err)
	assert.Equal(t, "after timeout", string(got))
}

func TestLinkDeviceCloseEndsCleanly(t *testing.T) {
	h := startLink(t)
	sub := h.bus.Subscribe()

	close(h.dev.reads)

	require.NoError(t, h.wait(t))
	_, err := recvTimeout(t, sub)
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.ErrorIs(t, h.funnel.Submit(context.Background(), []byte("x")), ErrFunnelClosed)
	assert.True(t, h.dev.isClosed())
}

func TestLinkZeroLengthReadMeansClosed(t *testing.T) {
	h := startLink(t)

	h.dev.reads <- readStep{}

	require.NoError(t, h.wait(t))
}

func TestLinkReadErrorIsFatal(t *testing.T) {
	h := startLink(t)
	boom := errors.New("device unplugged")

	h.dev.reads <- readStep{err: boom}

	err := h.wait(t)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "serial read")
}

func TestLinkWriteErrorIsFatal(t *testing.T) {
	h := startLink(t)
	boom := errors.New("write fault")
	h.dev.writeErr = boom

	require.NoError(t, h.funnel.Submit(context.Background(), []byte("A")))

	err := h.wait(t)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "serial write")
}

func TestLinkStopsOnCancel(t *testing.T) {
	h := startLink(t)
	h.cancel()

	assert.ErrorIs(t, h.wait(t), context.Canceled)
	assert.True(t, h.dev.isClosed())
}

func TestLinkOverPTY(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err := serial.Open(slave.Name())
	require.NoError(t, err)

	bus := NewBus(16)
	funnel := NewFunnel(16)
	sub := bus.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewLink(port, bus, funnel, discardLogger).Run(ctx) }()

	_, err = master.Write([]byte("boot ok\r\n"))
	require.NoError(t, err)
	got, err := recvTimeout(t, sub)
	require.NoError(t, err)
	assert.Equal(t, "boot ok\r\n", string(got))

	require.NoError(t, funnel.Submit(context.Background(), []byte("reset\n")))
	buf := make([]byte, 64)
	n, err := master.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "reset\n", string(buf[:n]))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("link did not stop")
	}
	assert.ErrorIs(t, port.Close(), serial.ErrPortClosed)
}
