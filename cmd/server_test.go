package cmd

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/serial-console/internal/config"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// pipeDevice reads what the test writes to its output pipe and writes into
// its input pipe.
type pipeDevice struct {
	*io.PipeReader
	*io.PipeWriter
}

func (d pipeDevice) Close() error {
	d.PipeReader.Close()
	d.PipeWriter.Close()
	return nil
}

func startServe(t *testing.T, ctx context.Context, write bool) (out *io.PipeWriter, in *io.PipeReader, addr string, done <-chan error) {
	t.Helper()
	outR, outW := io.Pipe()
	inR, inW := io.Pipe()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := config.Server{Write: write, BusCapacity: 16, FunnelCapacity: 16}
	ch := make(chan error, 1)
	go func() {
		ch <- serve(ctx, cfg, pipeDevice{outR, inW}, "/dev/ttyTEST0", ln, discardLogger)
	}()
	return outW, inR, ln.Addr().String(), ch
}

func waitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return")
		return nil
	}
}

func TestServeRelaysBothWays(t *testing.T) {
	out, in, addr, done := startServe(t, context.Background(), true)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	banner, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "*** Connected to: /dev/ttyTEST0\n", banner)

	_, err = out.Write([]byte("login: "))
	require.NoError(t, err)
	got := make([]byte, 7)
	_, err = io.ReadFull(r, got)
	require.NoError(t, err)
	assert.Equal(t, "login: ", string(got))

	_, err = conn.Write([]byte("root\r"))
	require.NoError(t, err)
	typed := make([]byte, 5)
	_, err = io.ReadFull(in, typed)
	require.NoError(t, err)
	assert.Equal(t, "root\r", string(typed))

	// Device hangup ends the server and every client.
	out.Close()
	assert.NoError(t, waitServe(t, done))
	_, err = r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, _, addr, done := startServe(t, ctx, false)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)

	cancel()
	assert.NoError(t, waitServe(t, done))
}
