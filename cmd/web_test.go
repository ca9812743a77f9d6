package cmd

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/serial-console/internal/config"
)

// holdingConsole greets every client with one line and keeps it open.
func holdingConsole(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.WriteString(conn, "*** Connected to: /dev/ttyTEST0\n")
				io.Copy(io.Discard, conn)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestRunWebStreamsUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Web{Connect: holdingConsole(t), Width: 80, Title: "Lab bench"}
	done := make(chan error, 1)
	go func() { done <- runWeb(ctx, cfg, ln, discardLogger) }()

	resp, err := http.Get(base + "/console/")
	require.NoError(t, err)
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Lab bench</title>")

	stream, err := http.Get(base + "/console/client")
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)

	r := bufio.NewReader(stream.Body)
	var event strings.Builder
	for !strings.HasSuffix(event.String(), "\r\n\r\n") {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		event.WriteString(line)
	}
	assert.Equal(t, "retry: 999999\r\nid: 1\r\ndata: *** Connected to: /dev/ttyTEST0\r\n\r\n", event.String())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-timeAfter():
		t.Fatal("web server did not shut down")
	}
}
