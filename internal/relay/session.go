package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
)

// Session bridges one client connection to the relay: bus output is copied
// to the connection, and connection input is submitted to the funnel when
// writes are enabled.
type Session struct {
	conn         net.Conn
	peer         string
	device       string
	writeEnabled bool
	sub          *Subscription
	funnel       *Funnel
	logger       *slog.Logger
}

// NewSession subscribes to bus immediately, so the client sees everything
// published from this point on.
func NewSession(conn net.Conn, device string, writeEnabled bool, bus *Bus, funnel *Funnel, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	peer := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		peer = addr.String()
	}
	return &Session{
		conn:         conn,
		peer:         peer,
		device:       device,
		writeEnabled: writeEnabled,
		sub:          bus.Subscribe(),
		funnel:       funnel,
		logger:       logger.With("peer", peer),
	}
}

// Peer returns the remote address of the client.
func (s *Session) Peer() string {
	return s.peer
}

// Serve runs the session until the peer disconnects (nil), the transport
// fails (the I/O error), or the serial link ends (ErrUpstreamGone). The
// connection is closed when Serve returns.
func (s *Session) Serve(ctx context.Context) error {
	defer s.sub.Unsubscribe()
	defer s.conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.Info("Client connection")

	w := bufio.NewWriter(s.conn)
	if _, err := fmt.Fprintf(w, "*** Connected to: %s\n", s.device); err != nil {
		return fmt.Errorf("write banner: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write banner: %w", err)
	}

	results := make(chan error, 2)
	go func() { results <- s.forwardOutput(ctx, w) }()
	go func() { results <- s.forwardInput(ctx) }()

	err := <-results
	cancel()
	s.conn.Close()
	<-results

	switch {
	case err == nil:
		s.logger.Info("Client disconnected")
	case errors.Is(err, ErrUpstreamGone):
		s.logger.Info("Serial link gone, closing client")
	}
	return err
}

// forwardOutput copies bus chunks to the connection, flushing after each.
func (s *Session) forwardOutput(ctx context.Context, w *bufio.Writer) error {
	for {
		p, err := s.sub.Recv(ctx)
		var lag *LagError
		switch {
		case errors.As(err, &lag):
			s.logger.Warn("Client lagging", "missed", lag.Missed)
			continue
		case errors.Is(err, ErrBusClosed):
			return ErrUpstreamGone
		case err != nil:
			return err
		}

		if _, err := w.Write(p); err != nil {
			return fmt.Errorf("socket write: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("socket write: %w", err)
		}
	}
}

// forwardInput reads from the connection and, when writes are enabled,
// submits the bytes to the funnel. Otherwise input is discarded.
func (s *Session) forwardInput(ctx context.Context) error {
	buf := make([]byte, ReadBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.logger.Debug("Socket read", "bytes", n)
			if s.writeEnabled {
				if err := s.funnel.Submit(ctx, buf[:n]); err != nil {
					if errors.Is(err, ErrFunnelClosed) {
						return ErrUpstreamGone
					}
					return err
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("socket read: %w", err)
		}
	}
}
