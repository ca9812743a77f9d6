package relay

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Listener accepts raw console clients and runs a Session for each.
type Listener struct {
	ln           net.Listener
	device       string
	writeEnabled bool
	bus          *Bus
	funnel       *Funnel
	logger       *slog.Logger

	wg sync.WaitGroup
}

// NewListener wraps an already bound listener.
func NewListener(ln net.Listener, device string, writeEnabled bool, bus *Bus, funnel *Funnel, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		ln:           ln,
		device:       device,
		writeEnabled: writeEnabled,
		bus:          bus,
		funnel:       funnel,
		logger:       logger,
	}
}

// Addr returns the listening address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. Accept errors are logged and the loop keeps going. Sessions still
// running when Serve returns are ended by ctx.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	defer stop()

	l.logger.Info("Listening", "addr", l.ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				l.wg.Wait()
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				l.wg.Wait()
				return nil
			}
			backoff = nextBackoff(backoff)
			l.logger.Error("accept failed", "err", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		sess := NewSession(conn, l.device, l.writeEnabled, l.bus, l.funnel, l.logger)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			if err := sess.Serve(ctx); err != nil && !errors.Is(err, ErrUpstreamGone) && !errors.Is(err, context.Canceled) {
				l.logger.Error("client error", "peer", sess.Peer(), "err", err)
			}
		}()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
