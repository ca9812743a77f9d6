package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/allbin/serial-console"
	"github.com/allbin/serial-console/internal/logging"
)

// ReadBufferSize is the size of a single device read.
const ReadBufferSize = 1024

// Link is the only owner of the serial device. It publishes everything the
// device emits to a Bus and writes everything arriving on a Funnel to the
// device.
type Link struct {
	dev    io.ReadWriteCloser
	bus    *Bus
	funnel *Funnel
	logger *slog.Logger
}

// NewLink takes ownership of dev. The link closes dev, bus and funnel when
// Run returns.
func NewLink(dev io.ReadWriteCloser, bus *Bus, funnel *Funnel, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	return &Link{
		dev:    dev,
		bus:    bus,
		funnel: funnel,
		logger: logger,
	}
}

type readResult struct {
	data []byte
	err  error
}

// Run services the device until it closes, fails or ctx is cancelled. Each
// iteration handles whichever of a completed read or a pending write is
// ready first. A closed device ends Run with a nil error; any other device
// error is returned.
func (l *Link) Run(ctx context.Context) error {
	defer l.bus.Close()
	defer l.funnel.Close()

	stop := make(chan struct{})
	reads := make(chan readResult)
	readerDone := make(chan struct{})
	go l.readLoop(reads, stop, readerDone)

	defer func() {
		close(stop)
		l.dev.Close()
		<-readerDone
	}()

	l.logger.Info("Starting serial IO")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-l.funnel.Items():
			l.logger.Log(ctx, logging.LevelTrace, "serial write", "bytes", len(msg), "data", fmt.Sprintf("%q", msg))
			if err := writeAll(l.dev, msg); err != nil {
				return fmt.Errorf("serial write: %w", err)
			}

		case r := <-reads:
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					l.logger.Info("Serial <EOF>")
					return nil
				}
				return fmt.Errorf("serial read: %w", r.err)
			}
			if len(r.data) == 0 {
				l.logger.Info("Serial <EOF>")
				return nil
			}
			l.logger.Log(ctx, logging.LevelTrace, "serial read", "bytes", len(r.data), "data", fmt.Sprintf("%q", r.data))
			l.bus.Publish(r.data)
		}
	}
}

// readLoop performs the blocking device reads on behalf of Run. It stops on
// the first terminal result or when stop is closed.
func (l *Link) readLoop(reads chan<- readResult, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, ReadBufferSize)
	for {
		n, err := l.dev.Read(buf)
		if isReadTimeout(err) {
			select {
			case <-stop:
				return
			default:
				continue
			}
		}

		r := readResult{err: err}
		if n > 0 {
			r.data = make([]byte, n)
			copy(r.data, buf[:n])
			r.err = nil
		}

		select {
		case reads <- r:
		case <-stop:
			return
		}
		if r.err != nil || n == 0 {
			return
		}
	}
}

func isReadTimeout(err error) bool {
	return errors.Is(err, serial.ErrReadTimeout) || errors.Is(err, os.ErrDeadlineExceeded)
}

func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
