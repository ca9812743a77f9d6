/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/allbin/serial-console"
	"github.com/allbin/serial-console/internal/config"
	"github.com/allbin/serial-console/internal/relay"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Relay a serial port to TCP console clients",
	Long: `Open a serial port and relay it to any number of TCP clients.

Every client first receives a "*** Connected to: <port>" line, followed by
everything the device prints from then on. Clients that fall behind skip
the oldest output instead of slowing the others down. With --write, bytes
sent by clients are written to the device; otherwise they are discarded.

The server exits when the device goes away or on SIGINT/SIGTERM.

Example usage:
  serial-console server --port /dev/ttyUSB0 --baud 9600
  serial-console server -s /dev/ttyACM0 -l 0.0.0.0:24242 --write`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadServer(v)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("Starting up serial console server...")
		return runServer(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("listen", "l", config.DefaultServerListen, "Address to accept console clients on")
	serverCmd.Flags().StringP("port", "s", config.DefaultPort, "Serial port device")
	serverCmd.Flags().String("flow", config.DefaultFlow, "Flow control: none, hardware, software")
	serverCmd.Flags().IntP("baud", "b", config.DefaultBaud, "Baud rate")
	serverCmd.Flags().Int("databits", config.DefaultDataBits, "Data bits: 5, 6, 7, 8")
	serverCmd.Flags().String("parity", config.DefaultParity, "Parity: N, E, O")
	serverCmd.Flags().Int("stopbits", config.DefaultStopBits, "Stop bits: 1, 2")
	serverCmd.Flags().BoolP("write", "w", false, "Forward client input to the device")
	serverCmd.Flags().Int("bus-capacity", relay.DefaultCapacity, "Chunks buffered per client before the oldest are dropped")
	serverCmd.Flags().Int("funnel-capacity", relay.DefaultCapacity, "Client writes queued for the device before senders block")

	bindFlags(serverCmd, "server")
}

func runServer(ctx context.Context, cfg config.Server, logger *slog.Logger) error {
	opts, err := cfg.Serial.Options()
	if err != nil {
		return err
	}
	port, err := serial.Open(cfg.Serial.Port, opts...)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Serial.Port, err)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		port.Close()
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}

	mode := "disabled"
	if cfg.Write {
		mode = "enabled"
	}
	logger.Info(fmt.Sprintf("Opened serial port %s with write %s", port.Name(), mode),
		"settings", port.Config().String())

	return serve(ctx, cfg, port, port.Name(), ln, logger)
}

// serve runs the link and the listener until the device closes, either of
// them fails or ctx is cancelled. It owns dev and ln.
func serve(ctx context.Context, cfg config.Server, dev io.ReadWriteCloser, device string, ln net.Listener, logger *slog.Logger) error {
	bus := relay.NewBus(cfg.BusCapacity)
	funnel := relay.NewFunnel(cfg.FunnelCapacity)
	link := relay.NewLink(dev, bus, funnel, logger)
	listener := relay.NewListener(ln, device, cfg.Write, bus, funnel, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return ignoreCanceled(link.Run(ctx))
	})
	g.Go(func() error {
		defer cancel()
		return ignoreCanceled(listener.Serve(ctx))
	})
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
