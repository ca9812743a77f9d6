/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/allbin/serial-console/internal/config"
	"github.com/allbin/serial-console/internal/sse"
)

const shutdownTimeout = 5 * time.Second

// webCmd represents the web command
var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve a console server to browsers",
	Long: `Serve a browser page that follows a console server.

GET / and /console/ return the page. GET /client and /console/client open a
connection to the console server and stream its output as Server-Sent
Events, one printable line of at most --width characters per event.

Example usage:
  serial-console web --connect 127.0.0.1:24242
  serial-console web -l 0.0.0.0:8080 --title "Router console"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWeb(v)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ln, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
		}

		logger.Info("Starting up console web server...", "addr", ln.Addr().String(), "connect", cfg.Connect)
		return runWeb(ctx, cfg, ln, logger)
	},
}

func init() {
	rootCmd.AddCommand(webCmd)

	webCmd.Flags().StringP("listen", "l", config.DefaultWebListen, "Address to serve HTTP on")
	webCmd.Flags().StringP("connect", "c", config.DefaultConnect, "Console server to stream")
	webCmd.Flags().Int("width", sse.DefaultWidth, "Maximum characters per line")
	webCmd.Flags().String("title", config.DefaultTitle, "Page title")

	bindFlags(webCmd, "web")
}

// runWeb serves HTTP on ln until ctx is cancelled. Request contexts derive
// from ctx so open event streams end with it.
func runWeb(ctx context.Context, cfg config.Web, ln net.Listener, logger *slog.Logger) error {
	handler, err := sse.NewServer(cfg.Connect, sse.Page{Title: cfg.Title},
		sse.WithWidth(cfg.Width),
		sse.WithLogger(logger),
		sse.WithDialTimeout(10*time.Second),
	)
	if err != nil {
		ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
