/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"net"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/allbin/serial-console/internal/config"
	"github.com/allbin/serial-console/internal/tui/models"
)

// attachCmd represents the attach command
var attachCmd = &cobra.Command{
	Use:   "attach [addr]",
	Short: "Attach an interactive terminal to a console server",
	Long: `Attach an interactive terminal to a console server.

Shows everything the serial device prints and, in insert mode, sends typed
lines back. Whether they reach the device depends on the server's --write
setting. Features include:
- Vim-like NORMAL/INSERT modes
- ASCII and hex input, with history
- Text and hex dump views with scrollback
- Connection and traffic indicators

Example usage:
  serial-console attach
  serial-console attach 192.168.1.10:24242 --eol crlf`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := config.DefaultConnect
		if len(args) == 1 {
			addr = args[0]
		}

		eolName, _ := cmd.Flags().GetString("eol")
		eol, err := lineEnding(eolName)
		if err != nil {
			return err
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")

		return runAttach(addr, eol, timeout)
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)

	attachCmd.Flags().String("eol", "lf", "Line ending appended to ASCII input: lf, cr, crlf, none")
	attachCmd.Flags().Duration("timeout", 5*time.Second, "Connection timeout")
}

func lineEnding(name string) (string, error) {
	switch name {
	case "lf":
		return "\n", nil
	case "cr":
		return "\r", nil
	case "crlf":
		return "\r\n", nil
	case "none":
		return "", nil
	}
	return "", fmt.Errorf("unknown line ending %q", name)
}

func runAttach(addr, eol string, timeout time.Duration) error {
	dialer := net.Dialer{Timeout: timeout}
	m := models.NewAttach(addr, eol, func(ctx context.Context, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	})
	defer m.Close()

	logger.Debug("attaching", "addr", addr)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
