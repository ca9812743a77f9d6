/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/allbin/serial-console/internal/config"
	"github.com/allbin/serial-console/internal/logging"
)

var (
	cfgFile string
	v       = config.New()
	logger  = slog.Default()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serial-console",
	Short: "Share one serial console with many clients",
	Long: `Share a single serial device with any number of network clients.

The server command owns the device and relays it over a raw TCP console
protocol. Everything the device prints is broadcast to every client; what
clients type is funnelled back to the device when writing is enabled.

The web command turns that raw console into a browser page fed by a
Server-Sent Events stream, and attach opens an interactive terminal client.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ReadFile(v, cfgFile); err != nil {
			return err
		}

		level := logging.Level(v.GetBool("debug"), v.GetBool("trace"))
		logger = logging.New(os.Stderr, logging.FormatAuto, level)
		slog.SetDefault(logger)

		if path := v.ConfigFileUsed(); path != "" {
			logger.Debug("loaded config file", "path", path)
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			logger.Debug("build", "version", info.Main.Version, "go", info.GoVersion)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./serial-console.yaml or $HOME/.config/serial-console/serial-console.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolP("trace", "t", false, "Enable trace logging of relayed traffic")

	v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	v.BindPFlag("trace", rootCmd.PersistentFlags().Lookup("trace"))
}

// bindFlags binds every local flag of cmd to the viper key prefix.<flag>.
func bindFlags(cmd *cobra.Command, prefix string) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		v.BindPFlag(prefix+"."+f.Name, f)
	})
}
