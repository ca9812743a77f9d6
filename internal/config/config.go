// Package config resolves command settings from flags, environment and an
// optional config file through viper, and validates them before anything is
// started.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/allbin/serial-console"
	"github.com/allbin/serial-console/internal/relay"
	"github.com/allbin/serial-console/internal/sse"
)

// EnvPrefix is prepended to every environment override, e.g.
// SERIAL_CONSOLE_SERVER_BAUD.
const EnvPrefix = "SERIAL_CONSOLE"

// Defaults shared by flag definitions and viper.
const (
	DefaultServerListen = "127.0.0.1:24242"
	DefaultPort         = "/dev/ttyUSB0"
	DefaultFlow         = "none"
	DefaultBaud         = 115200
	DefaultDataBits     = 8
	DefaultParity       = "N"
	DefaultStopBits     = 1
	DefaultWebListen    = "127.0.0.1:8080"
	DefaultConnect      = "127.0.0.1:24242"
	DefaultTitle        = "Console"
)

// Serial holds the device line settings as given by the user.
type Serial struct {
	Port     string
	Baud     int
	DataBits int
	Parity   string
	StopBits int
	Flow     string
}

// Options converts the settings into driver options. Every unrecognised
// value is reported, wrapped in serial.ErrInvalidConfig.
func (s Serial) Options() ([]serial.Option, error) {
	var errs []error

	parity, err := serial.ParseParity(s.Parity)
	if err != nil {
		errs = append(errs, err)
	}
	flow, err := serial.ParseFlowControl(s.Flow)
	if err != nil {
		errs = append(errs, err)
	}

	opts := []serial.Option{
		serial.WithBaudRate(s.Baud),
		serial.WithDataBits(s.DataBits),
		serial.WithStopBits(s.StopBits),
		serial.WithParity(parity),
		serial.WithFlowControl(flow),
	}

	// Resolve once so bad numeric values surface here rather than when the
	// device is opened.
	if _, err := serial.NewConfig(opts...); err != nil {
		if !errors.Is(err, serial.ErrInvalidConfig) {
			err = fmt.Errorf("%w: %w", serial.ErrInvalidConfig, err)
		}
		errs = append(errs, fmt.Errorf("line settings %d/%d/%d: %w", s.Baud, s.DataBits, s.StopBits, err))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return opts, nil
}

// Server is the configuration of the raw console relay.
type Server struct {
	Listen         string
	Serial         Serial
	Write          bool
	BusCapacity    int
	FunnelCapacity int
}

// Web is the configuration of the event-stream front end.
type Web struct {
	Listen  string
	Connect string
	Width   int
	Title   string
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.listen", DefaultServerListen)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.flow", DefaultFlow)
	v.SetDefault("server.baud", DefaultBaud)
	v.SetDefault("server.databits", DefaultDataBits)
	v.SetDefault("server.parity", DefaultParity)
	v.SetDefault("server.stopbits", DefaultStopBits)
	v.SetDefault("server.write", false)
	v.SetDefault("server.bus-capacity", relay.DefaultCapacity)
	v.SetDefault("server.funnel-capacity", relay.DefaultCapacity)

	v.SetDefault("web.listen", DefaultWebListen)
	v.SetDefault("web.connect", DefaultConnect)
	v.SetDefault("web.width", sse.DefaultWidth)
	v.SetDefault("web.title", DefaultTitle)
	return v
}

// ReadFile loads path, or when path is empty looks for serial-console.yaml
// in the working directory and $HOME/.config/serial-console. A missing
// default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("serial-console")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/serial-console")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// LoadServer resolves and validates the relay settings.
func LoadServer(v *viper.Viper) (Server, error) {
	s := Server{
		Listen: v.GetString("server.listen"),
		Serial: Serial{
			Port:     v.GetString("server.port"),
			Baud:     v.GetInt("server.baud"),
			DataBits: v.GetInt("server.databits"),
			Parity:   v.GetString("server.parity"),
			StopBits: v.GetInt("server.stopbits"),
			Flow:     v.GetString("server.flow"),
		},
		Write:          v.GetBool("server.write"),
		BusCapacity:    v.GetInt("server.bus-capacity"),
		FunnelCapacity: v.GetInt("server.funnel-capacity"),
	}

	if s.Listen == "" {
		return Server{}, fmt.Errorf("%w: empty listen address", serial.ErrInvalidConfig)
	}
	if s.Serial.Port == "" {
		return Server{}, fmt.Errorf("%w: empty serial port", serial.ErrInvalidConfig)
	}
	if s.BusCapacity <= 0 || s.FunnelCapacity <= 0 {
		return Server{}, fmt.Errorf("%w: channel capacities must be positive", serial.ErrInvalidConfig)
	}
	if _, err := s.Serial.Options(); err != nil {
		return Server{}, err
	}
	return s, nil
}

// LoadWeb resolves and validates the event-stream settings.
func LoadWeb(v *viper.Viper) (Web, error) {
	w := Web{
		Listen:  v.GetString("web.listen"),
		Connect: v.GetString("web.connect"),
		Width:   v.GetInt("web.width"),
		Title:   v.GetString("web.title"),
	}
	if w.Listen == "" || w.Connect == "" {
		return Web{}, fmt.Errorf("%w: listen and connect addresses are required", serial.ErrInvalidConfig)
	}
	if w.Width <= 0 {
		return Web{}, fmt.Errorf("%w: line width must be positive", serial.ErrInvalidConfig)
	}
	return w, nil
}
