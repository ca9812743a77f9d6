package serial

import (
	"fmt"
	"strings"
	"time"
)

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

// ParseParity accepts N/E/O in either case as well as the spelled-out names.
func ParseParity(s string) (Parity, error) {
	switch s {
	case "N", "n", "none", "NONE":
		return ParityNone, nil
	case "E", "e", "even", "EVEN":
		return ParityEven, nil
	case "O", "o", "odd", "ODD":
		return ParityOdd, nil
	}
	return 0, fmt.Errorf("%w: invalid parity %q", ErrInvalidConfig, s)
}

// FlowControl represents the flow control mode
type FlowControl int

const (
	FlowControlNone     FlowControl = iota
	FlowControlHardware             // RTS/CTS
	FlowControlSoftware             // XON/XOFF
)

func (fc FlowControl) String() string {
	switch fc {
	case FlowControlNone:
		return "none"
	case FlowControlHardware:
		return "hardware"
	case FlowControlSoftware:
		return "software"
	default:
		return fmt.Sprintf("FlowControl(%d)", int(fc))
	}
}

// ParseFlowControl accepts the short and long spellings of none, hardware
// and software flow control.
func ParseFlowControl(s string) (FlowControl, error) {
	switch s {
	case "N", "n", "NONE", "none":
		return FlowControlNone, nil
	case "H", "h", "HARD", "hard", "hw", "hardware":
		return FlowControlHardware, nil
	case "S", "s", "SOFT", "soft", "sw", "software":
		return FlowControlSoftware, nil
	}
	return 0, fmt.Errorf("%w: invalid flow control %q", ErrInvalidConfig, s)
}

// Config holds the configuration for a serial port
type Config struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl
	ReadTimeout time.Duration // 0 blocks until data arrives or the port closes
}

// String renders the line settings in the usual 115200 8N1 notation.
func (c Config) String() string {
	return fmt.Sprintf("%d %d%s%d flow=%s",
		c.BaudRate, c.DataBits, strings.ToUpper(c.Parity.String()[:1]), c.StopBits, c.FlowControl)
}

// Option is a functional option for configuring a serial port
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      ParityNone,
		FlowControl: FlowControlNone,
	}
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if _, err := getBaudRate(rate); err != nil {
			return err
		}
		c.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if bits < 5 || bits > 8 {
			return ErrInvalidConfig
		}
		c.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(c *Config) error {
		if bits != 1 && bits != 2 {
			return ErrInvalidConfig
		}
		c.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		if parity < ParityNone || parity > ParityEven {
			return ErrInvalidConfig
		}
		c.Parity = parity
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(c *Config) error {
		if fc < FlowControlNone || fc > FlowControlSoftware {
			return ErrInvalidConfig
		}
		c.FlowControl = fc
		return nil
	}
}

// WithReadTimeout bounds how long a single Read waits for data. Reads that
// hit the bound return ErrReadTimeout.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout < 0 {
			return ErrInvalidConfig
		}
		c.ReadTimeout = timeout
		return nil
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...Option) (Config, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return Config{}, err
		}
	}
	return config, nil
}
