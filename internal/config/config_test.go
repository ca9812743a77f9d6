package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/serial-console"
)

func TestLoadServerDefaults(t *testing.T) {
	s, err := LoadServer(New())
	require.NoError(t, err)

	assert.Equal(t, DefaultServerListen, s.Listen)
	assert.Equal(t, Serial{
		Port:     DefaultPort,
		Baud:     DefaultBaud,
		DataBits: DefaultDataBits,
		Parity:   DefaultParity,
		StopBits: DefaultStopBits,
		Flow:     DefaultFlow,
	}, s.Serial)
	assert.False(t, s.Write)
	assert.Equal(t, 256, s.BusCapacity)
	assert.Equal(t, 256, s.FunnelCapacity)
}

func TestLoadServerFromEnvironment(t *testing.T) {
	t.Setenv("SERIAL_CONSOLE_SERVER_BAUD", "9600")
	t.Setenv("SERIAL_CONSOLE_SERVER_PARITY", "even")
	t.Setenv("SERIAL_CONSOLE_SERVER_WRITE", "true")
	t.Setenv("SERIAL_CONSOLE_SERVER_BUS_CAPACITY", "16")

	s, err := LoadServer(New())
	require.NoError(t, err)
	assert.Equal(t, 9600, s.Serial.Baud)
	assert.Equal(t, "even", s.Serial.Parity)
	assert.True(t, s.Write)
	assert.Equal(t, 16, s.BusCapacity)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serial-console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: /dev/ttyACM0
  baud: 57600
  databits: 7
  stopbits: 2
  flow: hw
web:
  listen: 0.0.0.0:9000
  width: 120
  title: Router
`), 0o644))

	v := New()
	require.NoError(t, ReadFile(v, path))

	s, err := LoadServer(v)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", s.Serial.Port)
	assert.Equal(t, 57600, s.Serial.Baud)

	opts, err := s.Serial.Options()
	require.NoError(t, err)
	cfg, err := serial.NewConfig(opts...)
	require.NoError(t, err)
	assert.Equal(t, "57600 7N2 flow=hardware", cfg.String())

	w, err := LoadWeb(v)
	require.NoError(t, err)
	assert.Equal(t, Web{Listen: "0.0.0.0:9000", Connect: DefaultConnect, Width: 120, Title: "Router"}, w)
}

func TestReadFileMissing(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	assert.NoError(t, ReadFile(New(), ""))
	assert.Error(t, ReadFile(New(), filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestLoadServerRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"baud", "server.baud", 12345},
		{"databits", "server.databits", 9},
		{"stopbits", "server.stopbits", 3},
		{"parity", "server.parity", "mark"},
		{"flow", "server.flow", "rts"},
		{"port", "server.port", ""},
		{"listen", "server.listen", ""},
		{"capacity", "server.funnel-capacity", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.val)
			_, err := LoadServer(v)
			assert.ErrorIs(t, err, serial.ErrInvalidConfig)
		})
	}
}

func TestSerialOptionsReportsEveryProblem(t *testing.T) {
	_, err := Serial{Baud: 115200, DataBits: 8, StopBits: 1, Parity: "x", Flow: "y"}.Options()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid parity "x"`)
	assert.Contains(t, err.Error(), `invalid flow control "y"`)
}

func TestLoadWebRejectsBadWidth(t *testing.T) {
	v := New()
	v.Set("web.width", 0)
	_, err := LoadWeb(v)
	assert.ErrorIs(t, err, serial.ErrInvalidConfig)
}
