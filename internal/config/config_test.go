package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.Matrix.Rows)
	assert.Equal(t, 4, cfg.Matrix.Cols)
	assert.Equal(t, 5, cfg.Matrix.PollMs)
	assert.Equal(t, 100, cfg.Matrix.IdleTimeoutMs)
	assert.Equal(t, 10, cfg.Matrix.DebounceDownMs)
	assert.Equal(t, 20, cfg.Matrix.DebounceUpMs)
	assert.Equal(t, 50, cfg.Matrix.SettleUs)
	assert.True(t, cfg.Matrix.GhostingCheck)
	assert.Equal(t, "gpiochip0", cfg.GPIO.Chip)
	assert.Equal(t, 15*time.Minute, cfg.MQTT.Heartbeat())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Matrix, cfg.Matrix)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "kbd.toml", `
[matrix]
rows = 2
cols = 3
debounce_down_ms = 5
ghosting_check = false

[gpio]
chip = "gpiochip4"
rows = [1, 2]
cols = [3, 4, 5]

[mqtt]
broker = "tcp://10.0.0.5:1883"
heartbeat_sec = 60

[log]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Matrix.Rows)
	assert.Equal(t, 3, cfg.Matrix.Cols)
	assert.Equal(t, 5, cfg.Matrix.DebounceDownMs)
	assert.Equal(t, 20, cfg.Matrix.DebounceUpMs, "unset keys keep defaults")
	assert.False(t, cfg.Matrix.GhostingCheck)
	assert.Equal(t, "gpiochip4", cfg.GPIO.Chip)
	assert.Equal(t, []int{1, 2}, cfg.GPIO.Rows)
	assert.Equal(t, []int{3, 4, 5}, cfg.GPIO.Cols)
	assert.Equal(t, "tcp://10.0.0.5:1883", cfg.MQTT.Broker)
	assert.Equal(t, time.Minute, cfg.MQTT.Heartbeat())
	assert.Equal(t, "input/keyboard/matrix/events", cfg.MQTT.Topic)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "kbd.yaml", `
matrix:
  rows: 1
  cols: 2
  poll_ms: 2
  idle_timeout_ms: 50
gpio:
  rows: [7]
  cols: [8, 9]
http:
  addr: ":8080"
log:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Matrix.Rows)
	assert.Equal(t, 2, cfg.Matrix.Cols)
	assert.Equal(t, 2, cfg.Matrix.PollMs)
	assert.Equal(t, 50, cfg.Matrix.IdleTimeoutMs)
	assert.Equal(t, []int{7}, cfg.GPIO.Rows)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "gpiochip0", cfg.GPIO.Chip)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "kbd.json", `{}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoadMalformedTOML(t *testing.T) {
	path := writeFile(t, "kbd.toml", "[matrix\nrows = ")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode TOML")
}

func TestLoadReportsValidationErrors(t *testing.T) {
	path := writeFile(t, "kbd.toml", `
[matrix]
rows = 3
poll_ms = 0

[log]
level = "loud"
`)

	_, err := Load(path)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, len(verrs))
	for i, e := range verrs {
		fields[i] = e.Field
	}
	assert.Contains(t, fields, "matrix.poll_ms")
	assert.Contains(t, fields, "gpio.rows")
	assert.Contains(t, fields, "log.level")
}

func TestReadSkipsValidation(t *testing.T) {
	path := writeFile(t, "kbd.toml", `
[mqtt]
broker = ""
`)

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.MQTT.Broker)

	_, err = Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvBroker, "tcp://broker.lan:1883")
	t.Setenv(EnvHTTPAddr, "")
	t.Setenv(EnvGPIOChip, "gpiochip1")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker.lan:1883", cfg.MQTT.Broker)
	assert.Equal(t, "", cfg.HTTP.Addr, "set but empty disables HTTP")
	assert.Equal(t, "gpiochip1", cfg.GPIO.Chip)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := writeFile(t, "kbd.toml", `
[mqtt]
broker = "tcp://file:1883"
`)
	t.Setenv(EnvBroker, "tcp://env:1883")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://env:1883", cfg.MQTT.Broker)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative settle", func(c *Config) { c.Matrix.SettleUs = -1 }, "matrix.settle_us"},
		{"negative debounce", func(c *Config) { c.Matrix.DebounceUpMs = -5 }, "matrix.debounce_up_ms"},
		{"zero poll", func(c *Config) { c.Matrix.PollMs = 0 }, "matrix.poll_ms"},
		{"ring too small", func(c *Config) { c.Matrix.TimestampSlots = 4 }, "matrix"},
		{"idle shorter than release debounce", func(c *Config) { c.Matrix.IdleTimeoutMs = 24 }, "matrix.idle_timeout_ms"},
		{"too many rows", func(c *Config) {
			c.Matrix.Rows = 33
			c.GPIO.Rows = make([]int, 33)
			for i := range c.GPIO.Rows {
				c.GPIO.Rows[i] = 100 + i
			}
		}, "matrix"},
		{"empty chip", func(c *Config) { c.GPIO.Chip = "" }, "gpio.chip"},
		{"column count mismatch", func(c *Config) { c.GPIO.Cols = c.GPIO.Cols[:3] }, "gpio.cols"},
		{"duplicate line", func(c *Config) { c.GPIO.Cols[0] = c.GPIO.Rows[0] }, "gpio.cols[0]"},
		{"negative line", func(c *Config) { c.GPIO.Rows[1] = -1 }, "gpio.rows[1]"},
		{"empty broker", func(c *Config) { c.MQTT.Broker = "" }, "mqtt.broker"},
		{"broker without scheme", func(c *Config) { c.MQTT.Broker = "localhost:1883" }, "mqtt.broker"},
		{"empty topic", func(c *Config) { c.MQTT.Topic = "" }, "mqtt.topic"},
		{"zero buffer", func(c *Config) { c.MQTT.BufferSize = 0 }, "mqtt.buffer_size"},
		{"negative heartbeat", func(c *Config) { c.MQTT.HeartbeatSec = -1 }, "mqtt.heartbeat_sec"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.NotEmpty(t, verrs)
			assert.Equal(t, tt.field, verrs[0].Field, "errors: %v", err)
		})
	}
}

func TestValidateIdleTimeoutCoversDebounce(t *testing.T) {
	cfg := Default()
	cfg.Matrix.IdleTimeoutMs = cfg.Matrix.DebounceUpMs + cfg.Matrix.PollMs
	assert.NoError(t, cfg.Validate())

	cfg.Matrix.DebounceDownMs = 40
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matrix.idle_timeout_ms")
}

func TestValidateExplicitRingLargeEnough(t *testing.T) {
	cfg := Default()
	cfg.Matrix.TimestampSlots = 5
	assert.NoError(t, cfg.Validate())
}

func TestMatrixConversion(t *testing.T) {
	m := MatrixConfig{
		Rows: 2, Cols: 3,
		SettleUs: 20, PollMs: 4, IdleTimeoutMs: 80,
		DebounceDownMs: 8, DebounceUpMs: 12,
		GhostingCheck: true, TimestampSlots: 7,
	}
	mc := m.Matrix()

	assert.Equal(t, 20*time.Microsecond, mc.SettleTime)
	assert.Equal(t, 4*time.Millisecond, mc.PollPeriod)
	assert.Equal(t, 80*time.Millisecond, mc.IdleTimeout)
	assert.Equal(t, 8*time.Millisecond, mc.DebounceDown)
	assert.Equal(t, 12*time.Millisecond, mc.DebounceUp)
	assert.Equal(t, 7, mc.TimestampSlots)
	assert.True(t, mc.GhostingCheck)
	assert.NoError(t, mc.Validate())
}

func TestLinesAndOptions(t *testing.T) {
	cfg := Default()

	lines := cfg.GPIO.Lines()
	assert.Equal(t, cfg.GPIO.Chip, lines.Chip)
	assert.Equal(t, cfg.GPIO.Rows, lines.Rows)
	lines.Rows[0] = 99
	assert.NotEqual(t, 99, cfg.GPIO.Rows[0], "Lines returns a copy")

	opts := cfg.MQTT.Options()
	assert.Equal(t, cfg.MQTT.Broker, opts.Broker)
	assert.Equal(t, cfg.MQTT.SystemTopic, opts.SystemTopic)
	assert.Equal(t, cfg.MQTT.BufferSize, opts.BufferSize)
}
