// Package config handles configuration loading and validation for kbd-matrix.
package config

import (
	"time"

	"github.com/sweeney/kbd-matrix/internal/gpio"
	"github.com/sweeney/kbd-matrix/internal/matrix"
	"github.com/sweeney/kbd-matrix/internal/mqtt"
)

// Config is the daemon configuration.
type Config struct {
	// Matrix holds scan and debounce timing.
	Matrix MatrixConfig `toml:"matrix" json:"matrix" yaml:"matrix"`

	// GPIO selects the chip and lines wired to the matrix.
	GPIO GPIOConfig `toml:"gpio" json:"gpio" yaml:"gpio"`

	// MQTT configures event delivery.
	MQTT MQTTConfig `toml:"mqtt" json:"mqtt" yaml:"mqtt"`

	// HTTP configures the status page.
	HTTP HTTPConfig `toml:"http" json:"http" yaml:"http"`

	// Log configures logging.
	Log LogConfig `toml:"log" json:"log" yaml:"log"`
}

// MatrixConfig holds matrix geometry and timing. Durations are integral
// milliseconds except the settle time, which is microseconds.
type MatrixConfig struct {
	Rows           int  `toml:"rows" json:"rows" yaml:"rows"`
	Cols           int  `toml:"cols" json:"cols" yaml:"cols"`
	SettleUs       int  `toml:"settle_us" json:"settle_us" yaml:"settle_us"`
	PollMs         int  `toml:"poll_ms" json:"poll_ms" yaml:"poll_ms"`
	IdleTimeoutMs  int  `toml:"idle_timeout_ms" json:"idle_timeout_ms" yaml:"idle_timeout_ms"`
	DebounceDownMs int  `toml:"debounce_down_ms" json:"debounce_down_ms" yaml:"debounce_down_ms"`
	DebounceUpMs   int  `toml:"debounce_up_ms" json:"debounce_up_ms" yaml:"debounce_up_ms"`
	GhostingCheck  bool `toml:"ghosting_check" json:"ghosting_check" yaml:"ghosting_check"`

	// TimestampSlots sizes the debounce timestamp ring. 0 derives it.
	TimestampSlots int `toml:"timestamp_slots" json:"timestamp_slots" yaml:"timestamp_slots"`
}

// GPIOConfig selects the lines wired to the matrix.
type GPIOConfig struct {
	Chip string `toml:"chip" json:"chip" yaml:"chip"`
	Rows []int  `toml:"rows" json:"rows" yaml:"rows"`
	Cols []int  `toml:"cols" json:"cols" yaml:"cols"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker       string `toml:"broker" json:"broker" yaml:"broker"`
	ClientID     string `toml:"client_id" json:"client_id" yaml:"client_id"`
	Topic        string `toml:"topic" json:"topic" yaml:"topic"`
	SystemTopic  string `toml:"system_topic" json:"system_topic" yaml:"system_topic"`
	BufferSize   int    `toml:"buffer_size" json:"buffer_size" yaml:"buffer_size"`
	HeartbeatSec int    `toml:"heartbeat_sec" json:"heartbeat_sec" yaml:"heartbeat_sec"`
}

// HTTPConfig configures the status page. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `toml:"addr" json:"addr" yaml:"addr"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
}

// Default returns the default configuration: a 4×4 keypad on the default
// GPIO lines with the standard scan timing.
func Default() *Config {
	m := matrix.DefaultConfig()
	lines := gpio.DefaultLines()
	opts := mqtt.DefaultOptions()

	return &Config{
		Matrix: MatrixConfig{
			Rows:           len(lines.Rows),
			Cols:           len(lines.Cols),
			SettleUs:       int(m.SettleTime / time.Microsecond),
			PollMs:         int(m.PollPeriod / time.Millisecond),
			IdleTimeoutMs:  int(m.IdleTimeout / time.Millisecond),
			DebounceDownMs: int(m.DebounceDown / time.Millisecond),
			DebounceUpMs:   int(m.DebounceUp / time.Millisecond),
			GhostingCheck:  m.GhostingCheck,
		},
		GPIO: GPIOConfig{
			Chip: lines.Chip,
			Rows: lines.Rows,
			Cols: lines.Cols,
		},
		MQTT: MQTTConfig{
			Broker:       opts.Broker,
			ClientID:     opts.ClientID,
			Topic:        opts.Topic,
			SystemTopic:  opts.SystemTopic,
			BufferSize:   opts.BufferSize,
			HeartbeatSec: 15 * 60,
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Matrix converts the section into the scanner configuration.
func (m MatrixConfig) Matrix() matrix.Config {
	return matrix.Config{
		Rows:           m.Rows,
		Cols:           m.Cols,
		SettleTime:     time.Duration(m.SettleUs) * time.Microsecond,
		PollPeriod:     time.Duration(m.PollMs) * time.Millisecond,
		IdleTimeout:    time.Duration(m.IdleTimeoutMs) * time.Millisecond,
		DebounceDown:   time.Duration(m.DebounceDownMs) * time.Millisecond,
		DebounceUp:     time.Duration(m.DebounceUpMs) * time.Millisecond,
		GhostingCheck:  m.GhostingCheck,
		TimestampSlots: m.TimestampSlots,
	}
}

// Lines converts the section into a GPIO line assignment.
func (g GPIOConfig) Lines() gpio.Lines {
	return gpio.Lines{
		Chip: g.Chip,
		Rows: append([]int(nil), g.Rows...),
		Cols: append([]int(nil), g.Cols...),
	}
}

// Options converts the section into publisher options.
func (c MQTTConfig) Options() mqtt.Options {
	return mqtt.Options{
		Broker:      c.Broker,
		ClientID:    c.ClientID,
		Topic:       c.Topic,
		SystemTopic: c.SystemTopic,
		BufferSize:  c.BufferSize,
	}
}

// Heartbeat returns the heartbeat interval; 0 disables heartbeats.
func (c MQTTConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSec) * time.Second
}
