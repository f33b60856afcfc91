package config

import (
	"fmt"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors. It returns ValidationErrors
// listing every problem found, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, validateMatrix(&c.Matrix)...)
	errs = append(errs, validateGPIO(&c.GPIO, &c.Matrix)...)
	errs = append(errs, validateMQTT(&c.MQTT)...)
	errs = append(errs, validateLog(&c.Log)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateMatrix(m *MatrixConfig) ValidationErrors {
	var errs ValidationErrors

	if m.PollMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "matrix.poll_ms",
			Message: "poll period must be positive",
		})
	}
	for _, f := range []struct {
		field string
		v     int
	}{
		{"matrix.settle_us", m.SettleUs},
		{"matrix.idle_timeout_ms", m.IdleTimeoutMs},
		{"matrix.debounce_down_ms", m.DebounceDownMs},
		{"matrix.debounce_up_ms", m.DebounceUpMs},
		{"matrix.timestamp_slots", m.TimestampSlots},
	} {
		if f.v < 0 {
			errs = append(errs, ValidationError{Field: f.field, Message: "cannot be negative"})
		}
	}
	if len(errs) > 0 {
		return errs
	}

	// A release must be able to confirm before the poller goes idle,
	// otherwise the key reads as held until the next wake.
	if longest := max(m.DebounceDownMs, m.DebounceUpMs) + m.PollMs; m.IdleTimeoutMs < longest {
		errs = append(errs, ValidationError{
			Field:   "matrix.idle_timeout_ms",
			Message: fmt.Sprintf("%dms is shorter than the longest debounce plus one poll period (%dms)", m.IdleTimeoutMs, longest),
		})
	}

	// Geometry and ring sizing rules live with the scanner.
	if err := m.Matrix().WithDefaults().Validate(); err != nil {
		errs = append(errs, ValidationError{Field: "matrix", Message: err.Error()})
	}
	return errs
}

func validateGPIO(g *GPIOConfig, m *MatrixConfig) ValidationErrors {
	var errs ValidationErrors

	if g.Chip == "" {
		errs = append(errs, ValidationError{
			Field:   "gpio.chip",
			Message: "chip cannot be empty",
		})
	}
	if len(g.Rows) != m.Rows {
		errs = append(errs, ValidationError{
			Field:   "gpio.rows",
			Message: fmt.Sprintf("%d lines for %d matrix rows", len(g.Rows), m.Rows),
		})
	}
	if len(g.Cols) != m.Cols {
		errs = append(errs, ValidationError{
			Field:   "gpio.cols",
			Message: fmt.Sprintf("%d lines for %d matrix columns", len(g.Cols), m.Cols),
		})
	}

	seen := make(map[int]string)
	check := func(field string, offsets []int) {
		for i, o := range offsets {
			name := fmt.Sprintf("%s[%d]", field, i)
			if o < 0 {
				errs = append(errs, ValidationError{Field: name, Message: "line offset cannot be negative"})
				continue
			}
			if prev, ok := seen[o]; ok {
				errs = append(errs, ValidationError{Field: name, Message: fmt.Sprintf("line %d already used by %s", o, prev)})
				continue
			}
			seen[o] = name
		}
	}
	check("gpio.rows", g.Rows)
	check("gpio.cols", g.Cols)

	return errs
}

func validateMQTT(c *MQTTConfig) ValidationErrors {
	var errs ValidationErrors

	if c.Broker == "" {
		errs = append(errs, ValidationError{
			Field:   "mqtt.broker",
			Message: "broker cannot be empty",
		})
	} else if u, err := url.Parse(c.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "mqtt.broker",
			Message: fmt.Sprintf("invalid broker URL: %s", c.Broker),
		})
	}
	if c.Topic == "" {
		errs = append(errs, ValidationError{Field: "mqtt.topic", Message: "topic cannot be empty"})
	}
	if c.SystemTopic == "" {
		errs = append(errs, ValidationError{Field: "mqtt.system_topic", Message: "system topic cannot be empty"})
	}
	if c.BufferSize < 1 {
		errs = append(errs, ValidationError{Field: "mqtt.buffer_size", Message: "buffer size must be at least 1"})
	}
	if c.HeartbeatSec < 0 {
		errs = append(errs, ValidationError{Field: "mqtt.heartbeat_sec", Message: "heartbeat cannot be negative"})
	}

	return errs
}

func validateLog(l *LogConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := log.ParseLevel(l.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level: %s", l.Level),
		})
	}
	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format: %s (valid: text, json)", l.Format),
		})
	}

	return errs
}
