package matrix

import (
	"fmt"
	"time"
)

// Config describes the matrix geometry and timing. It is fixed for the lifetime
// of a Poller.
type Config struct {
	Rows int
	Cols int

	// SettleTime is the busy-wait after driving a column before its rows are read.
	SettleTime time.Duration
	// PollPeriod is the nominal cadence of active scan cycles.
	PollPeriod time.Duration
	// IdleTimeout is how long the poller keeps scanning with no key activity.
	IdleTimeout time.Duration

	// DebounceDown is the settle time for a press, DebounceUp for a release.
	DebounceDown time.Duration
	DebounceUp   time.Duration

	GhostingCheck bool

	// TimestampSlots sizes the debounce timestamp ring. Zero means RequiredSlots().
	TimestampSlots int
}

// DefaultConfig returns timings typical for a membrane keyboard.
func DefaultConfig() Config {
	return Config{
		Rows:          8,
		Cols:          16,
		SettleTime:    50 * time.Microsecond,
		PollPeriod:    5 * time.Millisecond,
		IdleTimeout:   100 * time.Millisecond,
		DebounceDown:  10 * time.Millisecond,
		DebounceUp:    20 * time.Millisecond,
		GhostingCheck: true,
	}
}

func (c Config) maxDebounce() time.Duration {
	if c.DebounceDown > c.DebounceUp {
		return c.DebounceDown
	}
	return c.DebounceUp
}

// debounceCycles is the number of poll periods the longest debounce spans,
// rounded up. A key's stamp must survive that many ring advances.
func (c Config) debounceCycles() int {
	d := c.maxDebounce()
	n := int(d / c.PollPeriod)
	if d%c.PollPeriod != 0 {
		n++
	}
	return n
}

// RequiredSlots is the smallest ring that keeps a stamp alive for the longest
// debounce window, plus the slot being written and one of slack.
func (c Config) RequiredSlots() int {
	if c.PollPeriod <= 0 {
		return 2
	}
	return c.debounceCycles() + 2
}

// WithDefaults fills derived fields.
func (c Config) WithDefaults() Config {
	if c.TimestampSlots == 0 {
		c.TimestampSlots = c.RequiredSlots()
	}
	return c
}

// RowMask returns the mask covering all configured rows.
func (c Config) RowMask() RowMask {
	if c.Rows >= MaxRows {
		return ^RowMask(0)
	}
	return RowMask(1)<<uint(c.Rows) - 1
}

// Validate checks the geometry and the timestamp ring capacity. A ring that is
// too small lets a key's stamp be overwritten before its debounce completes.
func (c Config) Validate() error {
	if c.Rows < 1 || c.Rows > MaxRows {
		return fmt.Errorf("rows must be in 1..%d, got %d", MaxRows, c.Rows)
	}
	if c.Cols < 1 {
		return fmt.Errorf("cols must be positive, got %d", c.Cols)
	}
	if c.PollPeriod <= 0 {
		return fmt.Errorf("poll period must be positive, got %v", c.PollPeriod)
	}
	if c.SettleTime < 0 || c.IdleTimeout < 0 || c.DebounceDown < 0 || c.DebounceUp < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.TimestampSlots < 2 {
		return fmt.Errorf("timestamp slots must be at least 2, got %d", c.TimestampSlots)
	}
	if limit := c.debounceCycles(); c.TimestampSlots <= limit {
		return fmt.Errorf("timestamp slots %d too small for debounce %v at poll period %v (need > %d)",
			c.TimestampSlots, c.maxDebounce(), c.PollPeriod, limit)
	}
	return nil
}
