// Package status provides a thread-safe status tracker for the kbd-matrix daemon.
// It is fed by the poller hooks and the event loop, and read by HTTP handlers
// and system event payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/kbd-matrix/internal/matrix"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Rows           int
	Cols           int
	PollMs         int64
	IdleTimeoutMs  int64
	DebounceDownMs int64
	DebounceUpMs   int64
	SettleUs       int64
	GhostingCheck  bool
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
}

// ConfigFrom derives the display config from the matrix configuration.
func ConfigFrom(m matrix.Config, heartbeat time.Duration, broker, httpAddr string) Config {
	return Config{
		Rows:           m.Rows,
		Cols:           m.Cols,
		PollMs:         m.PollPeriod.Milliseconds(),
		IdleTimeoutMs:  m.IdleTimeout.Milliseconds(),
		DebounceDownMs: m.DebounceDown.Milliseconds(),
		DebounceUpMs:   m.DebounceUp.Milliseconds(),
		SettleUs:       m.SettleTime.Microseconds(),
		GhostingCheck:  m.GhostingCheck,
		HeartbeatMs:    heartbeat.Milliseconds(),
		Broker:         broker,
		HTTPAddr:       httpAddr,
	}
}

// Counts tracks activity since startup.
type Counts struct {
	Presses     int
	Releases    int
	ScanCycles  int
	GhostCycles int
	Wakeups     int
}

// Key identifies one switch of the matrix.
type Key struct {
	Col int
	Row int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Mode          matrix.Mode
	Stable        matrix.Snapshot
	LastEvent     *matrix.Event
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// IsPressed reports whether (col, row) is confirmed pressed.
func (s Snapshot) IsPressed(col, row int) bool {
	if col < 0 || col >= len(s.Stable) || row < 0 || row >= matrix.MaxRows {
		return false
	}
	return s.Stable[col]&(1<<uint(row)) != 0
}

// Pressed lists confirmed pressed keys in column, then row order.
func (s Snapshot) Pressed() []Key {
	var keys []Key
	for c, rows := range s.Stable {
		for r := 0; r < s.Config.Rows; r++ {
			if rows&(1<<uint(r)) != 0 {
				keys = append(keys, Key{Col: c, Row: r})
			}
		}
	}
	return keys
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Mode:      matrix.ModeIdle,
			Stable:    make(matrix.Snapshot, cfg.Cols),
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetMode records a poller mode change. Entering active mode counts as a wakeup.
func (t *Tracker) SetMode(m matrix.Mode) {
	t.mu.Lock()
	if m == matrix.ModeActive && t.snap.Mode != matrix.ModeActive {
		t.snap.Counts.Wakeups++
	}
	t.snap.Mode = m
	t.mu.Unlock()
}

// RecordCycle counts a completed scan cycle.
func (t *Tracker) RecordCycle(c matrix.Cycle) {
	t.mu.Lock()
	t.snap.Counts.ScanCycles++
	if c.Ghosting {
		t.snap.Counts.GhostCycles++
	}
	t.mu.Unlock()
}

// RecordEvent applies a confirmed transition to the pressed-key view.
func (t *Tracker) RecordEvent(e matrix.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.Col < 0 || e.Col >= len(t.snap.Stable) || e.Row < 0 || e.Row >= matrix.MaxRows {
		return
	}
	bit := matrix.RowMask(1) << uint(e.Row)
	if e.Pressed {
		t.snap.Stable[e.Col] |= bit
		t.snap.Counts.Presses++
	} else {
		t.snap.Stable[e.Col] &^= bit
		t.snap.Counts.Releases++
	}
	ev := e
	t.snap.LastEvent = &ev
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Stable = append(matrix.Snapshot(nil), t.snap.Stable...)
	if t.snap.LastEvent != nil {
		ev := *t.snap.LastEvent
		s.LastEvent = &ev
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
