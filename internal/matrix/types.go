// Package matrix contains the scan, ghosting, debounce and polling logic for a
// row × column wired keyboard matrix.
// This package has NO hardware dependencies: column drive and row sensing go
// through Driver, time goes through Clock, and confirmed events leave through Sink.
package matrix

import (
	"context"
	"time"
)

// RowMask is the set of active rows sensed on one column. Bit r is row r.
type RowMask uint32

// MaxRows is the number of rows a RowMask can address.
const MaxRows = 32

// Snapshot holds one RowMask per column.
type Snapshot []RowMask

// Column selectors accepted by Driver.DriveColumn besides a column index.
const (
	DriveAll  = -1
	DriveNone = -2
)

// Driver is the hardware side of the matrix.
type Driver interface {
	// DriveColumn activates a single column, all columns (DriveAll), or none (DriveNone).
	DriveColumn(col int) error

	// ReadRows samples the row lines. Bit r set means row r is active.
	ReadRows() (RowMask, error)

	// SetDetectMode arms (true) or disarms (false) the edge interrupt that
	// raises the wake signal while idle.
	SetDetectMode(enabled bool) error
}

// Event is a confirmed (debounced) key transition.
type Event struct {
	Col     int
	Row     int
	Pressed bool
	Time    time.Time
}

// Sink receives confirmed transitions in the order they are confirmed.
type Sink interface {
	Report(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Report calls f(e).
func (f SinkFunc) Report(e Event) { f(e) }

// Clock supplies time to the polling loop.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep waits on a timer so other goroutines run in the meantime.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Mode is the polling scheduler state.
type Mode string

const (
	ModeIdle   Mode = "IDLE"
	ModeActive Mode = "ACTIVE"
)

// Cycle describes one completed active scan cycle.
type Cycle struct {
	Start     time.Time
	KeyActive bool
	Ghosting  bool
	Events    int
}
