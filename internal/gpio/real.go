//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"

	"github.com/sweeney/kbd-matrix/internal/matrix"
)

var _ Matrix = (*RealMatrix)(nil)

// consumer labels the requested lines in gpioinfo output.
const consumer = "kbd-matrix"

// RealMatrix drives a matrix through the Linux GPIO character device.
type RealMatrix struct {
	chip *gpiocdev.Chip
	rows *gpiocdev.Lines
	cols *gpiocdev.Lines

	rowVals []int
	colVals []int

	// armedAt is the CLOCK_MONOTONIC time detect mode was armed, 0 while
	// disarmed. Row edges carry kernel timestamps on the same clock.
	armedAt atomic.Int64
	wake    func()
}

// NewRealMatrix requests the row and column lines. wake is called from the
// edge event goroutine whenever a row changes while detect mode is armed.
func NewRealMatrix(lines Lines, wake func()) (*RealMatrix, error) {
	if len(lines.Rows) == 0 || len(lines.Cols) == 0 {
		return nil, fmt.Errorf("gpio: need at least one row and one column line")
	}

	chip, err := gpiocdev.NewChip(lines.Chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", lines.Chip, err)
	}

	m := &RealMatrix{
		chip:    chip,
		rowVals: make([]int, len(lines.Rows)),
		colVals: make([]int, len(lines.Cols)),
		wake:    wake,
	}

	// A pressed key connects a driven (low) column to its row, pulling the
	// row low against its pull-up. Active low makes "pressed" read as 1.
	m.rows, err = chip.RequestLines(lines.Rows,
		gpiocdev.AsInput,
		gpiocdev.AsActiveLow,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(m.handleEdge))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request row lines %v: %w", lines.Rows, err)
	}

	// Open drain so two pressed keys on one row never short two columns.
	m.cols, err = chip.RequestLines(lines.Cols,
		gpiocdev.AsOutput(m.colVals...),
		gpiocdev.AsActiveLow,
		gpiocdev.AsOpenDrain)
	if err != nil {
		m.rows.Close()
		chip.Close()
		return nil, fmt.Errorf("request column lines %v: %w", lines.Cols, err)
	}

	return m, nil
}

func (m *RealMatrix) handleEdge(evt gpiocdev.LineEvent) {
	if edgeWhileArmed(m.armedAt.Load(), evt.Timestamp) && m.wake != nil {
		m.wake()
	}
}

// edgeWhileArmed reports whether an edge stamped ts happened after arming.
// Edges from column drive during a scan may still be queued when detect mode
// is re-armed; they predate armedAt and are dropped.
func edgeWhileArmed(armedAt int64, ts time.Duration) bool {
	return armedAt != 0 && int64(ts) >= armedAt
}

func monotonicNow() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// Accept every edge rather than miss a wake.
		return 1
	}
	return ts.Nano()
}

// DriveColumn activates one column, all of them, or none.
func (m *RealMatrix) DriveColumn(col int) error {
	v := 0
	if col == matrix.DriveAll {
		v = 1
	}
	for i := range m.colVals {
		m.colVals[i] = v
	}
	if col >= 0 {
		if col >= len(m.colVals) {
			return fmt.Errorf("column %d out of range", col)
		}
		m.colVals[col] = 1
	}
	if err := m.cols.SetValues(m.colVals); err != nil {
		return fmt.Errorf("set column lines: %w", err)
	}
	return nil
}

// ReadRows returns the logical row levels as a mask.
func (m *RealMatrix) ReadRows() (matrix.RowMask, error) {
	if err := m.rows.Values(m.rowVals); err != nil {
		return 0, fmt.Errorf("read row lines: %w", err)
	}
	var mask matrix.RowMask
	for i, v := range m.rowVals {
		if v != 0 {
			mask |= 1 << uint(i)
		}
	}
	return mask, nil
}

// SetDetectMode arms or disarms the wake on row edges. Edges are always
// delivered by the kernel; those stamped before arming are ignored.
func (m *RealMatrix) SetDetectMode(enabled bool) error {
	if enabled {
		m.armedAt.Store(monotonicNow())
	} else {
		m.armedAt.Store(0)
	}
	return nil
}

// Close releases the lines.
// Columns are reconfigured as inputs before closing so the matrix is left
// undriven for whatever claims the pins next.
func (m *RealMatrix) Close() error {
	var errs []error

	m.armedAt.Store(0)

	if m.cols != nil {
		if err := m.cols.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure column lines: %w", err))
		}
		if err := m.cols.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close column lines: %w", err))
		}
	}
	if m.rows != nil {
		if err := m.rows.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close row lines: %w", err))
		}
	}
	if m.chip != nil {
		if err := m.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
