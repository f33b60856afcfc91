package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/kbd-matrix/internal/matrix"
)

var _ Matrix = (*FakeMatrix)(nil)

// FakeMatrix is a test double that simulates a matrix of switches without diodes.
//
// Reading a driven column returns every row electrically connected to it, so
// three keys on the corners of a rectangle make the fourth corner read active,
// as on real hardware.
type FakeMatrix struct {
	mu sync.Mutex

	cols   int
	keys   matrix.Snapshot
	driven int
	detect bool
	wake   func()

	// Drives records every DriveColumn argument.
	Drives []int

	// DetectModes records every SetDetectMode argument.
	DetectModes []bool

	// ReadError, if set, will be returned by ReadRows.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeMatrix creates a released matrix with cols columns. wake, if not nil,
// is called when a key goes down while detect mode is armed.
func NewFakeMatrix(cols int, wake func()) *FakeMatrix {
	return &FakeMatrix{
		cols:   cols,
		keys:   make(matrix.Snapshot, cols),
		driven: matrix.DriveNone,
		wake:   wake,
	}
}

// SetKey presses or releases the switch at (col, row).
func (f *FakeMatrix) SetKey(col, row int, pressed bool) {
	f.mu.Lock()
	bit := matrix.RowMask(1) << uint(row)
	was := f.keys[col]
	if pressed {
		f.keys[col] |= bit
	} else {
		f.keys[col] &^= bit
	}
	fire := pressed && was != f.keys[col] && f.detect && f.wake != nil
	f.mu.Unlock()

	if fire {
		f.wake()
	}
}

// SetColumn replaces the pressed rows of one column.
func (f *FakeMatrix) SetColumn(col int, rows matrix.RowMask) {
	f.mu.Lock()
	f.keys[col] = rows
	f.mu.Unlock()
}

// ReleaseAll releases every switch.
func (f *FakeMatrix) ReleaseAll() {
	f.mu.Lock()
	for c := range f.keys {
		f.keys[c] = 0
	}
	f.mu.Unlock()
}

// DriveColumn selects the column whose rows ReadRows reports.
func (f *FakeMatrix) DriveColumn(col int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if col >= f.cols || col < matrix.DriveNone {
		return errors.New("column out of range")
	}
	f.driven = col
	f.Drives = append(f.Drives, col)
	return nil
}

// ReadRows returns the rows reachable from the driven column(s).
func (f *FakeMatrix) ReadRows() (matrix.RowMask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return 0, f.ReadError
	}

	switch f.driven {
	case matrix.DriveNone:
		return 0, nil
	case matrix.DriveAll:
		var rows matrix.RowMask
		for _, k := range f.keys {
			rows |= k
		}
		return rows, nil
	}

	// Follow current through pressed switches: a row reached from the driven
	// column reaches every other column with a key on it, and so on.
	visited := make([]bool, f.cols)
	visited[f.driven] = true
	rows := f.keys[f.driven]
	for grown := true; grown; {
		grown = false
		for c, k := range f.keys {
			if !visited[c] && k&rows != 0 {
				visited[c] = true
				rows |= k
				grown = true
			}
		}
	}
	return rows, nil
}

// SetDetectMode arms or disarms the simulated edge interrupt.
func (f *FakeMatrix) SetDetectMode(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detect = enabled
	f.DetectModes = append(f.DetectModes, enabled)
	return nil
}

// DetectMode reports whether the simulated edge interrupt is armed.
func (f *FakeMatrix) DetectMode() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detect
}

// Close marks the matrix as closed.
func (f *FakeMatrix) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset releases all keys and clears recorded calls.
func (f *FakeMatrix) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.keys {
		f.keys[c] = 0
	}
	f.driven = matrix.DriveNone
	f.detect = false
	f.Drives = nil
	f.DetectModes = nil
	f.ReadError = nil
	f.Closed = false
}
