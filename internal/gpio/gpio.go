// Package gpio drives a keyboard matrix with hardware abstraction.
// The real implementation uses the Linux GPIO character device: columns are
// open-drain outputs, rows are pulled-up inputs, both active low.
// The fake implementation simulates a matrix of switches, including ghosting.
package gpio

import "github.com/sweeney/kbd-matrix/internal/matrix"

// Matrix is a matrix.Driver that owns hardware resources.
type Matrix interface {
	matrix.Driver

	// Close releases GPIO resources.
	Close() error
}

// Lines selects the chip and line offsets wired to the matrix.
// Rows[i] is row i, Cols[i] is column i.
type Lines struct {
	Chip string
	Rows []int
	Cols []int
}

// Default line assignment: a 4×4 keypad on a Raspberry Pi header (BCM numbering).
var (
	DefaultChip = "gpiochip0"
	DefaultRows = []int{5, 6, 13, 19}
	DefaultCols = []int{12, 16, 20, 21}
)

// DefaultLines returns the default line assignment.
func DefaultLines() Lines {
	return Lines{
		Chip: DefaultChip,
		Rows: append([]int(nil), DefaultRows...),
		Cols: append([]int(nil), DefaultCols...),
	}
}
