//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/kbd-matrix/internal/matrix"
)

var _ Matrix = (*RealMatrix)(nil)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealMatrix is not available on non-Linux platforms.
type RealMatrix struct{}

// NewRealMatrix returns an error on non-Linux platforms.
func NewRealMatrix(lines Lines, wake func()) (*RealMatrix, error) {
	return nil, errUnsupported
}

// DriveColumn is not implemented on non-Linux platforms.
func (m *RealMatrix) DriveColumn(col int) error { return errUnsupported }

// ReadRows is not implemented on non-Linux platforms.
func (m *RealMatrix) ReadRows() (matrix.RowMask, error) { return 0, errUnsupported }

// SetDetectMode is not implemented on non-Linux platforms.
func (m *RealMatrix) SetDetectMode(enabled bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (m *RealMatrix) Close() error {
	return nil
}
