package matrix_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sweeney/kbd-matrix/internal/gpio"
	"github.com/sweeney/kbd-matrix/internal/matrix"
)

func TestScanDrivesEachColumnThenNone(t *testing.T) {
	fm := gpio.NewFakeMatrix(3, nil)
	fm.SetKey(1, 0, true)
	fm.SetKey(2, 1, true)

	s := matrix.NewScanner(fm, matrix.Config{Rows: 2, Cols: 3})
	snap, active := s.Scan()

	assert.True(t, active)
	assert.Equal(t, matrix.Snapshot{0, 0b01, 0b10}, snap)
	assert.Equal(t, []int{0, 1, 2, matrix.DriveNone}, fm.Drives)
}

func TestScanMasksUnconfiguredRows(t *testing.T) {
	fm := gpio.NewFakeMatrix(1, nil)
	fm.SetKey(0, 3, true)

	s := matrix.NewScanner(fm, matrix.Config{Rows: 2, Cols: 1})
	snap, active := s.Scan()

	assert.False(t, active)
	assert.Equal(t, matrix.Snapshot{0}, snap)
}

func TestScanReadErrorReadsAsReleased(t *testing.T) {
	fm := gpio.NewFakeMatrix(2, nil)
	fm.SetKey(0, 0, true)
	fm.ReadError = errors.New("bus fault")

	s := matrix.NewScanner(fm, matrix.Config{Rows: 4, Cols: 2})
	snap, active := s.Scan()

	assert.False(t, active)
	assert.Equal(t, matrix.Snapshot{0, 0}, snap)
	assert.Equal(t, matrix.DriveNone, fm.Drives[len(fm.Drives)-1], "columns must be released")
}

func TestHasGhosting(t *testing.T) {
	tests := []struct {
		name string
		snap matrix.Snapshot
		want bool
	}{
		{"empty", matrix.Snapshot{0, 0, 0}, false},
		{"single key", matrix.Snapshot{0b1, 0, 0}, false},
		{"two keys one column", matrix.Snapshot{0b11, 0, 0}, false},
		{"two keys one row", matrix.Snapshot{0b1, 0b1, 0}, false},
		{"block adjacent", matrix.Snapshot{0b11, 0b11, 0}, true},
		{"block non adjacent", matrix.Snapshot{0b1010, 0, 0b1010}, true},
		{"one shared row each pair", matrix.Snapshot{0b011, 0b110, 0b101}, false},
		{"single column", matrix.Snapshot{0xff}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matrix.HasGhosting(tt.snap))
		})
	}
}
