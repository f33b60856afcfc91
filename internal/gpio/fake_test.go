package gpio

import (
	"errors"
	"testing"

	"github.com/sweeney/kbd-matrix/internal/matrix"
)

func TestFakeMatrixReadDrivenColumn(t *testing.T) {
	f := NewFakeMatrix(3, nil)
	f.SetKey(0, 1, true)
	f.SetKey(2, 0, true)

	want := []matrix.RowMask{0b10, 0, 0b01}
	for col, w := range want {
		if err := f.DriveColumn(col); err != nil {
			t.Fatalf("drive %d: %v", col, err)
		}
		got, err := f.ReadRows()
		if err != nil {
			t.Fatalf("read %d: %v", col, err)
		}
		if got != w {
			t.Errorf("column %d: got %b, want %b", col, got, w)
		}
	}
}

func TestFakeMatrixDriveAllAndNone(t *testing.T) {
	f := NewFakeMatrix(2, nil)
	f.SetKey(0, 0, true)
	f.SetKey(1, 3, true)

	f.DriveColumn(matrix.DriveAll)
	got, _ := f.ReadRows()
	if got != 0b1001 {
		t.Errorf("drive all: got %b, want 1001", got)
	}

	f.DriveColumn(matrix.DriveNone)
	got, _ = f.ReadRows()
	if got != 0 {
		t.Errorf("drive none: got %b, want 0", got)
	}
}

func TestFakeMatrixGhostKey(t *testing.T) {
	// Keys at (0,0), (0,1) and (1,0) complete a path to (1,1).
	f := NewFakeMatrix(2, nil)
	f.SetKey(0, 0, true)
	f.SetKey(0, 1, true)
	f.SetKey(1, 0, true)

	f.DriveColumn(1)
	got, _ := f.ReadRows()
	if got != 0b11 {
		t.Errorf("column 1 should read the ghost row: got %b, want 11", got)
	}

	f.SetKey(0, 0, false)
	got, _ = f.ReadRows()
	if got != 0b01 {
		t.Errorf("ghost should vanish with the block broken: got %b, want 01", got)
	}
}

func TestFakeMatrixWakeOnlyWhenArmed(t *testing.T) {
	wakes := 0
	f := NewFakeMatrix(2, func() { wakes++ })

	f.SetKey(0, 0, true)
	if wakes != 0 {
		t.Errorf("wake fired while disarmed")
	}

	f.SetDetectMode(true)
	f.SetKey(1, 1, true)
	if wakes != 1 {
		t.Errorf("expected 1 wake, got %d", wakes)
	}

	// Releases and repeated presses do not wake.
	f.SetKey(1, 1, true)
	f.SetKey(1, 1, false)
	if wakes != 1 {
		t.Errorf("expected 1 wake, got %d", wakes)
	}
}

func TestFakeMatrixReadError(t *testing.T) {
	f := NewFakeMatrix(1, nil)
	f.ReadError = errors.New("simulated error")

	_, err := f.ReadRows()
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeMatrixColumnOutOfRange(t *testing.T) {
	f := NewFakeMatrix(2, nil)
	if err := f.DriveColumn(2); err == nil {
		t.Error("expected error for column 2 of 2")
	}
}

func TestFakeMatrixCloseAndReset(t *testing.T) {
	f := NewFakeMatrix(2, nil)
	f.SetKey(1, 1, true)
	f.DriveColumn(1)
	f.SetDetectMode(true)

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}

	f.Reset()
	if f.Closed || f.DetectMode() || len(f.Drives) != 0 || len(f.DetectModes) != 0 {
		t.Error("Reset should clear recorded state")
	}
	f.DriveColumn(matrix.DriveAll)
	if got, _ := f.ReadRows(); got != 0 {
		t.Errorf("keys should be released after Reset, got %b", got)
	}
}
