package matrix

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Scanner samples the matrix one column at a time.
type Scanner struct {
	drv    Driver
	cols   int
	mask   RowMask
	settle time.Duration

	// delay waits out the settle time. It spins rather than sleeps: settle
	// times are a few microseconds, far below scheduler granularity.
	delay func(time.Duration)
}

// NewScanner creates a scanner for the given geometry.
func NewScanner(drv Driver, cfg Config) *Scanner {
	return &Scanner{
		drv:    drv,
		cols:   cfg.Cols,
		mask:   cfg.RowMask(),
		settle: cfg.SettleTime,
		delay:  busyWait,
	}
}

// Scan drives each column in turn and returns the sensed rows per column,
// plus whether any row was active on any column. All columns are released
// before returning.
func (s *Scanner) Scan() (Snapshot, bool) {
	snap := make(Snapshot, s.cols)
	var active RowMask

	for col := 0; col < s.cols; col++ {
		if err := s.drv.DriveColumn(col); err != nil {
			log.Debugf("matrix: drive column %d: %v", col, err)
		}

		s.delay(s.settle)

		rows, err := s.drv.ReadRows()
		if err != nil {
			// Indistinguishable from an idle column.
			log.Debugf("matrix: read rows on column %d: %v", col, err)
			rows = 0
		}
		rows &= s.mask
		snap[col] = rows
		active |= rows
	}

	if err := s.drv.DriveColumn(DriveNone); err != nil {
		log.Debugf("matrix: release columns: %v", err)
	}

	return snap, active != 0
}

func busyWait(d time.Duration) {
	if d <= 0 {
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}
