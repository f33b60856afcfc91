package matrix

import "time"

// Debouncer promotes raw key levels to confirmed state once they have been
// stable for a direction dependent settle time.
//
// Instead of a timestamp per key, each key remembers the ring slot written by
// the scan in which its raw level last changed. The ring must hold enough
// slots to outlive the longest debounce window (see Config.Validate).
type Debouncer struct {
	rows, cols   int
	debounceDown time.Duration
	debounceUp   time.Duration

	previous Snapshot // last snapshot folded in
	unstable Snapshot // keys still settling
	stable   Snapshot // confirmed state

	changeSlot []int // per key (col*rows+row), valid only while its unstable bit is set

	ring   []time.Time
	cursor int
}

// NewDebouncer allocates tracking state for cfg. cfg must have been validated.
func NewDebouncer(cfg Config) *Debouncer {
	cfg = cfg.WithDefaults()
	return &Debouncer{
		rows:         cfg.Rows,
		cols:         cfg.Cols,
		debounceDown: cfg.DebounceDown,
		debounceUp:   cfg.DebounceUp,
		previous:     make(Snapshot, cfg.Cols),
		unstable:     make(Snapshot, cfg.Cols),
		stable:       make(Snapshot, cfg.Cols),
		changeSlot:   make([]int, cfg.Rows*cfg.Cols),
		ring:         make([]time.Time, cfg.TimestampSlots),
	}
}

// Update folds a new snapshot into per-key tracking and returns the
// transitions confirmed by it, ordered by column then row.
func (d *Debouncer) Update(snap Snapshot, now time.Time) []Event {
	d.cursor = (d.cursor + 1) % len(d.ring)
	d.ring[d.cursor] = now

	// Stamp every key whose raw level differs from the previous scan.
	for c := 0; c < d.cols; c++ {
		changed := snap[c] ^ d.previous[c]
		if changed == 0 {
			continue
		}
		for r := 0; r < d.rows; r++ {
			if changed&(1<<uint(r)) != 0 {
				d.changeSlot[c*d.rows+r] = d.cursor
			}
		}
		d.unstable[c] |= changed
		d.previous[c] = snap[c]
	}

	var events []Event

	for c := 0; c < d.cols; c++ {
		if d.unstable[c] == 0 {
			continue
		}
		for r := 0; r < d.rows; r++ {
			mask := RowMask(1) << uint(r)
			if d.unstable[c]&mask == 0 {
				continue
			}

			// Judge by the current raw level, not the level that caused the stamp.
			level := snap[c] & mask

			elapsed := now.Sub(d.ring[d.changeSlot[c*d.rows+r]])
			threshold := d.debounceUp
			if level != 0 {
				threshold = d.debounceDown
			}
			if elapsed < threshold {
				continue
			}

			d.unstable[c] &^= mask

			if d.stable[c]&mask == level {
				continue
			}

			d.stable[c] ^= mask
			events = append(events, Event{
				Col:     c,
				Row:     r,
				Pressed: level != 0,
				Time:    now,
			})
		}
	}

	return events
}

// Stable returns a copy of the confirmed state.
func (d *Debouncer) Stable() Snapshot {
	out := make(Snapshot, len(d.stable))
	copy(out, d.stable)
	return out
}

// Unstable returns a copy of the keys still settling.
func (d *Debouncer) Unstable() Snapshot {
	out := make(Snapshot, len(d.unstable))
	copy(out, d.unstable)
	return out
}

// Previous returns a copy of the last snapshot folded in.
func (d *Debouncer) Previous() Snapshot {
	out := make(Snapshot, len(d.previous))
	copy(out, d.previous)
	return out
}
