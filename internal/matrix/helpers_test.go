package matrix_test

import (
	"context"
	"time"

	"github.com/sweeney/kbd-matrix/internal/matrix"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// fakeClock only moves when slept on. onSleep runs after each advance so a
// test can change the matrix as virtual time passes.
type fakeClock struct {
	now     time.Time
	sleeps  []time.Duration
	onSleep func(now time.Time)
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if c.onSleep != nil {
		c.onSleep(c.now)
	}
	return ctx.Err()
}

// recorder is a Sink that keeps every event.
type recorder struct {
	events []matrix.Event
}

func (r *recorder) Report(e matrix.Event) { r.events = append(r.events, e) }

type key struct {
	col, row int
	pressed  bool
}

func keys(events []matrix.Event) []key {
	out := make([]key, 0, len(events))
	for _, e := range events {
		out = append(out, key{e.Col, e.Row, e.Pressed})
	}
	return out
}
