package matrix

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// minSleep is the shortest pause between cycles, so the loop always yields.
const minSleep = time.Millisecond

// Poller runs the idle/active scan state machine. All matrix state is owned by
// the goroutine calling Run.
type Poller struct {
	cfg       Config
	drv       Driver
	scanner   *Scanner
	debouncer *Debouncer
	sink      Sink
	wake      *Wake
	clock     Clock

	// OnMode, if set, is called on every idle/active transition.
	OnMode func(Mode)
	// OnCycle, if set, is called after every active scan cycle.
	OnCycle func(Cycle)
}

// NewPoller validates cfg and allocates the scan and debounce state.
func NewPoller(cfg Config, drv Driver, sink Sink, wake *Wake, clock Clock) (*Poller, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("matrix config: %w", err)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Poller{
		cfg:       cfg,
		drv:       drv,
		scanner:   NewScanner(drv, cfg),
		debouncer: NewDebouncer(cfg),
		sink:      sink,
		wake:      wake,
		clock:     clock,
	}, nil
}

// Config returns the effective configuration.
func (p *Poller) Config() Config {
	return p.cfg
}

// Run alternates between waiting for a wake signal and polling until the idle
// timeout expires. It returns only when ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if err := p.drv.DriveColumn(DriveAll); err != nil {
			log.Warnf("matrix: drive all columns: %v", err)
		}
		if err := p.drv.SetDetectMode(true); err != nil {
			log.Warnf("matrix: enable detect mode: %v", err)
		}
		p.setMode(ModeIdle)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake.C():
		}
		log.Debug("matrix: start scan")

		if err := p.drv.SetDetectMode(false); err != nil {
			log.Warnf("matrix: disable detect mode: %v", err)
		}
		p.setMode(ModeActive)

		if err := p.poll(ctx); err != nil {
			return err
		}
	}
}

// poll scans every PollPeriod until IdleTimeout passes without key activity.
func (p *Poller) poll(ctx context.Context) error {
	deadline := p.clock.Now().Add(p.cfg.IdleTimeout)

	for {
		start := p.clock.Now()

		active := p.Cycle(start)
		if active {
			deadline = p.clock.Now().Add(p.cfg.IdleTimeout)
		} else if !p.clock.Now().Before(deadline) {
			return nil
		}

		elapsed := p.clock.Now().Sub(start)
		wait := SleepPeriod(p.cfg.PollPeriod, elapsed)
		if wait == p.cfg.PollPeriod && elapsed < 0 {
			log.Debugf("matrix: clock went backwards by %v, sleeping full period", -elapsed)
		}
		if err := p.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Cycle performs one scan and, unless ghosting vetoes it, one debounce update.
// Confirmed events are delivered to the sink before it returns. The result
// reports whether any key was raw-active.
func (p *Poller) Cycle(now time.Time) bool {
	snap, active := p.scanner.Scan()

	if log.IsLevelEnabled(log.DebugLevel) {
		prev, unstable := p.debouncer.Previous(), p.debouncer.Unstable()
		for c := range snap {
			log.Debugf("matrix: col %d U%x P%x N%x", c, unstable[c], prev[c], snap[c])
		}
	}

	cycle := Cycle{Start: now, KeyActive: active}

	if p.cfg.GhostingCheck && HasGhosting(snap) {
		cycle.Ghosting = true
	} else {
		events := p.debouncer.Update(snap, now)
		for _, e := range events {
			p.sink.Report(e)
		}
		cycle.Events = len(events)
	}

	if p.OnCycle != nil {
		p.OnCycle(cycle)
	}
	return active
}

// Stable returns the confirmed key state. Only safe from the Run goroutine or
// when Run is not running.
func (p *Poller) Stable() Snapshot {
	return p.debouncer.Stable()
}

func (p *Poller) setMode(m Mode) {
	if p.OnMode != nil {
		p.OnMode(m)
	}
}

// SleepPeriod returns how long to sleep after a cycle that took elapsed, so
// cycles start every period. The result is at least one millisecond and at
// most period; an elapsed that is negative (clock stepped back) yields period.
func SleepPeriod(period, elapsed time.Duration) time.Duration {
	wait := period - elapsed
	if wait < minSleep {
		wait = minSleep
	}
	if wait > period {
		wait = period
	}
	return wait
}
