package matrix

// Wake is a single-slot notification. Signals raised before the poller gets
// to look collapse into one wakeup.
type Wake struct {
	ch chan struct{}
}

// NewWake creates an unsignalled Wake.
func NewWake() *Wake {
	return &Wake{ch: make(chan struct{}, 1)}
}

// Signal requests a scan. It never blocks and is safe from any goroutine.
func (w *Wake) Signal() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// C returns the channel the poller receives on while idle.
func (w *Wake) C() <-chan struct{} {
	return w.ch
}
