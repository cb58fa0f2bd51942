package rtmp

import "time"

// watchdog fires fn once, after d has elapsed without being reset or
// stopped. It generalises the two timers (DNS resolution, socket idle) the
// original implementation keeps next to its connection state, onto Go's
// time.Timer.
type watchdog struct {
	timer *time.Timer
	fn    func()
}

func newWatchdog(fn func()) *watchdog {
	return &watchdog{fn: fn}
}

// Arm (re)starts the watchdog so fn fires d from now, canceling any timer
// already running.
func (w *watchdog) Arm(d time.Duration) {
	w.Stop()
	w.timer = time.AfterFunc(d, w.fn)
}

// Stop disarms the watchdog; fn will not fire unless Arm is called again.
func (w *watchdog) Stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}
