package flow

import (
	"sync"
	"time"
)

// watchdog fires a reset callback after a fixed idle threshold. It polls
// on a coarse tick rather than re-arming a timer per interaction, so a
// touchscreen hammering Touch stays cheap.
type watchdog struct {
	mu        sync.Mutex
	threshold time.Duration
	tick      time.Duration
	onIdle    func()

	lastSeen time.Time
	stop     chan struct{}
}

func newWatchdog(threshold, tick time.Duration, onIdle func()) *watchdog {
	return &watchdog{
		threshold: threshold,
		tick:      tick,
		onIdle:    onIdle,
	}
}

// Arm starts the watchdog. Arming an armed watchdog only refreshes the
// activity clock.
func (w *watchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastSeen = time.Now()
	if w.stop != nil {
		return
	}

	stop := make(chan struct{})
	w.stop = stop

	go func() {
		ticker := time.NewTicker(w.tick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				w.mu.Lock()
				idle := time.Since(w.lastSeen) > w.threshold
				stale := w.stop != stop
				w.mu.Unlock()
				if stale {
					return
				}
				if idle {
					w.onIdle()
					return
				}
			}
		}
	}()
}

// Disarm stops the watchdog. Safe to call when not armed.
func (w *watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
}

// Touch records user activity.
func (w *watchdog) Touch() {
	w.mu.Lock()
	w.lastSeen = time.Now()
	w.mu.Unlock()
}
