// Package watchdog restarts the daemon when the main loop stops refreshing it.
package watchdog

import (
	"context"
	"time"
)

// Watchdog calls its expiry handler if Kick is not called within the timeout.
type Watchdog struct {
	timeout  time.Duration
	kick     chan struct{}
	onExpire func()
}

// New creates a watchdog. onExpire runs on the watchdog goroutine and is
// expected not to return (the daemon exits so its supervisor restarts it).
func New(timeout time.Duration, onExpire func()) *Watchdog {
	return &Watchdog{
		timeout:  timeout,
		kick:     make(chan struct{}, 1),
		onExpire: onExpire,
	}
}

// Kick refreshes the watchdog. It never blocks.
func (w *Watchdog) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Run supervises until ctx is done or the timeout expires.
func (w *Watchdog) Run(ctx context.Context) {
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.timeout)
		case <-timer.C:
			w.onExpire()
			return
		}
	}
}
