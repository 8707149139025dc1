package util

import (
	"sync"
	"time"
)

// Debouncer fires once after a quiet period. A new Debouncer is idle:
// nothing is delivered on C until the first Reset arms it, and every later
// Reset pushes the deadline back.
//
//	d := NewDebouncer(250 * time.Millisecond)
//	defer d.Stop()
//
//	for {
//	    select {
//	    case frame := <-frames:
//	        send(frame)
//	        d.Reset()
//	    case <-d.C():
//	        markIdle()
//	    }
//	}
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer

	mu      sync.Mutex
	armed   bool
	stopped bool
}

// NewDebouncer returns an idle debouncer.
func NewDebouncer(duration time.Duration) *Debouncer {
	t := time.NewTimer(duration)
	t.Stop()

	return &Debouncer{
		duration: duration,
		timer:    t,
	}
}

// Reset arms the debouncer to fire after its duration. It is a no-op
// after Stop.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if !d.timer.Stop() {
		select {
		case <-d.timer.C:
		default:
		}
	}
	d.timer.Reset(d.duration)
	d.armed = true
}

// Armed reports whether a Reset happened since the debouncer last fired
// or was cancelled. It is cleared by Fired and Cancel.
func (d *Debouncer) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.armed
}

// Fired must be called after receiving from C.
func (d *Debouncer) Fired() {
	d.mu.Lock()
	d.armed = false
	d.mu.Unlock()
}

// Cancel disarms a pending deadline without stopping the debouncer.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.timer.Stop() {
		select {
		case <-d.timer.C:
		default:
		}
	}
	d.armed = false
}

// C returns the channel the deadline is delivered on.
func (d *Debouncer) C() <-chan time.Time {
	return d.timer.C
}

// Stop disarms the debouncer for good. It is safe to call more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.stopped {
		d.timer.Stop()
		d.stopped = true
		d.armed = false
	}
}
