package session

import (
	"sync"
	"time"
)

// Debouncer delivers the last pushed value once no new value has arrived
// for the configured delay.
type Debouncer[T any] struct {
	clock Clock
	delay time.Duration
	fire  func(T)

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

func NewDebouncer[T any](clock Clock, delay time.Duration, fire func(T)) *Debouncer[T] {
	if clock == nil {
		clock = RealClock{}
	}
	return &Debouncer[T]{clock: clock, delay: delay, fire: fire}
}

// Push restarts the delay with v as the pending value.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := gen == d.gen
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			d.fire(v)
		}
	})
}

// Cancel drops the pending value, if any.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
