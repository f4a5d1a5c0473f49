package clock

import (
	"sync"
	"time"
)

// FakeClock is a programmable Clock. With no functions set, Now returns the anchor
// and After fires immediately, so delayed sequences run to completion without waiting.
type FakeClock struct {
	NowFn   func() time.Time
	AfterFn func(d time.Duration) <-chan time.Time

	mu     sync.Mutex
	anchor time.Time
	waits  []time.Duration
}

// NewFakeClock anchors a FakeClock at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{anchor: t}
}

func (f *FakeClock) Now() time.Time {
	if f.NowFn != nil {
		return f.NowFn()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.anchor
}

func (f *FakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	f.anchor = f.anchor.Add(d)
	now := f.anchor
	f.mu.Unlock()

	if f.AfterFn != nil {
		return f.AfterFn(d)
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Waits returns every duration passed to After, in call order.
func (f *FakeClock) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.waits))
	copy(out, f.waits)
	return out
}
