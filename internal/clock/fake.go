package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for deterministic timeout tests.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	seq     int
}

// NewFake returns a Fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, cb func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{owner: f, fireAt: f.now.Add(d), cb: cb, id: f.seq, active: true, inList: true}
	f.pending = append(f.pending, t)
	return t
}

// Advance moves the clock forward by d, firing (synchronously, in fireAt
// order) every timer whose deadline has been reached.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	due := f.dueLocked()
	f.mu.Unlock()

	for _, t := range due {
		t.cb()
	}
}

func (f *Fake) dueLocked() []*fakeTimer {
	sort.Slice(f.pending, func(i, j int) bool { return f.pending[i].fireAt.Before(f.pending[j].fireAt) })
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range f.pending {
		switch {
		case !t.active:
			t.inList = false
		case !t.fireAt.After(f.now):
			t.active = false
			t.inList = false
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	f.pending = rest
	return due
}

type fakeTimer struct {
	owner  *Fake
	fireAt time.Time
	cb     func()
	id     int
	active bool
	inList bool
}

func (t *fakeTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	was := t.active
	t.active = false
	return was
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	was := t.active
	t.active = true
	t.fireAt = t.owner.now.Add(d)
	if !t.inList {
		t.inList = true
		t.owner.pending = append(t.owner.pending, t)
	}
	return was
}
