package builtin

import (
	"time"
)

type task struct {
	seq     uint64
	byTick  bool
	due     time.Time
	dueTick uint64
	fn      func()
}

// Scheduler is a host-driven queue of deferred callbacks. It never
// starts goroutines: callbacks run inside Tick on the caller's
// goroutine, in the order they were scheduled. It is not safe for
// concurrent use.
type Scheduler struct {
	now   time.Time
	ticks uint64
	seq   uint64
	tasks []task
}

func NewScheduler(start time.Time) *Scheduler {
	return &Scheduler{now: start}
}

// Now is the time passed to the latest Tick.
func (s *Scheduler) Now() time.Time {
	return s.now
}

func (s *Scheduler) Ticks() uint64 {
	return s.ticks
}

// After schedules fn to run on the first tick at or after Now()+d.
func (s *Scheduler) After(d time.Duration, fn func()) {
	s.seq++
	s.tasks = append(s.tasks, task{seq: s.seq, due: s.now.Add(d), fn: fn})
}

// AfterTicks schedules fn to run n ticks from now. n below one counts
// as one.
func (s *Scheduler) AfterTicks(n int, fn func()) {
	if n < 1 {
		n = 1
	}
	s.seq++
	s.tasks = append(s.tasks, task{seq: s.seq, byTick: true, dueTick: s.ticks + uint64(n), fn: fn})
}

// Tick advances the clock to now and runs every due callback. Callbacks
// scheduled while the tick runs wait for a later tick. It returns the
// number of callbacks run.
func (s *Scheduler) Tick(now time.Time) int {
	if now.After(s.now) {
		s.now = now
	}
	s.ticks++

	var due []task
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if s.isDue(t) {
			due = append(due, t)
		} else {
			kept = append(kept, t)
		}
	}
	s.tasks = kept

	for _, t := range due {
		t.fn()
	}
	return len(due)
}

func (s *Scheduler) isDue(t task) bool {
	if t.byTick {
		return t.dueTick <= s.ticks
	}
	return !t.due.After(s.now)
}

func (s *Scheduler) Pending() int {
	return len(s.tasks)
}

func (s *Scheduler) Clear() {
	s.tasks = nil
}
