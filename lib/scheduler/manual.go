package scheduler

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler implements IScheduler without any goroutine. Time only passes when the
// host calls Advance (or Tick), which makes it usable from synchronous hosts and in tests.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	nextId uint64
	tasks  map[uint64]*manualTask
	timers *timerHeap
}

type manualTask struct {
	interval time.Duration
	fn       func()
}

// NewManualScheduler creates a scheduler that is driven by Advance and Tick
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		tasks:  make(map[uint64]*manualTask),
		timers: newTimerHeap(),
	}
}

func (s *ManualScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	if interval <= 0 {
		return noop
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextId++
	id := s.nextId
	s.tasks[id] = &manualTask{interval: interval, fn: fn}
	s.timers.set(id, int64(s.now+interval))

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tasks, id)
		s.timers.remove(id)
	}
}

// Advance moves the clock forward by d and runs every task that becomes due, in due order.
// Tasks are run without holding the lock, so they may cancel themselves or register new tasks.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d

	for {
		t, ok := s.timers.peek()
		if !ok || time.Duration(t.Due) > target {
			break
		}
		task := s.tasks[t.Key]
		s.now = time.Duration(t.Due)
		s.timers.set(t.Key, int64(s.now+task.interval))

		s.mu.Unlock()
		runTask(task.fn)
		s.mu.Lock()
	}

	s.now = target
	s.mu.Unlock()
}

// Tick runs every registered task once, independent of its interval, in registration order
func (s *ManualScheduler) Tick() {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		s.mu.Lock()
		task, ok := s.tasks[id]
		s.mu.Unlock()
		// cancelled by a previous task of this tick
		if !ok {
			continue
		}
		runTask(task.fn)
	}
}

// Pending returns the number of registered tasks
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Now returns the time elapsed on the manual clock
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
