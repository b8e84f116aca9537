package scheduler

import (
	"container/heap"
	"sync/atomic"
	"testing"
	"time"
)

// TestManualSchedulerAdvance tests that tasks run once per elapsed interval
func TestManualSchedulerAdvance(t *testing.T) {
	s := NewManualScheduler()

	var fast, slow int
	s.Every(10*time.Millisecond, func() { fast++ })
	s.Every(25*time.Millisecond, func() { slow++ })

	s.Advance(9 * time.Millisecond)
	if fast != 0 || slow != 0 {
		t.Fatalf("No task should be due yet, got fast=%d slow=%d", fast, slow)
	}

	s.Advance(41 * time.Millisecond)
	if fast != 5 {
		t.Errorf("Expected fast task to run 5 times, ran %d times", fast)
	}
	if slow != 2 {
		t.Errorf("Expected slow task to run 2 times, ran %d times", slow)
	}
	if s.Now() != 50*time.Millisecond {
		t.Errorf("Expected clock at 50ms, got %s", s.Now())
	}
}

// TestManualSchedulerOrder tests that due tasks run in due order and ties in registration order
func TestManualSchedulerOrder(t *testing.T) {
	s := NewManualScheduler()

	var order []string
	s.Every(20*time.Millisecond, func() { order = append(order, "b") })
	s.Every(10*time.Millisecond, func() { order = append(order, "a") })

	s.Advance(20 * time.Millisecond)

	expected := []string{"a", "b", "a"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Fatalf("Expected %v, got %v", expected, order)
		}
	}
}

// TestManualSchedulerCancel tests cancelling from outside and from within the task
func TestManualSchedulerCancel(t *testing.T) {
	s := NewManualScheduler()

	var outside, inside int
	cancelOutside := s.Every(time.Millisecond, func() { outside++ })

	var cancelInside CancelFunc
	cancelInside = s.Every(time.Millisecond, func() {
		inside++
		cancelInside()
	})

	s.Advance(3 * time.Millisecond)
	cancelOutside()
	cancelOutside() // idempotent
	s.Advance(10 * time.Millisecond)

	if outside != 3 {
		t.Errorf("Expected 3 runs before cancel, got %d", outside)
	}
	if inside != 1 {
		t.Errorf("Self cancelling task should run once, ran %d times", inside)
	}
	if s.Pending() != 0 {
		t.Errorf("Expected no pending tasks, got %d", s.Pending())
	}
}

// TestManualSchedulerTick tests that Tick runs every task once regardless of its interval
func TestManualSchedulerTick(t *testing.T) {
	s := NewManualScheduler()

	var a, b int
	s.Every(time.Hour, func() { a++ })
	s.Every(time.Minute, func() { b++ })

	s.Tick()
	s.Tick()

	if a != 2 || b != 2 {
		t.Errorf("Expected both tasks to run twice, got a=%d b=%d", a, b)
	}
	if s.Now() != 0 {
		t.Errorf("Tick must not advance the clock, got %s", s.Now())
	}
}

// TestNonPositiveInterval tests that a non-positive interval registers nothing
func TestNonPositiveInterval(t *testing.T) {
	s := NewManualScheduler()
	cancel := s.Every(0, func() { t.Error("task must not run") })
	cancel()
	s.Tick()
	if s.Pending() != 0 {
		t.Errorf("Expected no pending tasks, got %d", s.Pending())
	}

	cancel = NewTickerScheduler().Every(-time.Second, func() { t.Error("task must not run") })
	cancel()
}

// TestPanickingTask tests that a panic inside a task is recovered
func TestPanickingTask(t *testing.T) {
	s := NewManualScheduler()

	var runs int
	s.Every(time.Millisecond, func() {
		runs++
		panic("boom")
	})

	s.Advance(2 * time.Millisecond)
	if runs != 2 {
		t.Errorf("Expected task to keep running after a panic, ran %d times", runs)
	}
}

// TestTickerScheduler tests the goroutine based scheduler
func TestTickerScheduler(t *testing.T) {
	s := NewTickerScheduler()

	var runs atomic.Int32
	cancel := s.Every(5*time.Millisecond, func() { runs.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if runs.Load() < 3 {
		t.Fatalf("Expected at least 3 runs, got %d", runs.Load())
	}

	cancel()
	// give a tick that raced with cancel time to finish
	time.Sleep(20 * time.Millisecond)
	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != stopped {
		t.Errorf("Task kept running after cancel: %d -> %d", stopped, runs.Load())
	}
}

// TestTimerHeap tests ordering and key based removal of the timer heap
func TestTimerHeap(t *testing.T) {
	h := newTimerHeap()
	heap.Init(h)

	h.set(1, 300)
	h.set(2, 100)
	h.set(3, 200)
	h.set(4, 100)

	if top, ok := h.peek(); !ok || top.Key != 2 {
		t.Fatalf("Expected key 2 first, got %v", top)
	}

	// move 2 to the back
	h.set(2, 400)
	if top, _ := h.peek(); top.Key != 4 {
		t.Fatalf("Expected key 4 first, got %v", top)
	}

	if !h.remove(4) {
		t.Fatal("Expected key 4 to be removed")
	}
	if h.remove(4) {
		t.Fatal("Key 4 must not be removed twice")
	}

	var keys []uint64
	for h.Len() > 0 {
		keys = append(keys, heap.Pop(h).(*timer).Key)
	}
	expected := []uint64{3, 1, 2}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Fatalf("Expected order %v, got %v", expected, keys)
		}
	}
}
