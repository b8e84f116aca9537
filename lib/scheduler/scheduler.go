package scheduler

import (
	"github.com/lni/dragonboat/v4/logger"
	"sync"
	"time"
)

var Logger = logger.GetLogger("scheduler")

// --------------------------------------------------------------------------
// Interface Definitions
// --------------------------------------------------------------------------

// CancelFunc stops a repeating task. It is idempotent and may be called from within the task itself.
type CancelFunc func()

// IScheduler runs callbacks periodically. It is injected into every component that needs
// a timer (heartbeats, push connection recovery), so the host decides how time passes.
type IScheduler interface {
	// Every runs fn every interval until the returned CancelFunc is called.
	// A non-positive interval registers nothing and returns a no-op CancelFunc.
	Every(interval time.Duration, fn func()) CancelFunc
}

// noop is returned for registrations that never run
func noop() {}

// --------------------------------------------------------------------------
// Ticker Scheduler (one goroutine per registration)
// --------------------------------------------------------------------------

// tickerScheduler implements IScheduler with a time.Ticker per task
type tickerScheduler struct{}

// NewTickerScheduler creates a scheduler that runs every task on its own goroutine
func NewTickerScheduler() IScheduler {
	return &tickerScheduler{}
}

func (s *tickerScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	if interval <= 0 {
		return noop
	}

	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				// a cancel may race with the tick, the task must not run afterwards
				select {
				case <-done:
					return
				default:
				}
				runTask(fn)
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

// runTask runs fn and logs a panic instead of killing the timer goroutine
func runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("Scheduled task panicked: %v", r)
		}
	}()
	fn()
}
