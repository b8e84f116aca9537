// Package scheduler provides the timer facility used for heartbeats and the recovery
// of push connections. Components never create timers themselves, they receive an
// IScheduler and register repeating tasks on it.
//
// Implementations:
//
//   - NewTickerScheduler: every registration gets its own goroutine and time.Ticker.
//     This is the default for long running processes.
//
//   - NewManualScheduler: no goroutines at all. Time is advanced explicitly by the host
//     (Advance) or all tasks are run at once (Tick). Due tasks are kept in a min heap
//     keyed by task id, so cancelling and rescheduling are O(log n).
//
// Every registration returns a CancelFunc. Cancelling is idempotent and safe from within
// the task itself; a cancelled task never runs again. Panics inside a task are recovered
// and logged.
package scheduler
