// Package scheduler provides the phase scheduler adapter: timed callbacks
// that can be armed, re-armed from persisted deadlines and cancelled.
package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handle identifies an armed callback. Handles survive in the session's
// job map only as opaque strings.
type Handle = string

// Scheduler arms timed transition callbacks. Cancel is idempotent:
// disarming an already-fired or unknown handle is a no-op.
type Scheduler interface {
	ArmOnce(sessionID int64, after time.Duration, fn func()) Handle
	ArmRepeating(sessionID int64, interval, first time.Duration, fn func()) Handle
	Cancel(h Handle)
}

type job struct {
	timer *time.Timer
	stop  chan struct{}
	once  sync.Once
}

func (j *job) cancel() {
	if j.timer != nil {
		j.timer.Stop()
	}
	j.once.Do(func() {
		if j.stop != nil {
			close(j.stop)
		}
	})
}

// TimerScheduler implements Scheduler on the process clock.
type TimerScheduler struct {
	mu     sync.Mutex
	jobs   map[Handle]*job
	logger zerolog.Logger
}

// NewTimerScheduler creates an empty scheduler.
func NewTimerScheduler(logger zerolog.Logger) *TimerScheduler {
	return &TimerScheduler{
		jobs:   make(map[Handle]*job),
		logger: logger.With().Str("service", "scheduler").Logger(),
	}
}

// ArmOnce fires fn once after the given delay.
func (ts *TimerScheduler) ArmOnce(sessionID int64, after time.Duration, fn func()) Handle {
	if after < time.Second {
		after = time.Second
	}
	h := uuid.NewString()
	t := time.AfterFunc(after, func() {
		ts.remove(h)
		fn()
	})
	ts.mu.Lock()
	ts.jobs[h] = &job{timer: t}
	ts.mu.Unlock()
	ts.logger.Debug().Int64("session_id", sessionID).Str("handle", h).Dur("after", after).Msg("armed one-shot")
	return h
}

// ArmRepeating fires fn every interval, the first time after first.
func (ts *TimerScheduler) ArmRepeating(sessionID int64, interval, first time.Duration, fn func()) Handle {
	if interval < time.Second {
		interval = time.Second
	}
	if first <= 0 {
		first = interval
	}
	h := uuid.NewString()
	j := &job{stop: make(chan struct{})}
	go func() {
		timer := time.NewTimer(first)
		defer timer.Stop()
		select {
		case <-timer.C:
			fn()
		case <-j.stop:
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-j.stop:
				return
			}
		}
	}()
	ts.mu.Lock()
	ts.jobs[h] = j
	ts.mu.Unlock()
	ts.logger.Debug().Int64("session_id", sessionID).Str("handle", h).Dur("interval", interval).Msg("armed repeating")
	return h
}

// Cancel disarms a handle. Unknown or already-fired handles are ignored.
func (ts *TimerScheduler) Cancel(h Handle) {
	ts.mu.Lock()
	j, ok := ts.jobs[h]
	delete(ts.jobs, h)
	ts.mu.Unlock()
	if ok {
		j.cancel()
	}
}

// Close cancels everything. Used on shutdown.
func (ts *TimerScheduler) Close() {
	ts.mu.Lock()
	jobs := ts.jobs
	ts.jobs = make(map[Handle]*job)
	ts.mu.Unlock()
	for _, j := range jobs {
		j.cancel()
	}
}

func (ts *TimerScheduler) remove(h Handle) {
	ts.mu.Lock()
	delete(ts.jobs, h)
	ts.mu.Unlock()
}
