package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestArmOnceFires(t *testing.T) {
	ts := NewTimerScheduler(zerolog.Nop())
	defer ts.Close()

	fired := make(chan struct{})
	ts.ArmOnce(100, time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("one-shot never fired")
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	ts := NewTimerScheduler(zerolog.Nop())
	defer ts.Close()

	var fired atomic.Bool
	h := ts.ArmOnce(100, time.Second, func() { fired.Store(true) })
	ts.Cancel(h)
	ts.Cancel(h) // idempotent
	ts.Cancel("unknown-handle")

	time.Sleep(1500 * time.Millisecond)
	if fired.Load() {
		t.Fatal("cancelled job fired")
	}
}

func TestArmRepeatingFiresAndStops(t *testing.T) {
	ts := NewTimerScheduler(zerolog.Nop())
	defer ts.Close()

	var count atomic.Int64
	h := ts.ArmRepeating(100, time.Second, time.Millisecond, func() { count.Add(1) })

	deadline := time.After(3 * time.Second)
	for count.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("repeating job never fired")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	ts.Cancel(h)
	n := count.Load()
	time.Sleep(1500 * time.Millisecond)
	if count.Load() > n+1 {
		t.Fatalf("job kept firing after cancel: %d -> %d", n, count.Load())
	}
}

func TestCloseCancelsAll(t *testing.T) {
	ts := NewTimerScheduler(zerolog.Nop())

	var fired atomic.Bool
	ts.ArmOnce(100, time.Second, func() { fired.Store(true) })
	ts.ArmRepeating(100, time.Second, time.Second, func() { fired.Store(true) })
	ts.Close()

	time.Sleep(1500 * time.Millisecond)
	if fired.Load() {
		t.Fatal("job fired after Close")
	}
}
