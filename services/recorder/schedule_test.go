package recorder

import (
	"testing"

	"datalogger-go/types"
)

func TestTaskQueueDrainsInDeadlineOrder(t *testing.T) {
	q := NewTaskQueue()
	var got []int
	q.Schedule(300, func(int64) { got = append(got, 3) })
	q.Schedule(100, func(int64) { got = append(got, 1) })
	q.Schedule(200, func(int64) { got = append(got, 2) })

	q.Drain(50)
	if len(got) != 0 {
		t.Fatalf("nothing due at 50, ran %v", got)
	}
	q.Drain(250)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("at 250 want [1 2], got %v", got)
	}
	q.Drain(1000)
	if len(got) != 3 || got[2] != 3 {
		t.Fatalf("at 1000 want [1 2 3], got %v", got)
	}
	if q.Pending() != 0 {
		t.Fatalf("queue should be empty, %d pending", q.Pending())
	}
}

func TestPhaseSchedulerExactlyOnce(t *testing.T) {
	q := NewTaskQueue()
	var taken []types.Phase
	var at []int64
	p := newPhaseScheduler(q, 0, func(ph types.Phase, now int64) {
		taken = append(taken, ph)
		at = append(at, now)
	})

	// Bytes keep arriving for the same transmission within the window:
	// exactly one active sample.
	p.OnTraffic(1000)
	p.OnTraffic(1005)
	p.OnTraffic(12_000)
	if len(taken) != 1 || taken[0] != types.PhaseActive {
		t.Fatalf("want exactly one active sample, got %v", taken)
	}
	if p.Idle() {
		t.Fatal("scheduler should be in ActiveTaken")
	}

	// Not due one tick before the 30 s deadline.
	q.Drain(1000 + SleepDelayMs - 1)
	if len(taken) != 1 {
		t.Fatalf("sleep sample fired early: %v", taken)
	}

	// Due at the deadline; scheduler returns to Idle.
	q.Drain(1000 + SleepDelayMs)
	if len(taken) != 2 || taken[1] != types.PhaseSleep {
		t.Fatalf("want active+sleep, got %v", taken)
	}
	if at[1] != 1000+SleepDelayMs {
		t.Fatalf("sleep sample at %d, want %d", at[1], 1000+SleepDelayMs)
	}
	if !p.Idle() {
		t.Fatal("scheduler should be Idle after the sleep sample")
	}

	// A new transmission starts a fresh cycle.
	p.OnTraffic(40_000)
	if len(taken) != 3 || taken[2] != types.PhaseActive {
		t.Fatalf("next cycle should take a new active sample, got %v", taken)
	}
}

func TestPhaseSchedulerDelayOverride(t *testing.T) {
	q := NewTaskQueue()
	fired := 0
	p := newPhaseScheduler(q, 50, func(ph types.Phase, now int64) {
		if ph == types.PhaseSleep {
			fired++
		}
	})
	p.OnTraffic(10)
	q.Drain(59)
	if fired != 0 {
		t.Fatal("compressed delay fired early")
	}
	q.Drain(60)
	if fired != 1 {
		t.Fatalf("sleep fired %d times, want 1", fired)
	}
}
