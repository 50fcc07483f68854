package recorder

import (
	"container/heap"

	"datalogger-go/types"
)

// SleepDelayMs is the settling window between transmission start and the
// sleep-phase sample. Fixed by design to match the remote node's deep-sleep
// entry; not runtime-configurable.
const SleepDelayMs = 30_000

// -----------------------------------------------------------------------------
// Deadline task queue
// -----------------------------------------------------------------------------

// All deferred work in the loop is expressed as (deadline, action) pairs
// drained each tick; there are no timers, threads, or interrupts.

type task struct {
	due   int64 // uptime ms
	run   func(now int64)
	index int
}

type taskHeap []*task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].due < h[j].due }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *taskHeap) Push(x any)        { t := x.(*task); t.index = len(*h); *h = append(*h, t) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	t.index = -1
	*h = old[:n-1]
	return t
}

// TaskQueue is a single-owner deadline queue; no locking (one loop, one
// owner).
type TaskQueue struct {
	h taskHeap
}

func NewTaskQueue() *TaskQueue { return &TaskQueue{} }

func (q *TaskQueue) Schedule(due int64, run func(now int64)) {
	heap.Push(&q.h, &task{due: due, run: run})
}

// Drain runs every task whose deadline has passed, in deadline order.
func (q *TaskQueue) Drain(now int64) {
	for len(q.h) > 0 && q.h[0].due <= now {
		t := heap.Pop(&q.h).(*task)
		t.run(now)
	}
}

func (q *TaskQueue) Pending() int { return len(q.h) }

// -----------------------------------------------------------------------------
// Dual-phase sampling scheduler
// -----------------------------------------------------------------------------

// phaseScheduler owns the "one active sample per transmission, one sleep
// sample a fixed delay later" protocol.
//
// States: Idle -> ActiveTaken (active sample recorded, sleep sample queued
// for lastTrigger+delay) -> Idle once the sleep sample fires, whether its
// append succeeded or was skipped.
type phaseScheduler struct {
	q           *TaskQueue
	delayMs     int64
	lastTrigger int64
	activeTaken bool
	take        func(phase types.Phase, now int64)
}

func newPhaseScheduler(q *TaskQueue, delayMs int64, take func(types.Phase, int64)) *phaseScheduler {
	if delayMs <= 0 {
		delayMs = SleepDelayMs
	}
	return &phaseScheduler{q: q, delayMs: delayMs, take: take}
}

// OnTraffic is called on every telemetry-port byte-availability event. In
// Idle it takes exactly one active-phase sample and queues the sleep-phase
// sample; while ActiveTaken it is a no-op, so bytes continuing to arrive for
// the same transmission can never produce a second active sample.
func (p *phaseScheduler) OnTraffic(now int64) {
	if p.activeTaken {
		return
	}
	p.activeTaken = true
	p.lastTrigger = now
	p.take(types.PhaseActive, now)
	p.q.Schedule(p.lastTrigger+p.delayMs, func(fireNow int64) {
		p.take(types.PhaseSleep, fireNow)
		p.activeTaken = false
	})
}

// Idle reports whether no cycle is in flight.
func (p *phaseScheduler) Idle() bool { return !p.activeTaken }
