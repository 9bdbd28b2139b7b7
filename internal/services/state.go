package services

import (
	"sync"
	"time"
)

// OperationState is the lifecycle of one mutating operation:
// Idle -> InFlight -> {Success, PartialFailure, Failure}.
type OperationState int

const (
	StateIdle OperationState = iota
	StateInFlight
	StateSuccess
	StatePartialFailure
	StateFailure
)

func (s OperationState) String() string {
	switch s {
	case StateInFlight:
		return "in_flight"
	case StateSuccess:
		return "success"
	case StatePartialFailure:
		return "partial_failure"
	case StateFailure:
		return "failure"
	default:
		return "idle"
	}
}

// Terminal reports whether s ends an operation.
func (s OperationState) Terminal() bool {
	return s == StateSuccess || s == StatePartialFailure || s == StateFailure
}

// OperationStatus is a snapshot of the last operation of a session.
type OperationStatus struct {
	Op         Op
	Key        string
	State      OperationState
	Result     *Result
	StartedAt  time.Time
	FinishedAt time.Time
}

// OperationTracker records the state of the most recent mutating operation.
type OperationTracker struct {
	mu      sync.Mutex
	seq     uint64
	current OperationStatus
}

// Start moves the tracker to InFlight for op and returns the token that
// Finish must present.
func (t *OperationTracker) Start(op Op, key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.current = OperationStatus{
		Op:        op,
		Key:       key,
		State:     StateInFlight,
		StartedAt: time.Now(),
	}
	return t.seq
}

// Finish records the terminal state of res. It is ignored unless token
// belongs to the operation in flight.
func (t *OperationTracker) Finish(token uint64, res *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if token != t.seq || t.current.State != StateInFlight {
		return
	}
	t.current.State = res.State()
	t.current.Result = res
	t.current.FinishedAt = time.Now()
}

// Status returns the current snapshot.
func (t *OperationTracker) Status() OperationStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Reset returns the tracker to Idle.
func (t *OperationTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = OperationStatus{}
}
