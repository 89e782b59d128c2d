package batcher

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// State is a WriteOperation lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}

// canTransition reports whether from -> to is a legal lifecycle step.
func canTransition(from, to State) bool {
	switch from {
	case "":
		return to == StateIdle
	case StateIdle:
		return to == StatePending || to == StateError
	case StatePending:
		return to == StateSuccess || to == StateError
	default:
		return false
	}
}

// Operation is one ledger write covering a chunk of a delta.
type Operation struct {
	// ID uniquely identifies this attempt.
	ID string

	// ContentID is the canonical hash of player, levels and stars. Two
	// attempts with the same payload share it.
	ContentID string

	// Seq orders operations in the log.
	Seq int64

	PlayerID    string
	Levels      []int
	Stars       []int
	Sponsored   bool
	State       State
	ErrorReason string
}

// Clone returns a deep copy of op.
func (op Operation) Clone() Operation {
	op.Levels = slices.Clone(op.Levels)
	op.Stars = slices.Clone(op.Stars)
	return op
}

func (op Operation) String() string {
	return fmt.Sprintf("op %d (%d levels, %s)", op.Seq, len(op.Levels), op.State)
}

// Transition is one recorded lifecycle step.
type Transition struct {
	OperationID string
	Seq         int64
	From        State
	To          State
	Reason      string
}

// Recorder persists operations and their transitions.
type Recorder interface {
	// RecordTransition stores op in its new state and appends t.
	RecordTransition(ctx context.Context, op Operation, t Transition) error
}

// IDGenerator generates operation IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDs.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(context.Context, Operation, Transition) error { return nil }

// MemoryRecorder keeps transitions in memory.
type MemoryRecorder struct {
	mu          sync.Mutex
	transitions []Transition
	ops         map[string]Operation
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{ops: make(map[string]Operation)}
}

func (r *MemoryRecorder) RecordTransition(_ context.Context, op Operation, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op.ID] = op.Clone()
	r.transitions = append(r.transitions, t)
	return nil
}

// Transitions returns every recorded transition in order.
func (r *MemoryRecorder) Transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.transitions)
}

// Operation returns the latest recorded state of an operation.
func (r *MemoryRecorder) Operation(id string) (Operation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[id]
	return op.Clone(), ok
}
