package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/starmatch/internal/batcher"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, ev.summary())
		}
	}
	return buf.String()
}

func (ev TraceEvent) summary() string {
	switch ev.Step {
	case StepSync:
		s := fmt.Sprintf("sync remote=%s delta=%d written=%d", ev.Remote, ev.Delta, ev.Written)
		if ev.Error != "" {
			s += " error=" + ev.Error
		}
		return s
	case StepFailLedger:
		return "fail_ledger " + ev.Mode
	case EventOutcome:
		return fmt.Sprintf("outcome level=%d %s moves=%d stars=%d", ev.Level, ev.Status, ev.Moves, ev.Stars)
	default:
		return fmt.Sprintf("%s level=%d %s moves=%d matched=%d time=%d",
			ev.Step, ev.Level, ev.Status, ev.Moves, ev.MatchedPairs, ev.TimeRemaining)
	}
}

// evaluateAssertions checks every assertion against the final state.
// Returns one message per failed assertion.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	session := h.runner.Session()
	local := h.local.Load(ctx, h.scenario.Player)

	switch a.Type {
	case AssertSessionStatus:
		return h.expectString(a.Type, a.Status, string(session.Status))
	case AssertMoves:
		return h.expectInt(a.Type, a.Value, session.Moves)
	case AssertMatchedPairs:
		return h.expectInt(a.Type, a.Value, session.MatchedPairs)
	case AssertTimeRemaining:
		return h.expectInt(a.Type, a.Value, session.TimeRemainingSeconds)
	case AssertLevelStars:
		return h.expectInt(fmt.Sprintf("%s[%d]", a.Type, a.Level), a.Value, local.Stars(a.Level))
	case AssertFrontier:
		return h.expectInt(a.Type, a.Value, local.HighestUnlockedLevel)
	case AssertCompleted:
		got := local.Completed()
		if !slices.Equal(a.Levels, got) {
			return h.mismatch(a.Type, fmt.Sprint(a.Levels), fmt.Sprint(got))
		}
		return nil
	case AssertDeltaSize:
		if h.lastSync == nil {
			return h.mismatch(a.Type, fmt.Sprint(a.Value), "no sync step ran")
		}
		return h.expectInt(a.Type, a.Value, len(h.lastSync.Result.Delta))
	case AssertOperations:
		n, err := h.countOperations(ctx, a.State)
		if err != nil {
			return err
		}
		name := a.Type
		if a.State != "" {
			name = fmt.Sprintf("%s[%s]", a.Type, a.State)
		}
		return h.expectInt(name, a.Value, n)
	case AssertLedgerStars:
		return h.expectInt(fmt.Sprintf("%s[%d]", a.Type, a.Level), a.Value, h.ledger.Stars(h.scenario.Player, a.Level))
	case AssertSyncState:
		return h.expectString(a.Type, a.Status, string(h.engine.Status().State))
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// countOperations counts logged write operations for the scenario player,
// optionally only those in state.
func (h *Harness) countOperations(ctx context.Context, state string) (int, error) {
	ops, err := h.store.Operations(ctx, h.scenario.Player)
	if err != nil {
		return 0, fmt.Errorf("operations: %w", err)
	}
	if state == "" {
		return len(ops), nil
	}
	n := 0
	for _, op := range ops {
		if op.State == batcher.State(state) {
			n++
		}
	}
	return n, nil
}

func (h *Harness) expectInt(name string, want, got int) error {
	if want == got {
		return nil
	}
	return h.mismatch(name, fmt.Sprint(want), fmt.Sprint(got))
}

func (h *Harness) expectString(name, want, got string) error {
	if want == got {
		return nil
	}
	return h.mismatch(name, want, got)
}

func (h *Harness) mismatch(name, want, got string) error {
	return &AssertionError{
		Type:     name,
		Expected: want,
		Actual:   got,
		Trace:    h.result.Trace,
	}
}
