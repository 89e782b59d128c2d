package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/roach88/starmatch/internal/batcher"
	"github.com/roach88/starmatch/internal/engine"
	"github.com/roach88/starmatch/internal/game"
	"github.com/roach88/starmatch/internal/ledger"
	"github.com/roach88/starmatch/internal/levels"
	"github.com/roach88/starmatch/internal/progress"
	"github.com/roach88/starmatch/internal/store"
	"github.com/roach88/starmatch/internal/testutil"
)

// ledgerEpoch is the first timestamp the scenario ledger stamps a write with.
var ledgerEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness runs one scenario against real components: a game runner, the
// sync engine over an in-memory SQLite store, and an in-memory ledger.
type Harness struct {
	scenario *Scenario
	catalog  *levels.Catalog
	store    *store.Store
	ledger   *ledger.Memory
	local    *progress.Store
	runner   *game.Runner
	engine   *engine.Engine
	clock    *batcher.Clock
	logger   *slog.Logger
	result   *Result

	lastSync *engine.Report
}

// Option configures a scenario run.
type Option func(*options)

type options struct {
	catalog *levels.Catalog
	logger  *slog.Logger
}

// WithCatalog runs the scenario against a custom level catalog.
func WithCatalog(c *levels.Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithLogger sends component logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers (seeded shuffle, sequence IDs, logical clock)
// make traces reproducible for golden comparison.
//
// Step and assertion failures are reported in the result; the error is
// reserved for infrastructure failures.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		catalog: levels.Default(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := newHarness(scenario, st, o)
	ctx := context.Background()

	if err := h.applyPresets(ctx); err != nil {
		return nil, fmt.Errorf("failed to apply presets: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step); err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d] (%s): %v", i, step.Action, err))
		}
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func newHarness(scenario *Scenario, st *store.Store, o options) *Harness {
	cat := o.catalog
	mem := ledger.NewMemory(cat, ledger.WithNow(testutil.NewStepClock(ledgerEpoch, time.Second).Now))
	local := progress.NewStore(st, cat, o.logger)
	reader := ledger.NewReader(mem, cat, ledger.WithReaderLogger(o.logger))
	b := batcher.New(mem, cat,
		batcher.WithRecorder(st),
		batcher.WithIDGenerator(testutil.NewSequenceIDs("op")),
		batcher.WithLogger(o.logger),
	)

	machine := game.NewMachine(cat,
		game.WithShuffler(rand.New(rand.NewPCG(scenario.Seed, scenario.Seed^0x9e3779b97f4a7c15))),
		game.WithIDGenerator(testutil.NewSequenceIDs("card")),
	)

	h := &Harness{
		scenario: scenario,
		catalog:  cat,
		store:    st,
		ledger:   mem,
		local:    local,
		runner:   game.NewRunner(machine, game.WithLogger(o.logger)),
		engine:   engine.New(local, reader, b, cat, engine.WithPlayer(scenario.Player), engine.WithLogger(o.logger)),
		clock:    batcher.NewClock(),
		logger:   o.logger,
		result:   NewResult(),
	}
	h.runner.OnOutcome(h.onOutcome)
	return h
}

func (h *Harness) applyPresets(ctx context.Context) error {
	if p := h.scenario.Local; p != nil {
		d := progress.Default()
		for l, s := range p.Stars {
			if err := h.checkRating(l, s); err != nil {
				return fmt.Errorf("local: %w", err)
			}
			d.LevelStars[l] = s
			d.CompletedLevels[l] = true
		}
		if p.Frontier > 0 {
			if err := h.catalog.Check(p.Frontier); err != nil {
				return fmt.Errorf("local frontier: %w", err)
			}
			d.HighestUnlockedLevel = p.Frontier
		}
		h.local.Save(ctx, h.scenario.Player, d)
	}
	if p := h.scenario.Ledger; p != nil {
		for l, s := range p.Stars {
			if err := h.checkRating(l, s); err != nil {
				return fmt.Errorf("ledger: %w", err)
			}
			h.ledger.Seed(h.scenario.Player, l, s)
		}
	}
	return nil
}

func (h *Harness) checkRating(level, stars int) error {
	if err := h.catalog.Check(level); err != nil {
		return err
	}
	return levels.CheckStars(stars)
}

// onOutcome records finished sessions the way the app does: won levels
// go through the engine into local progress.
func (h *Harness) onOutcome(o game.Outcome) {
	h.engine.RecordOutcome(context.Background(), o)

	ev := TraceEvent{
		Seq:    h.clock.Next(),
		Step:   EventOutcome,
		Level:  o.Level,
		Status: string(o.Status),
		Moves:  o.Moves,
	}
	if o.Status == game.StatusWon {
		ev.Stars = levels.StarsFor(o.Moves, h.catalog.ConfigFor(o.Level))
	}
	h.result.addEvent(ev)
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	count := max(step.Count, 1)

	var err error
	switch step.Action {
	case StepStart:
		if err := h.catalog.Check(step.Level); err != nil {
			return err
		}
		h.runner.Apply(game.StartLevel(step.Level))
	case StepFlip:
		h.runner.Apply(game.FlipCard(step.Card))
	case StepFlipPair:
		for range count {
			if err = h.flipPair(); err != nil {
				break
			}
		}
	case StepFlipMismatch:
		for range count {
			if err = h.flipMismatch(); err != nil {
				break
			}
		}
	case StepResolve:
		if _, ok := h.runner.Resolve(); !ok {
			err = fmt.Errorf("no two cards face up")
		}
	case StepTick:
		for range count {
			h.runner.Apply(game.TickTimer())
		}
	case StepPause:
		h.runner.Apply(game.PauseGame())
	case StepResume:
		h.runner.Apply(game.ResumeGame())
	case StepRestart:
		h.runner.Apply(game.RestartLevel())
	case StepComplete:
		h.runner.Apply(game.CompleteLevel())
	case StepFail:
		h.runner.Apply(game.FailLevel())
	case StepFinish:
		if err = h.playable(); err != nil {
			break
		}
		for h.runner.Session().Status == game.StatusPlaying {
			if err = h.flipPair(); err != nil {
				break
			}
		}
	case StepSync:
		return h.sync(ctx, step)
	case StepFailLedger:
		h.failLedger(step)
		return nil
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	h.recordSession(step.Action)
	return err
}

func (h *Harness) recordSession(action string) {
	s := h.runner.Session()
	h.result.addEvent(TraceEvent{
		Seq:           h.clock.Next(),
		Step:          action,
		Level:         s.Level,
		Status:        string(s.Status),
		Moves:         s.Moves,
		MatchedPairs:  s.MatchedPairs,
		TimeRemaining: s.TimeRemainingSeconds,
	})
}

// flipPair flips two face-down cards with the same image and resolves them.
func (h *Harness) flipPair() error {
	if err := h.playable(); err != nil {
		return err
	}
	a, b, ok := findCards(h.runner.Session(), true)
	if !ok {
		return fmt.Errorf("no face-down pair left")
	}
	return h.flipAndResolve(a, b)
}

// flipMismatch flips two face-down cards with different images and resolves them.
func (h *Harness) flipMismatch() error {
	if err := h.playable(); err != nil {
		return err
	}
	a, b, ok := findCards(h.runner.Session(), false)
	if !ok {
		return fmt.Errorf("no mismatched cards left")
	}
	return h.flipAndResolve(a, b)
}

func (h *Harness) playable() error {
	s := h.runner.Session()
	switch {
	case s.Level == 0:
		return fmt.Errorf("no level started")
	case !s.IsPlaying:
		return fmt.Errorf("session is %s", s.Status)
	case s.IsPaused:
		return fmt.Errorf("session is paused")
	case len(s.FlippedCardIDs) > 0:
		return fmt.Errorf("%d card(s) already face up", len(s.FlippedCardIDs))
	}
	return nil
}

func (h *Harness) flipAndResolve(a, b string) error {
	h.runner.Apply(game.FlipCard(a))
	h.runner.Apply(game.FlipCard(b))
	if _, ok := h.runner.Resolve(); !ok {
		return fmt.Errorf("cards %s and %s did not resolve", a, b)
	}
	return nil
}

// findCards returns two face-down unmatched cards whose images match
// (same) or differ (!same), in deal order.
func findCards(s game.Session, same bool) (string, string, bool) {
	var down []game.Card
	for _, c := range s.Cards {
		if !c.IsFlipped && !c.IsMatched {
			down = append(down, c)
		}
	}
	for i := range down {
		for j := i + 1; j < len(down); j++ {
			if (down[i].ImageID == down[j].ImageID) == same {
				return down[i].ID, down[j].ID, true
			}
		}
	}
	return "", "", false
}

func (h *Harness) sync(ctx context.Context, step Step) error {
	report, err := h.engine.Refresh(ctx)
	h.lastSync = &report

	d := h.local.Load(ctx, h.scenario.Player)
	ev := TraceEvent{
		Seq:        h.clock.Next(),
		Step:       StepSync,
		Remote:     report.Result.Remote.String(),
		Delta:      len(report.Result.Delta),
		Written:    report.Written(),
		Frontier:   d.HighestUnlockedLevel,
		TotalStars: d.TotalStars(),
	}
	code := ""
	if err != nil {
		code = err.Error()
		var se *engine.SyncError
		if errors.As(err, &se) {
			code = string(se.Code)
		}
		ev.Error = code
	}
	h.result.addEvent(ev)

	switch {
	case step.ExpectError == "" && err != nil:
		return fmt.Errorf("sync failed: %w", err)
	case step.ExpectError != "" && code != step.ExpectError:
		return fmt.Errorf("expected sync error %s, got %q", step.ExpectError, code)
	}
	return nil
}

func (h *Harness) failLedger(step Step) {
	switch step.Mode {
	case FailReads:
		h.ledger.FailReads(true)
	case FailWrites:
		reason := step.Reason
		if reason == "" {
			reason = "rejected"
		}
		h.ledger.RejectWrites(reason)
	case FailNone:
		h.ledger.FailReads(false)
		h.ledger.RejectWrites("")
	}
	h.result.addEvent(TraceEvent{
		Seq:  h.clock.Next(),
		Step: StepFailLedger,
		Mode: step.Mode,
	})
}
