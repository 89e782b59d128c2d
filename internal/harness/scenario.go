package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted play-and-sync session with assertions on the
// final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed drives the board shuffle. The same seed deals the same boards.
	Seed uint64 `yaml:"seed"`

	// Player is the identity progress is stored and synced under.
	// Empty plays as the guest, which cannot sync.
	Player string `yaml:"player"`

	// Local presets the player's local progress.
	Local *Preset `yaml:"local,omitempty"`

	// Ledger presets the player's ledger record, as written by another device.
	Ledger *Preset `yaml:"ledger,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Preset is a starting record of level ratings.
type Preset struct {
	Stars map[int]int `yaml:"stars"`

	// Frontier is the highest unlocked level. Local presets only; defaults to 1.
	Frontier int `yaml:"frontier,omitempty"`
}

// Step is one scripted action.
type Step struct {
	// Action names the step; see the Step* constants.
	Action string `yaml:"action"`

	// Level is the level to start (start).
	Level int `yaml:"level,omitempty"`

	// Card is the card ID to flip (flip).
	Card string `yaml:"card,omitempty"`

	// Count repeats flip_pair, flip_mismatch and tick. Defaults to 1.
	Count int `yaml:"count,omitempty"`

	// Mode selects the ledger failure (fail_ledger): reads, writes or none.
	Mode string `yaml:"mode,omitempty"`

	// Reason is the rejection reason for failed writes (fail_ledger).
	Reason string `yaml:"reason,omitempty"`

	// ExpectError is the sync error code this step must produce (sync).
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step actions.
const (
	StepStart        = "start"
	StepFlip         = "flip"
	StepFlipPair     = "flip_pair"
	StepFlipMismatch = "flip_mismatch"
	StepResolve      = "resolve"
	StepTick         = "tick"
	StepPause        = "pause"
	StepResume       = "resume"
	StepRestart      = "restart"
	StepComplete     = "complete"
	StepFail         = "fail"
	StepFinish       = "finish"
	StepSync         = "sync"
	StepFailLedger   = "fail_ledger"
)

// Ledger failure modes for fail_ledger.
const (
	FailReads  = "reads"
	FailWrites = "writes"
	FailNone   = "none"
)

// Assertion validates one aspect of the final state.
type Assertion struct {
	// Type selects what is checked; see the Assert* constants.
	Type string `yaml:"type"`

	// Level selects the level for level_stars and ledger_stars.
	Level int `yaml:"level,omitempty"`

	// Value is the expected number for numeric assertions.
	Value int `yaml:"value"`

	// Status is the expected session status (session_status) or sync
	// indicator state (sync_state).
	Status string `yaml:"status,omitempty"`

	// Levels is the expected completed level list (completed).
	Levels []int `yaml:"levels,omitempty"`

	// State filters operations by lifecycle state (operations).
	State string `yaml:"state,omitempty"`
}

// Assertion types.
const (
	AssertSessionStatus = "session_status"
	AssertMoves         = "moves"
	AssertMatchedPairs  = "matched_pairs"
	AssertTimeRemaining = "time_remaining"
	AssertLevelStars    = "level_stars"
	AssertFrontier      = "frontier"
	AssertCompleted     = "completed"
	AssertDeltaSize     = "delta_size"
	AssertOperations    = "operations"
	AssertLedgerStars   = "ledger_stars"
	AssertSyncState     = "sync_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must contain at least one step")
	}
	if s.Ledger != nil && s.Ledger.Frontier != 0 {
		return fmt.Errorf("ledger: frontier is derived from stars and cannot be set")
	}
	for i, step := range s.Steps {
		if err := validateStep(i, step, s.Player); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step, player string) error {
	if step.Count < 0 {
		return fmt.Errorf("steps[%d]: count must be non-negative", index)
	}
	switch step.Action {
	case StepStart:
		if step.Level == 0 {
			return fmt.Errorf("steps[%d]: level is required for start", index)
		}
	case StepFlip:
		if step.Card == "" {
			return fmt.Errorf("steps[%d]: card is required for flip", index)
		}
	case StepSync:
		if player == "" {
			return fmt.Errorf("steps[%d]: sync requires a player", index)
		}
	case StepFailLedger:
		switch step.Mode {
		case FailReads, FailWrites, FailNone:
		default:
			return fmt.Errorf("steps[%d]: unknown fail_ledger mode %q", index, step.Mode)
		}
	case StepFlipPair, StepFlipMismatch, StepResolve, StepTick, StepPause,
		StepResume, StepRestart, StepComplete, StepFail, StepFinish:
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertLevelStars, AssertLedgerStars:
		if a.Level == 0 {
			return fmt.Errorf("assertions[%d]: level is required for %s", index, a.Type)
		}
	case AssertSessionStatus, AssertSyncState:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for %s", index, a.Type)
		}
	case AssertMoves, AssertMatchedPairs, AssertTimeRemaining, AssertFrontier,
		AssertCompleted, AssertDeltaSize, AssertOperations:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
