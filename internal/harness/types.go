package harness

// TraceEvent records one executed step, or a level outcome reported by
// the session runner while a step ran.
//
// Game steps fill the session fields; sync steps fill the sync fields.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Step string `json:"step"`

	Level         int    `json:"level,omitempty"`
	Status        string `json:"status,omitempty"`
	Moves         int    `json:"moves,omitempty"`
	MatchedPairs  int    `json:"matched,omitempty"`
	TimeRemaining int    `json:"time,omitempty"`
	Stars         int    `json:"stars,omitempty"`

	Remote     string `json:"remote,omitempty"`
	Delta      int    `json:"delta,omitempty"`
	Written    int    `json:"written,omitempty"`
	Frontier   int    `json:"frontier,omitempty"`
	TotalStars int    `json:"total_stars,omitempty"`
	Error      string `json:"error,omitempty"`

	Mode string `json:"mode,omitempty"`
}

// Trace event kinds that are not scenario steps.
const (
	EventOutcome = "outcome"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step ran as expected and every assertion held.
	Pass bool `json:"pass"`

	// Trace lists executed steps and outcomes in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addEvent appends ev to the trace.
func (r *Result) addEvent(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// canonical returns ev as a map for canonical JSON, leaving out unset
// fields other than seq and step.
func (ev TraceEvent) canonical() map[string]any {
	m := map[string]any{
		"seq":  ev.Seq,
		"step": ev.Step,
	}
	ints := map[string]int{
		"level":       ev.Level,
		"moves":       ev.Moves,
		"matched":     ev.MatchedPairs,
		"time":        ev.TimeRemaining,
		"stars":       ev.Stars,
		"delta":       ev.Delta,
		"written":     ev.Written,
		"frontier":    ev.Frontier,
		"total_stars": ev.TotalStars,
	}
	for k, v := range ints {
		if v != 0 {
			m[k] = v
		}
	}
	strs := map[string]string{
		"status": ev.Status,
		"remote": ev.Remote,
		"error":  ev.Error,
		"mode":   ev.Mode,
	}
	for k, v := range strs {
		if v != "" {
			m[k] = v
		}
	}
	return m
}
