package harness

// Outcomes recorded for steps that do not reach an engine.
const (
	OutcomeIgnored = "ignored"
	OutcomeOK      = "ok"
)

// TraceEvent records what one scenario step did.
type TraceEvent struct {
	Step int    `json:"step"`
	Do   string `json:"do"`
	Key  string `json:"key,omitempty"`
	Seq  int64  `json:"seq,omitempty"`

	// Outcome is an engine outcome name, OutcomeIgnored or OutcomeOK.
	Outcome          string `json:"outcome"`
	RepresentationID string `json:"representation_id,omitempty"`
	PreviousID       string `json:"previous_id,omitempty"`

	// Code is the error code of a failed cycle.
	Code string `json:"code,omitempty"`
}

// Checkpoint is one stored checkpoint in a final state snapshot.
type Checkpoint struct {
	Domain           string `json:"domain"`
	Key              string `json:"key"`
	RepresentationID string `json:"representation_id,omitempty"`
	PinnedText       string `json:"pinned_text,omitempty"`
}

// LiveMessage is one representation present on the transport at the end
// of a scenario.
type LiveMessage struct {
	Channel string `json:"channel"`
	ID      string `json:"id"`
	Author  string `json:"author,omitempty"`
	Text    string `json:"text"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors holds failed expectations and assertions. Empty if Pass.
	Errors []string `json:"errors,omitempty"`

	// Final state, ordered by domain and key, and by channel then age.
	Checkpoints []Checkpoint  `json:"checkpoints"`
	Live        []LiveMessage `json:"live"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Errors:      []string{},
		Checkpoints: []Checkpoint{},
		Live:        []LiveMessage{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// CountOutcome returns the number of trace events with outcome.
func (r *Result) CountOutcome(outcome string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Outcome == outcome {
			n++
		}
	}
	return n
}
