package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/husk/internal/model"
)

// Snapshot is the deterministic record of a scenario execution: its trace
// and final state.
type Snapshot struct {
	ScenarioName string        `json:"scenario_name"`
	Trace        []TraceEvent  `json:"trace"`
	Checkpoints  []Checkpoint  `json:"checkpoints"`
	Live         []LiveMessage `json:"live"`
}

// NewSnapshot captures result under name.
func NewSnapshot(name string, result *Result) Snapshot {
	return Snapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Checkpoints:  result.Checkpoints,
		Live:         result.Live,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON. Empty optional
// fields are omitted.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	return model.MarshalCanonical(s.canonicalMap())
}

func (s Snapshot) canonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step":    ev.Step,
			"do":      ev.Do,
			"outcome": ev.Outcome,
		}
		putString(m, "key", ev.Key)
		putString(m, "representation_id", ev.RepresentationID)
		putString(m, "previous_id", ev.PreviousID)
		putString(m, "code", ev.Code)
		if ev.Seq != 0 {
			m["seq"] = ev.Seq
		}
		trace[i] = m
	}

	checkpoints := make([]any, len(s.Checkpoints))
	for i, cp := range s.Checkpoints {
		m := map[string]any{
			"domain": cp.Domain,
			"key":    cp.Key,
		}
		putString(m, "representation_id", cp.RepresentationID)
		putString(m, "pinned_text", cp.PinnedText)
		checkpoints[i] = m
	}

	live := make([]any, len(s.Live))
	for i, msg := range s.Live {
		m := map[string]any{
			"channel": msg.Channel,
			"id":      msg.ID,
			"text":    msg.Text,
		}
		putString(m, "author", msg.Author)
		live[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"checkpoints":   checkpoints,
		"live":          live,
	}
}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against the golden file of
// scenarioName without re-running it.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
