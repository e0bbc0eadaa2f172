package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/husk/internal/store"
	"github.com/roach88/husk/internal/transport"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
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
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", ev.Step, ev.Do, ev.Key, ev.Outcome)
		}
	}
	return buf.String()
}

// AssertionContext gives assertions access to the scenario's collaborators.
type AssertionContext struct {
	Transport *transport.Memory
	Store     *store.Memory
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertOutcomeCount:
		return assertCount(a, fmt.Sprintf("%d steps with outcome %s", a.Count, a.Outcome),
			result.CountOutcome(a.Outcome), result.Trace)

	case AssertLiveCount:
		n := 0
		for _, msg := range result.Live {
			if msg.Channel == a.Channel {
				n++
			}
		}
		return assertCount(a, fmt.Sprintf("%d live messages in %s", a.Count, a.Channel), n, nil)

	case AssertCheckpointCount:
		return assertCount(a, fmt.Sprintf("%d %s checkpoints", a.Count, a.Domain),
			actx.Store.Len(a.Domain), nil)

	case AssertTransportCalls:
		field, ok := statsField(a.Op)
		if !ok {
			return fmt.Errorf("unknown transport op %q", a.Op)
		}
		return assertCount(a, fmt.Sprintf("%d transport %s", a.Count, a.Op),
			field(actx.Transport.Stats()), nil)

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertCount(a Assertion, expected string, actual int, trace []TraceEvent) error {
	if actual == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   fmt.Sprintf("%d", actual),
		Trace:    trace,
	}
}

// statsField maps a transport_calls op to its counter.
func statsField(op string) (func(transport.Stats) int, bool) {
	switch op {
	case "creates":
		return func(s transport.Stats) int { return s.Creates }, true
	case "updates":
		return func(s transport.Stats) int { return s.Updates }, true
	case "deletes":
		return func(s transport.Stats) int { return s.Deletes }, true
	case "lists":
		return func(s transport.Stats) int { return s.Lists }, true
	case "webhooks":
		return func(s transport.Stats) int { return s.Webhooks }, true
	default:
		return nil, false
	}
}
