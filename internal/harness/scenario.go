package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/husk/internal/board"
	"github.com/roach88/husk/internal/sticky"
)

// DefaultGuild is the guild of scenarios that do not name one.
const DefaultGuild = "g1"

// Scenario defines a reconciliation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Guild is the guild every message and reaction belongs to.
	Guild string `yaml:"guild,omitempty"`

	// Board overrides fields of board.DefaultConfig.
	Board board.Config `yaml:"board,omitempty"`

	// Sources are the messages the board can mirror.
	Sources []Source `yaml:"sources,omitempty"`

	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Source is a message that can be reacted to.
type Source struct {
	ID          string `yaml:"id"`
	Channel     string `yaml:"channel"`
	Author      string `yaml:"author"`
	Content     string `yaml:"content,omitempty"`
	Attachments int    `yaml:"attachments,omitempty"`

	// ReplyTo is the id of another source this one replies to.
	ReplyTo string `yaml:"reply_to,omitempty"`
}

// Step is one thing that happens in a scenario. Which fields apply
// depends on Do.
type Step struct {
	Do string `yaml:"do"`

	Message string `yaml:"message,omitempty"`
	Channel string `yaml:"channel,omitempty"`
	Count   int    `yaml:"count,omitempty"`
	User    string `yaml:"user,omitempty"`
	Emoji   string `yaml:"emoji,omitempty"`
	Text    string `yaml:"text,omitempty"`
	Bot     bool   `yaml:"bot,omitempty"`

	// fail
	Target string `yaml:"target,omitempty"`
	Op     string `yaml:"op,omitempty"`
	Times  int    `yaml:"times,omitempty"`

	// restart
	LoseCheckpoints bool `yaml:"lose_checkpoints,omitempty"`

	// Expect is the outcome the step must record, if set.
	Expect string `yaml:"expect,omitempty"`
}

// Step kinds.
const (
	DoReact         = "react"
	DoUnreact       = "unreact"
	DoClear         = "clear"
	DoDelete        = "delete"
	DoStickySet     = "sticky_set"
	DoStickyDisable = "sticky_disable"
	DoMessage       = "message"
	DoVanish        = "vanish"
	DoFail          = "fail"
	DoRestart       = "restart"
)

// Fault injection targets.
const (
	TargetTransport = "transport"
	TargetStore     = "store"
)

var (
	transportOps = []string{"create", "update", "delete", "list", "webhook", "execute"}
	storeOps     = []string{"load", "upsert", "clear"}
	outcomes     = []string{"created", "updated", "deleted", "noop", "failed", OutcomeIgnored, OutcomeOK}
)

// Assertion validates the result of a scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Outcome string `yaml:"outcome,omitempty"`
	Channel string `yaml:"channel,omitempty"`
	Domain  string `yaml:"domain,omitempty"`

	// Op is the transport call kind of transport_calls: creates, updates,
	// deletes, lists or webhooks.
	Op string `yaml:"op,omitempty"`

	Count int `yaml:"count"`
}

// Assertion type constants.
const (
	AssertOutcomeCount    = "outcome_count"
	AssertLiveCount       = "live_count"
	AssertCheckpointCount = "checkpoint_count"
	AssertTransportCalls  = "transport_calls"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document. Board settings
// not present in the document keep their defaults.
func ParseScenario(data []byte) (*Scenario, error) {
	scenario := Scenario{
		Guild: DefaultGuild,
		Board: board.DefaultConfig(),
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("invalid scenario: document is empty")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Guild == "" {
		return fmt.Errorf("guild must not be empty")
	}
	if err := s.Board.Validate(); err != nil {
		return fmt.Errorf("board: %w", err)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	sources := make(map[string]bool, len(s.Sources))
	for i, src := range s.Sources {
		if src.ID == "" || src.Channel == "" {
			return fmt.Errorf("sources[%d]: id and channel are required", i)
		}
		if sources[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		sources[src.ID] = true
	}
	for i, src := range s.Sources {
		if src.ReplyTo != "" && !sources[src.ReplyTo] {
			return fmt.Errorf("sources[%d]: reply_to %q is not a source", i, src.ReplyTo)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step, sources); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step, sources map[string]bool) error {
	switch step.Do {
	case DoReact, DoUnreact, DoClear, DoDelete:
		if !sources[step.Message] {
			return fmt.Errorf("%s: message %q is not a source", step.Do, step.Message)
		}
		if step.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative", step.Do)
		}
	case DoStickySet:
		if step.Channel == "" || step.Text == "" {
			return fmt.Errorf("%s: channel and text are required", step.Do)
		}
	case DoStickyDisable:
		if step.Channel == "" {
			return fmt.Errorf("%s: channel is required", step.Do)
		}
	case DoMessage:
		if step.Channel == "" {
			return fmt.Errorf("%s: channel is required", step.Do)
		}
		if step.Bot && step.Message == "" {
			return fmt.Errorf("%s: message is required for a bot message", step.Do)
		}
	case DoVanish:
		if step.Channel == "" || step.Message == "" {
			return fmt.Errorf("%s: channel and message are required", step.Do)
		}
	case DoFail:
		if step.Times < 0 {
			return fmt.Errorf("%s: times must be non-negative", step.Do)
		}
		switch step.Target {
		case TargetTransport:
			if !slices.Contains(transportOps, step.Op) {
				return fmt.Errorf("%s: unknown transport op %q", step.Do, step.Op)
			}
		case TargetStore:
			if !slices.Contains(storeOps, step.Op) {
				return fmt.Errorf("%s: unknown store op %q", step.Do, step.Op)
			}
		default:
			return fmt.Errorf("%s: target must be %q or %q", step.Do, TargetTransport, TargetStore)
		}
	case DoRestart:
	case "":
		return fmt.Errorf("do is required")
	default:
		return fmt.Errorf("unknown step %q", step.Do)
	}

	if step.Expect != "" && !slices.Contains(outcomes, step.Expect) {
		return fmt.Errorf("%s: unknown expected outcome %q", step.Do, step.Expect)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertOutcomeCount:
		if !slices.Contains(outcomes, a.Outcome) {
			return fmt.Errorf("assertions[%d]: unknown outcome %q for outcome_count", index, a.Outcome)
		}
	case AssertLiveCount:
		if a.Channel == "" {
			return fmt.Errorf("assertions[%d]: channel is required for live_count", index)
		}
	case AssertCheckpointCount:
		if a.Domain != board.Domain && a.Domain != sticky.Domain {
			return fmt.Errorf("assertions[%d]: unknown domain %q for checkpoint_count", index, a.Domain)
		}
	case AssertTransportCalls:
		if _, ok := statsField(a.Op); !ok {
			return fmt.Errorf("assertions[%d]: unknown op %q for transport_calls", index, a.Op)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
