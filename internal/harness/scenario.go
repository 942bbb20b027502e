package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/substate/internal/path"
)

// Scenario is a conformance scenario: an initial state, a set of
// subscribers, and steps that update the store.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an optional CUE schema file. Relative paths are resolved
	// against the scenario file's directory by LoadScenario.
	Schema string `yaml:"schema,omitempty"`

	// Pruning enables subscription-node pruning in the store.
	Pruning bool `yaml:"pruning,omitempty"`

	// Initial is the starting state.
	Initial any `yaml:"initial"`

	// Subscribers are registered, in order, before the first step.
	Subscribers []Subscriber `yaml:"subscribers"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state after all steps.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Subscriber is a named listener at a path.
type Subscriber struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`

	// Then schedules an update with these ops every time the subscriber
	// fires. The store defers it until the current notification phase ends.
	Then []Op `yaml:"then,omitempty"`
}

// Step is one scenario step. Exactly one of Update, Subscribe, and
// Unsubscribe is set.
type Step struct {
	// Update ops run as a single recipe.
	Update []Op `yaml:"update,omitempty"`

	// Fail makes the update's recipe return an error with this message
	// after its ops ran.
	Fail string `yaml:"fail,omitempty"`

	// Subscribe registers another subscriber.
	Subscribe *Subscriber `yaml:"subscribe,omitempty"`

	// Unsubscribe removes a subscriber by name.
	Unsubscribe string `yaml:"unsubscribe,omitempty"`

	// Expect checks the step's outcome.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// Op is one draft operation.
type Op struct {
	Op    string `yaml:"op"`
	Path  string `yaml:"path"`
	Value any    `yaml:"value,omitempty"`
}

// Op kinds.
const (
	OpSet     = "set"
	OpDelete  = "delete"
	OpAppend  = "append"
	OpReplace = "replace"
)

// StepExpect lists what a step must produce. Unset fields are not checked.
type StepExpect struct {
	// Fired is the exact ordered list of subscriber names notified during
	// the step, deferred updates included. Use [] for "nobody".
	Fired []string `yaml:"fired"`

	// Changes is the exact list of change-paths of the step's update.
	Changes []string `yaml:"changes"`

	// Error is the expected update error code, e.g. MUTATOR_FAILED.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Subscriber names the subscriber (trace_contains, trace_count).
	Subscriber string `yaml:"subscriber,omitempty"`

	// Change optionally narrows trace_contains to one change-path.
	Change string `yaml:"change,omitempty"`

	// Subscribers is the expected first-notification order (trace_order).
	Subscribers []string `yaml:"subscribers,omitempty"`

	// Count is the expected number (trace_count, revision).
	Count int `yaml:"count,omitempty"`

	// Path addresses the value to check (final_state).
	Path string `yaml:"path,omitempty"`

	// Expect is the expected value (final_state).
	Expect any `yaml:"expect,omitempty"`

	// Absent expects nothing at Path (final_state).
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRevision      = "revision"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(file string) (*Scenario, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(file), scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); err != nil {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.Schema)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML. Schema paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := make(map[string]bool)
	addSubscriber := func(where string, sub Subscriber) error {
		if sub.Name == "" {
			return fmt.Errorf("%s: name is required", where)
		}
		if names[sub.Name] {
			return fmt.Errorf("%s: duplicate subscriber %q", where, sub.Name)
		}
		names[sub.Name] = true
		if _, err := path.Parse(sub.Path); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		return validateOps(where+".then", sub.Then)
	}

	for i, sub := range s.Subscribers {
		if err := addSubscriber(fmt.Sprintf("subscribers[%d]", i), sub); err != nil {
			return err
		}
	}

	for i, step := range s.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		kinds := 0
		if len(step.Update) > 0 {
			kinds++
		}
		if step.Subscribe != nil {
			kinds++
		}
		if step.Unsubscribe != "" {
			kinds++
		}
		if kinds != 1 {
			return fmt.Errorf("%s: exactly one of update, subscribe, unsubscribe is required", where)
		}
		if step.Fail != "" && len(step.Update) == 0 {
			return fmt.Errorf("%s: fail requires update", where)
		}

		switch {
		case len(step.Update) > 0:
			if err := validateOps(where+".update", step.Update); err != nil {
				return err
			}
		case step.Subscribe != nil:
			if err := addSubscriber(where+".subscribe", *step.Subscribe); err != nil {
				return err
			}
		default:
			if !names[step.Unsubscribe] {
				return fmt.Errorf("%s: unknown subscriber %q", where, step.Unsubscribe)
			}
		}

		if step.Expect != nil {
			for _, name := range step.Expect.Fired {
				if !names[name] {
					return fmt.Errorf("%s.expect.fired: unknown subscriber %q", where, name)
				}
			}
			for _, c := range step.Expect.Changes {
				if _, err := path.Parse(c); err != nil {
					return fmt.Errorf("%s.expect.changes: %w", where, err)
				}
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, names); err != nil {
			return err
		}
	}

	return nil
}

func validateOps(where string, ops []Op) error {
	for i, op := range ops {
		p, err := path.Parse(op.Path)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", where, i, err)
		}
		switch op.Op {
		case OpSet, OpAppend, OpReplace:
		case OpDelete:
			if p.IsRoot() {
				return fmt.Errorf("%s[%d]: cannot delete the root", where, i)
			}
		default:
			return fmt.Errorf("%s[%d]: unknown op %q", where, i, op.Op)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, names map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains, AssertTraceCount:
		if a.Subscriber == "" {
			return fmt.Errorf("assertions[%d]: subscriber is required for %s", index, a.Type)
		}
		if !names[a.Subscriber] {
			return fmt.Errorf("assertions[%d]: unknown subscriber %q", index, a.Subscriber)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceOrder:
		if len(a.Subscribers) == 0 {
			return fmt.Errorf("assertions[%d]: subscribers list is required for trace_order", index)
		}
	case AssertFinalState:
		if _, err := path.Parse(a.Path); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Expect == nil && !a.Absent {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	case AssertRevision:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
