package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/substate/internal/value"
)

// TraceSnapshot captures the complete trace of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Digest       string       `json:"digest"` // value.Digest of the final state
}

// toCanonicalMap converts a TraceSnapshot to plain data for canonical JSON.
// Empty fields are left out, matching the json tags.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type": event.Type,
			"step": event.Step,
		}
		if event.Revision != 0 {
			eventMap["revision"] = event.Revision
		}
		if event.UpdateID != "" {
			eventMap["update_id"] = event.UpdateID
		}
		if event.Changes != nil {
			changes := make([]any, len(event.Changes))
			for j, c := range event.Changes {
				changes[j] = c
			}
			eventMap["changes"] = changes
		}
		if event.Subscriber != "" {
			eventMap["subscriber"] = event.Subscriber
		}
		if event.Path != "" {
			eventMap["path"] = event.Path
		}
		if event.Change != "" {
			eventMap["change"] = event.Change
		}
		if event.Code != "" {
			eventMap["code"] = event.Code
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"digest":        s.Digest,
	}
}

// MarshalTrace renders a result's trace as canonical JSON (RFC 8785).
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	state := result.State
	if state == nil {
		state = value.Null{}
	}
	digest, err := value.Digest(state)
	if err != nil {
		return nil, err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Digest:       digest,
	}
	canonical, err := value.FromGo(snapshot.toCanonicalMap())
	if err != nil {
		return nil, err
	}
	return value.MarshalCanonical(canonical)
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
