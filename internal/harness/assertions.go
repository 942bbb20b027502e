package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes the notification trace to help debug the failure.
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

	fmt.Fprintf(&buf, "\nNotifications:\n")
	for _, event := range e.Trace {
		if event.Type == EventNotify {
			fmt.Fprintf(&buf, "  [step %d, rev %d] %s (%s <- %s)\n",
				event.Step, event.Revision, event.Subscriber, event.Path, event.Change)
		}
	}

	return buf.String()
}

// assertTraceContains checks that the subscriber was notified, for the
// given change-path if one is set.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	want := ""
	if assertion.Change != "" {
		want = path.MustParse(assertion.Change).String()
	}

	for _, event := range trace {
		if event.Type != EventNotify || event.Subscriber != assertion.Subscriber {
			continue
		}
		if want == "" || event.Change == want {
			return nil
		}
	}

	expected := "notification of " + assertion.Subscriber
	if want != "" {
		expected += " for change " + want
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that subscribers were first notified in the
// given order. Other notifications may come in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type == EventNotify && positions[event.Subscriber] == 0 {
			positions[event.Subscriber] = i + 1 // 1-indexed for readability
		}
	}

	for _, sub := range assertion.Subscribers {
		if positions[sub] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all subscribers notified: %v", assertion.Subscribers),
				Actual:   fmt.Sprintf("never notified: %s", sub),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Subscribers); i++ {
		prev := assertion.Subscribers[i-1]
		curr := assertion.Subscribers[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("subscribers in order: %v", assertion.Subscribers),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks the subscriber was notified exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventNotify && event.Subscriber == assertion.Subscriber {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d notifications of %s", assertion.Count, assertion.Subscriber),
			Actual:   fmt.Sprintf("%d notifications", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the value at a path of the final snapshot.
func assertFinalState(result *Result, assertion Assertion) error {
	p := path.MustParse(assertion.Path)
	actual := value.Lookup(result.State, p)

	if assertion.Absent {
		if actual == nil {
			return nil
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("nothing at %s", p),
			Actual:   describe(actual),
			Trace:    result.Trace,
		}
	}

	expected, err := value.FromGo(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state %s: expect: %w", p, err)
	}
	if !value.Equal(expected, actual) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", p, describe(expected)),
			Actual:   describe(actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertRevision(result *Result, assertion Assertion) error {
	if result.Revision != int64(assertion.Count) {
		return &AssertionError{
			Type:     AssertRevision,
			Expected: fmt.Sprintf("revision %d", assertion.Count),
			Actual:   fmt.Sprintf("revision %d", result.Revision),
			Trace:    result.Trace,
		}
	}
	return nil
}

func describe(v value.Value) string {
	if v == nil {
		return "absent"
	}
	data, err := value.Marshal(v)
	if err != nil {
		return value.Kind(v)
	}
	return string(data)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertRevision:
			err = assertRevision(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
