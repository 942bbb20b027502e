package harness

import "github.com/roach88/substate/internal/value"

// Trace event types.
const (
	EventUpdate        = "update"
	EventNotify        = "notify"
	EventError         = "error"
	EventDeferredError = "deferred_error"
	EventSubscribe     = "subscribe"
	EventUnsubscribe   = "unsubscribe"
)

// TraceEvent is one entry of a scenario trace. Which fields are set depends
// on Type.
type TraceEvent struct {
	Type       string   `json:"type"`
	Step       int      `json:"step"` // 1-based
	Revision   int64    `json:"revision,omitempty"`
	UpdateID   string   `json:"update_id,omitempty"`
	Changes    []string `json:"changes,omitempty"`
	Subscriber string   `json:"subscriber,omitempty"`
	Path       string   `json:"path,omitempty"`
	Change     string   `json:"change,omitempty"`
	Code       string   `json:"code,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds updates, notifications, and errors in the order they
	// happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final snapshot.
	State value.Value `json:"state"`

	// Revision is the final store revision.
	Revision int64 `json:"revision"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Notified returns the subscriber names notified in the given step, in
// order.
func (r *Result) Notified(step int) []string {
	out := []string{}
	for _, e := range r.Trace {
		if e.Type == EventNotify && e.Step == step {
			out = append(out, e.Subscriber)
		}
	}
	return out
}
