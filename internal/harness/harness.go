package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/substate/internal/draft"
	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/schema"
	"github.com/roach88/substate/internal/store"
	"github.com/roach88/substate/internal/testutil"
	"github.com/roach88/substate/internal/value"
)

// Harness executes one scenario against a fresh store.
type Harness struct {
	store  *store.Store
	clock  *testutil.RevisionClock
	tokens *testutil.SequentialTokens
	logger *slog.Logger
	result *Result
	step   int
	unsubs map[string]func()
}

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	tracer store.Tracer
	logger *slog.Logger
	prefix string
}

// WithTracer also reports the run's updates and notifications to t, e.g. a
// tracedb.Recorder.
func WithTracer(t store.Tracer) RunOption {
	return func(c *runConfig) {
		c.tracer = t
	}
}

// WithUpdatePrefix sets the prefix of update ids ("u" gives u-1, u-2, ...).
// Runs recorded into one trace database need distinct prefixes.
func WithUpdatePrefix(prefix string) RunOption {
	return func(c *runConfig) {
		c.prefix = prefix
	}
}

// WithLogger sets the store's logger. Default: discard.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a new store with deterministic update ids and
// revisions. A returned error means the scenario could not run at all
// (bad initial state, unloadable schema); failed expectations are reported
// in Result.Errors instead.
//
// Execution flow:
// 1. Build the initial state and the store
// 2. Register subscribers
// 3. Execute steps, checking each step's expect clause
// 4. Evaluate assertions against the trace and final state
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		prefix: "u",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	initial, err := value.FromGo(scenario.Initial)
	if err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}

	h := &Harness{
		clock:  testutil.NewRevisionClock(0),
		tokens: testutil.NewSequentialTokens(cfg.prefix),
		logger: cfg.logger,
		result: NewResult(),
		unsubs: make(map[string]func()),
	}

	var tracer store.Tracer = h
	if cfg.tracer != nil {
		tracer = tracers{h, cfg.tracer}
	}

	storeOpts := []store.Option{
		store.WithLogger(cfg.logger),
		store.WithClock(h.clock),
		store.WithTokenGenerator(h.tokens),
		store.WithTracer(tracer),
		store.WithDeferredErrorHandler(h.deferredFailed),
	}
	if scenario.Schema != "" {
		sch, err := schema.Load(scenario.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
		if err := sch.Validate(initial); err != nil {
			return nil, fmt.Errorf("initial state: %w", err)
		}
		storeOpts = append(storeOpts, store.WithValidator(sch))
	}
	if scenario.Pruning {
		storeOpts = append(storeOpts, store.WithPruning())
	}
	h.store = store.New(initial, storeOpts...)

	for _, sub := range scenario.Subscribers {
		h.subscribe(sub)
	}

	for i, step := range scenario.Steps {
		h.step = i + 1
		h.executeStep(step)
	}

	h.result.State = h.store.GetState()
	h.result.Revision = h.store.Revision()

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

func (h *Harness) executeStep(step Step) {
	var updateErr error

	switch {
	case len(step.Update) > 0:
		updateErr = h.store.Update(buildRecipe(step.Update, step.Fail))
		if updateErr != nil {
			h.emit(TraceEvent{Type: EventError, Code: errorCode(updateErr)})
		}
	case step.Subscribe != nil:
		h.subscribe(*step.Subscribe)
		h.emit(TraceEvent{
			Type:       EventSubscribe,
			Subscriber: step.Subscribe.Name,
			Path:       path.MustParse(step.Subscribe.Path).String(),
		})
	default:
		if unsub, ok := h.unsubs[step.Unsubscribe]; ok {
			unsub()
		}
		h.emit(TraceEvent{Type: EventUnsubscribe, Subscriber: step.Unsubscribe})
	}

	h.checkStep(step.Expect, updateErr)
}

func (h *Harness) checkStep(expect *StepExpect, updateErr error) {
	var wantCode string
	if expect != nil {
		wantCode = expect.Error
	}

	switch {
	case updateErr != nil && wantCode == "":
		h.result.AddError(fmt.Sprintf("step %d: unexpected error: %v", h.step, updateErr))
	case updateErr == nil && wantCode != "":
		h.result.AddError(fmt.Sprintf("step %d: expected error %s, update succeeded", h.step, wantCode))
	case updateErr != nil && errorCode(updateErr) != wantCode:
		h.result.AddError(fmt.Sprintf("step %d: error = %s, want %s", h.step, errorCode(updateErr), wantCode))
	}

	if expect == nil {
		return
	}

	if expect.Fired != nil {
		if got := h.result.Notified(h.step); !slices.Equal(got, expect.Fired) {
			h.result.AddError(fmt.Sprintf("step %d: fired = %v, want %v", h.step, got, expect.Fired))
		}
	}

	if expect.Changes != nil {
		want := make([]string, len(expect.Changes))
		for i, c := range expect.Changes {
			want[i] = path.MustParse(c).String()
		}
		if got := h.stepChanges(); !slices.Equal(got, want) {
			h.result.AddError(fmt.Sprintf("step %d: changes = %v, want %v", h.step, got, want))
		}
	}
}

// stepChanges returns the change-paths of the first update committed in
// the current step.
func (h *Harness) stepChanges() []string {
	for _, e := range h.result.Trace {
		if e.Type == EventUpdate && e.Step == h.step {
			return e.Changes
		}
	}
	return []string{}
}

func (h *Harness) subscribe(sub Subscriber) {
	p := path.MustParse(sub.Path)
	var then draft.Recipe
	if len(sub.Then) > 0 {
		then = buildRecipe(sub.Then, "")
	}

	h.unsubs[sub.Name] = h.store.Subscribe(p, func() {
		h.emit(TraceEvent{Type: EventNotify, Subscriber: sub.Name, Path: p.String()})
		if then != nil {
			// Deferred by the store; errors reach deferredFailed.
			_ = h.store.Update(then)
		}
	})
}

func (h *Harness) emit(e TraceEvent) {
	e.Step = h.step
	h.result.Trace = append(h.result.Trace, e)
}

// UpdateCommitted implements store.Tracer.
func (h *Harness) UpdateCommitted(rec store.UpdateRecord) {
	changes := make([]string, len(rec.Changes))
	for i, c := range rec.Changes {
		changes[i] = c.String()
	}
	h.emit(TraceEvent{
		Type:     EventUpdate,
		Revision: rec.Revision,
		UpdateID: rec.ID,
		Changes:  changes,
	})
}

// ListenerNotified implements store.Tracer. The store reports a
// notification right after the listener returns, so the matching notify
// event is the last one without an update id.
func (h *Harness) ListenerNotified(rec store.NotifyRecord) {
	for i := len(h.result.Trace) - 1; i >= 0; i-- {
		e := &h.result.Trace[i]
		if e.Type != EventNotify || e.UpdateID != "" {
			continue
		}
		e.Revision = rec.Revision
		e.UpdateID = rec.UpdateID
		e.Change = rec.Change.String()
		return
	}
}

func (h *Harness) deferredFailed(err error) {
	h.emit(TraceEvent{Type: EventDeferredError, Code: errorCode(err)})
}

// buildRecipe turns ops into one recipe. fail, if set, aborts the recipe
// after the ops ran.
func buildRecipe(ops []Op, fail string) draft.Recipe {
	return func(d *draft.Draft) (value.Value, error) {
		for i, op := range ops {
			if err := applyOp(d, op); err != nil {
				return nil, fmt.Errorf("op %d (%s %s): %w", i, op.Op, op.Path, err)
			}
		}
		if fail != "" {
			return nil, errors.New(fail)
		}
		return nil, nil
	}
}

func applyOp(d *draft.Draft, op Op) error {
	p, err := path.Parse(op.Path)
	if err != nil {
		return err
	}
	if op.Op == OpDelete {
		return d.Delete(p)
	}

	v, err := value.FromGo(op.Value)
	if err != nil {
		return err
	}
	switch op.Op {
	case OpSet:
		return d.Set(p, v)
	case OpAppend:
		return d.Append(p, v)
	case OpReplace:
		return d.At(p).Replace(v)
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

func errorCode(err error) string {
	var ue *store.UpdateError
	if errors.As(err, &ue) {
		return string(ue.Code)
	}
	return "UNKNOWN"
}

// tracers fans tracer calls out in order.
type tracers []store.Tracer

func (ts tracers) UpdateCommitted(rec store.UpdateRecord) {
	for _, t := range ts {
		t.UpdateCommitted(rec)
	}
}

func (ts tracers) ListenerNotified(rec store.NotifyRecord) {
	for _, t := range ts {
		t.ListenerNotified(rec)
	}
}
