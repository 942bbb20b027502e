package testutil

import "sync"

// Recorder collects listener invocations by name, in call order.
//
//	rec := testutil.NewRecorder()
//	s.Subscribe(path.Names("users"), rec.Listener("users"))
//	...
//	rec.Fired() // []string{"users"}
type Recorder struct {
	mu    sync.Mutex
	fired []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Listener returns a callback that records name each time it runs.
func (r *Recorder) Listener(name string) func() {
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.fired = append(r.fired, name)
	}
}

// Fired returns the recorded names since the last Reset.
func (r *Recorder) Fired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.fired))
	copy(out, r.fired)
	return out
}

// Count returns how many times name was recorded.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.fired {
		if f == name {
			n++
		}
	}
	return n
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = nil
}
