package testutil

import (
	"fmt"
	"sync"
)

// SequentialTokens generates update ids "<prefix>-1", "<prefix>-2", ...
//
// It satisfies store.TokenGenerator. Unlike store.FixedGenerator it never
// runs out, which suits scenarios whose update count is not known up
// front. Golden traces stay byte-identical across runs.
type SequentialTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTokens creates a generator. An empty prefix means "u".
func NewSequentialTokens(prefix string) *SequentialTokens {
	if prefix == "" {
		prefix = "u"
	}
	return &SequentialTokens{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
