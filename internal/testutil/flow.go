package testutil

import (
	"fmt"
	"sync"
)

// FixedFlow is a flow generator that always returns itself, so every
// execution of a scenario shares one token and traces are reproducible.
type FixedFlow string

// Generate implements bus.FlowGenerator.
func (f FixedFlow) Generate() string {
	return string(f)
}

// FlowSequence returns a flow generator that hands out tokens in order and
// fails the test loudly, by panicking, once they run out.
func FlowSequence(tokens ...string) *Sequence {
	return &Sequence{tokens: tokens}
}

// Sequence is the generator returned by FlowSequence.
type Sequence struct {
	mu     sync.Mutex
	tokens []string
	next   int
}

// Generate implements bus.FlowGenerator.
func (s *Sequence) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next == len(s.tokens) {
		panic(fmt.Sprintf("testutil: flow sequence exhausted after %d tokens", len(s.tokens)))
	}
	s.next++
	return s.tokens[s.next-1]
}
