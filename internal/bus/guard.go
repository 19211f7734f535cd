package bus

import (
	"context"

	"github.com/roach88/fintrack/internal/ir"
)

// DefaultMaxSteps is the default maximum number of firings per flow.
const DefaultMaxSteps = 1000

type firingKey struct {
	topic      ir.Topic
	subscriber string
}

// lineage is the chain of firings that caused an execution, newest first.
// Sibling publications in one flow share a prefix but never see each
// other's firings.
type lineage struct {
	key    firingKey
	parent *lineage
}

func (l *lineage) contains(key firingKey) bool {
	for ; l != nil; l = l.parent {
		if l.key == key {
			return true
		}
	}
	return false
}

func (l *lineage) extend(key firingKey) *lineage {
	return &lineage{key: key, parent: l}
}

type lineageKey struct{}

func withLineage(ctx context.Context, l *lineage) context.Context {
	return context.WithValue(ctx, lineageKey{}, l)
}

func lineageFrom(ctx context.Context) *lineage {
	l, _ := ctx.Value(lineageKey{}).(*lineage)
	return l
}

// flowGuard counts the firings of one flow while its refreshes are in flight.
// The Bus holds its mutex while using a guard.
type flowGuard struct {
	steps int
}

// admit records a firing of subscriber via topic caused by chain. It refuses
// a pair already present in chain, which would be a refresh loop, and a
// firing past limit for the flow.
func (g *flowGuard) admit(flow string, chain *lineage, topic ir.Topic, subscriber string, limit int) error {
	if chain.contains(firingKey{topic: topic, subscriber: subscriber}) {
		return &FiringError{Err: ErrCycle, Flow: flow, Topic: topic, Subscriber: subscriber}
	}
	if g.steps >= limit {
		return &FiringError{Err: ErrQuota, Flow: flow, Topic: topic, Subscriber: subscriber, Steps: g.steps + 1, Limit: limit}
	}
	g.steps++
	return nil
}
