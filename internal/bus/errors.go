package bus

import (
	"errors"
	"fmt"

	"github.com/roach88/fintrack/internal/ir"
)

var (
	// ErrCycle means a refresh would trigger itself through its own causes.
	ErrCycle = errors.New("invalidation cycle")

	// ErrQuota means a flow exceeded its firing quota.
	ErrQuota = errors.New("firing quota exceeded")
)

// FiringError is an invalidation the bus refused to fire. It is logged,
// never returned to the store that published.
type FiringError struct {
	Err        error // ErrCycle or ErrQuota
	Flow       string
	Topic      ir.Topic
	Subscriber string
	Steps      int // quota only
	Limit      int // quota only
}

func (e *FiringError) Error() string {
	if errors.Is(e.Err, ErrQuota) {
		return fmt.Sprintf("%v: flow %s reached %d of %d firings at %s -> %s",
			e.Err, e.Flow, e.Steps, e.Limit, e.Topic, e.Subscriber)
	}
	return fmt.Sprintf("%v: flow %s: %s via %s is already in its cause chain", e.Err, e.Flow, e.Subscriber, e.Topic)
}

func (e *FiringError) Unwrap() error {
	return e.Err
}
