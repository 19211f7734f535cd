package bus

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fintrack/internal/ir"
)

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a := gen.Generate()
	b := gen.Generate()

	assert.NotEqual(t, a, b)
	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	assert.Equal(t, int64(11), NewClockAt(10).Next())
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	_, ok := FlowFrom(ctx)
	assert.False(t, ok)
	assert.True(t, CauseFrom(ctx).IsZero())

	_, ok = FlowFrom(WithFlow(ctx, ""))
	assert.False(t, ok, "empty token counts as absent")

	cause := ir.Cause{Source: "CreateTransfer", Topic: "transfers"}
	ctx = WithCause(WithFlow(ctx, "flow-9"), cause)

	flow, ok := FlowFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, "flow-9", flow)
	assert.Equal(t, cause, CauseFrom(ctx))
}
