package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/state"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	require.NotNil(t, m.Counter)
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	require.NotNil(t, m.Gauge)
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	require.True(t, ok, "observer %T does not implement prometheus.Metric", o)
	var m dto.Metric
	require.NoError(t, metric.Write(&m))
	require.NotNil(t, m.Histogram)
	return m.GetHistogram().GetSampleCount()
}

func TestCollector_ExecutionLifecycle(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))
	ctx := context.Background()

	c.Observe(ctx, state.Event{Kind: state.EventStarted, Store: "GetAccounts"})
	assert.Equal(t, 1.0, gaugeValue(t, c.inFlight.WithLabelValues("GetAccounts")))

	c.Observe(ctx, state.Event{Kind: state.EventSucceeded, Store: "GetAccounts", Duration: 20 * time.Millisecond})
	assert.Equal(t, 0.0, gaugeValue(t, c.inFlight.WithLabelValues("GetAccounts")))
	assert.Equal(t, 1.0, counterValue(t, c.executions.WithLabelValues("GetAccounts", "success")))
	assert.Equal(t, uint64(1), histogramCount(t, c.duration.WithLabelValues("GetAccounts")))
}

func TestCollector_SkipsDoNotTouchInFlight(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))
	ctx := context.Background()

	c.Observe(ctx, state.Event{Kind: state.EventSkipped, Store: "GetAccounts"})
	c.Observe(ctx, state.Event{Kind: state.EventSkipped, Store: "GetAccounts"})

	assert.Equal(t, 2.0, counterValue(t, c.executions.WithLabelValues("GetAccounts", "skipped")))
	assert.Equal(t, 0.0, gaugeValue(t, c.inFlight.WithLabelValues("GetAccounts")))
	assert.Equal(t, uint64(0), histogramCount(t, c.duration.WithLabelValues("GetAccounts")))
}

func TestCollector_FailuresAndDrops(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))
	ctx := context.Background()

	for _, kind := range []state.EventKind{state.EventStarted, state.EventFailed, state.EventStarted, state.EventDropped} {
		c.Observe(ctx, state.Event{Kind: kind, Store: "CreateAccount"})
	}

	assert.Equal(t, 1.0, counterValue(t, c.executions.WithLabelValues("CreateAccount", "error")))
	assert.Equal(t, 1.0, counterValue(t, c.executions.WithLabelValues("CreateAccount", "dropped")))
	assert.Equal(t, 0.0, gaugeValue(t, c.inFlight.WithLabelValues("CreateAccount")))
}

func TestCollector_Fired(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))

	c.Fired(context.Background(), bus.Firing{
		Cause:      ir.Cause{Source: "CreateAccount", Topic: "accounts"},
		Subscriber: "GetAccounts",
	})
	c.Fired(context.Background(), bus.Firing{
		Cause:      ir.Cause{Source: "CreateAccount", Topic: "accounts"},
		Subscriber: "GetAccountsSummary",
	})

	assert.Equal(t, 2.0, counterValue(t, c.invalidations.WithLabelValues("CreateAccount", "accounts")))
}

func TestCollector_Namespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithRegistry(reg), WithNamespace("budget"), WithBuckets([]float64{0.1, 1}))
	c.Observe(context.Background(), state.Event{Kind: state.EventSkipped, Store: "GetAccounts"})

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "budget_executions_total")
}

func TestCollector_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(WithRegistry(reg))
	assert.Panics(t, func() { New(WithRegistry(reg)) })
}
