package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/transport"
)

func TestFakeTransport_ScriptedReplies(t *testing.T) {
	f := NewFakeTransport().
		On(ir.MethodGet, "/accounts", OK(`[]`), OK(`[{"id":"1"}]`))

	ctx := context.Background()
	r1, err := f.Do(ctx, transport.Request{Method: ir.MethodGet, Path: "/accounts"})
	require.NoError(t, err)
	r2, err := f.Do(ctx, transport.Request{Method: ir.MethodGet, Path: "/accounts"})
	require.NoError(t, err)
	r3, err := f.Do(ctx, transport.Request{Method: ir.MethodGet, Path: "/accounts"})
	require.NoError(t, err)

	assert.Equal(t, `[]`, string(r1.Body))
	assert.Equal(t, `[{"id":"1"}]`, string(r2.Body))
	assert.Equal(t, `[{"id":"1"}]`, string(r3.Body), "last reply repeats")
	assert.Equal(t, 3, f.CallsTo(ir.MethodGet, "/accounts"))
}

func TestFakeTransport_Failures(t *testing.T) {
	sentinel := errors.New("boom")
	f := NewFakeTransport().
		On(ir.MethodDelete, "/transactions/42", Fail(500, "server error")).
		On(ir.MethodGet, "/down", NetworkDown()).
		On(ir.MethodGet, "/err", Reply{Err: sentinel})

	ctx := context.Background()

	_, err := f.Do(ctx, transport.Request{Method: ir.MethodDelete, Path: "/transactions/42"})
	assert.Equal(t, 500, transport.StatusOf(err))
	assert.Equal(t, "server error", transport.MessageOf(err))

	_, err = f.Do(ctx, transport.Request{Method: ir.MethodGet, Path: "/down"})
	assert.True(t, transport.IsNetworkError(err))

	_, err = f.Do(ctx, transport.Request{Method: ir.MethodGet, Path: "/err"})
	assert.ErrorIs(t, err, sentinel)

	_, err = f.Do(ctx, transport.Request{Method: ir.MethodGet, Path: "/unknown"})
	assert.Equal(t, 404, transport.StatusOf(err))
}

func TestFakeTransport_Gate(t *testing.T) {
	reply, gate := Gated(OK(`{}`))
	f := NewFakeTransport().On(ir.MethodGet, "/budget/summary", reply)

	done := make(chan error, 1)
	go func() {
		_, err := f.Do(context.Background(), transport.Request{Method: ir.MethodGet, Path: "/budget/summary"})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("gated call returned before the gate opened")
	case <-time.After(20 * time.Millisecond):
	}

	close(gate)
	require.NoError(t, <-done)
}

func TestFakeTransport_GateHonoursContext(t *testing.T) {
	reply, _ := Gated(OK(`{}`))
	f := NewFakeTransport().On(ir.MethodGet, "/accounts", reply)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Do(ctx, transport.Request{Method: ir.MethodGet, Path: "/accounts"})
	assert.True(t, transport.IsNetworkError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatCall(t *testing.T) {
	req := transport.Request{
		Method:  ir.MethodPost,
		Path:    "/accounts",
		Query:   ir.IRObject{"b": ir.IRInt(2), "a": ir.IRInt(1)},
		Body:    map[string]any{"name": "Cash", "balance": 0},
		Headers: map[string]string{"X-Trace": "1"},
	}
	assert.Equal(t, `POST /accounts?a=1&b=2 {"balance":0,"name":"Cash"} [X-Trace: 1]`, FormatCall(req))
	assert.Equal(t, "GET /accounts", FormatCall(transport.Request{Method: ir.MethodGet, Path: "/accounts"}))
}

func TestFakeTransport_Drain(t *testing.T) {
	f := NewFakeTransport().On(ir.MethodGet, "/accounts", OK(`[]`))
	_, _ = f.Do(context.Background(), transport.Request{Method: ir.MethodGet, Path: "/accounts"})

	assert.Len(t, f.Drain(), 1)
	assert.Empty(t, f.Calls())
}
