package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fintrack/internal/ir"
)

type captured struct {
	method  string
	path    string
	query   string
	body    string
	headers http.Header
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.method = r.Method
		c.path = r.URL.Path
		c.query = r.URL.RawQuery
		c.body = string(body)
		c.headers = r.Header.Clone()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestHTTPDoSuccess(t *testing.T) {
	srv, c := newServer(t, http.StatusOK, `[{"id":"1","name":"Cash"}]`)
	tr := NewHTTP(WithBaseURL(srv.URL+"/api/v1/"), WithToken("s3cret"))

	resp, err := tr.Do(context.Background(), Request{
		Method: ir.MethodGet,
		Path:   "/accounts",
		Query:  ir.IRObject{"start_day": ir.IRInt(25), "end_day": ir.IRInt(24)},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `[{"id":"1","name":"Cash"}]`, string(resp.Body))
	assert.Equal(t, "GET", c.method)
	assert.Equal(t, "/api/v1/accounts", c.path)
	assert.Equal(t, "end_day=24&start_day=25", c.query)
	assert.Equal(t, "application/json", c.headers.Get("Content-Type"))
	assert.Equal(t, "Bearer s3cret", c.headers.Get("Authorization"))
	assert.Empty(t, c.body)
}

func TestHTTPDoEncodesBody(t *testing.T) {
	srv, c := newServer(t, http.StatusCreated, `{"id":"9"}`)
	tr := NewHTTP(WithBaseURL(srv.URL))

	body := map[string]any{"name": "Cash", "currency": "SEK", "type": "Cash", "balance": 0}
	resp, err := tr.Do(context.Background(), Request{Method: ir.MethodPost, Path: "/accounts", Body: body})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "POST", c.method)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.body), &got))
	assert.Equal(t, "Cash", got["name"])
	assert.Equal(t, "SEK", got["currency"])
}

func TestHTTPDoRawBody(t *testing.T) {
	srv, c := newServer(t, http.StatusOK, `{}`)
	tr := NewHTTP(WithBaseURL(srv.URL))

	_, err := tr.Do(context.Background(), Request{Method: ir.MethodPut, Path: "/categories/3", Body: []byte(`{"name":"Rent"}`)})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Rent"}`, c.body)
}

func TestHTTPHeaderMerge(t *testing.T) {
	srv, c := newServer(t, http.StatusOK, `{}`)
	tr := NewHTTP(WithBaseURL(srv.URL), WithHeaders(map[string]string{"X-Client": "cli"}))
	tr.SetHeaders(map[string]string{"Authorization": "Bearer new"})

	_, err := tr.Do(context.Background(), Request{
		Method:  ir.MethodGet,
		Path:    "/budget/summary",
		Headers: map[string]string{"X-Client": "override", "X-Request": "1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer new", c.headers.Get("Authorization"))
	assert.Equal(t, "override", c.headers.Get("X-Client"))
	assert.Equal(t, "1", c.headers.Get("X-Request"))

	baseline := tr.Headers()
	assert.Equal(t, "cli", baseline["X-Client"], "per-request headers must not leak into the baseline")
}

func TestHTTPDoServerError(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		status  int
		message string
	}{
		{"message field", `{"message":"server error"}`, 500, "server error"},
		{"error field", `{"error":"not found"}`, 404, "not found"},
		{"plain text", "boom", 502, "boom"},
		{"empty body", "", 503, "Service Unavailable"},
		{"json without message", `{"code":1}`, 400, "Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.status, tt.reply)
			tr := NewHTTP(WithBaseURL(srv.URL))

			resp, err := tr.Do(context.Background(), Request{Method: ir.MethodDelete, Path: "/transactions/42"})
			require.Error(t, err)
			assert.Nil(t, resp)

			assert.True(t, IsServerError(err))
			assert.Equal(t, tt.status, StatusOf(err))
			assert.Equal(t, tt.message, MessageOf(err))
		})
	}
}

func TestHTTPDoNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr := NewHTTP(WithBaseURL(url))
	_, err := tr.Do(context.Background(), Request{Method: ir.MethodGet, Path: "/accounts"})
	require.Error(t, err)

	assert.True(t, IsNetworkError(err))
	assert.Equal(t, 0, StatusOf(err))
	assert.Equal(t, NetworkErrorMessage, MessageOf(err))
}

func TestHTTPDoContextCanceled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	tr := NewHTTP(WithBaseURL(srv.URL))
	_, err := tr.Do(ctx, Request{Method: ir.MethodGet, Path: "/accounts"})
	require.Error(t, err)

	assert.True(t, IsNetworkError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewHTTPDefaults(t *testing.T) {
	tr := NewHTTP()
	assert.Equal(t, DefaultBaseURL, tr.BaseURL())
	assert.Equal(t, map[string]string{"Content-Type": "application/json"}, tr.Headers())
}

func TestFuncAdapter(t *testing.T) {
	var got Request
	var tr Transport = Func(func(_ context.Context, req Request) (*Response, error) {
		got = req
		return &Response{Status: 204}, nil
	})

	resp, err := tr.Do(context.Background(), Request{Method: ir.MethodPost, Path: "/reset"})
	require.NoError(t, err)
	assert.Equal(t, 204, resp.Status)
	assert.Equal(t, "/reset", got.Path)
}
