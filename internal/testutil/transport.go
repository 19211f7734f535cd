package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/transport"
)

// Reply is one scripted transport outcome.
type Reply struct {
	Status  int           // 0 means 200
	Body    string        // raw response body
	Err     error         // returned as-is when set
	Network bool          // fail with a network error
	Gate    chan struct{} // when set, the call blocks until the gate closes
}

// JSON returns a reply with the given status and body.
func JSON(status int, body string) Reply {
	return Reply{Status: status, Body: body}
}

// OK returns a 200 reply with body.
func OK(body string) Reply {
	return Reply{Status: http.StatusOK, Body: body}
}

// Fail returns a server error reply whose JSON body carries message.
func Fail(status int, message string) Reply {
	body, _ := json.Marshal(map[string]string{"message": message})
	return Reply{Status: status, Body: string(body)}
}

// NetworkDown returns a reply that fails without a response.
func NetworkDown() Reply {
	return Reply{Network: true}
}

// Gated returns r blocked on a new gate, and the gate.
func Gated(r Reply) (Reply, chan struct{}) {
	gate := make(chan struct{})
	r.Gate = gate
	return r, gate
}

// FakeTransport is a scripted transport.Transport that records every call.
//
// Replies are registered per "METHOD path" (path includes any ID, excludes
// the query). Each call consumes the next reply; the last reply repeats.
// Unscripted routes answer 404.
//
// Thread-safety: FakeTransport is safe for concurrent use.
type FakeTransport struct {
	mu     sync.Mutex
	routes map[string][]Reply
	calls  []transport.Request
}

// NewFakeTransport creates an empty fake.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{routes: make(map[string][]Reply)}
}

// On appends replies for method and path.
func (f *FakeTransport) On(method ir.Method, path string, replies ...Reply) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := routeKey(method, path)
	f.routes[key] = append(f.routes[key], replies...)
	return f
}

// Do implements transport.Transport.
func (f *FakeTransport) Do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cloneRequest(req))
	reply, ok := f.next(routeKey(req.Method, req.Path))
	f.mu.Unlock()

	method := string(req.Method)
	if !ok {
		return nil, transport.NewServerError(method, req.Path, http.StatusNotFound, []byte(`{"message":"no route"}`))
	}

	if reply.Gate != nil {
		select {
		case <-reply.Gate:
		case <-ctx.Done():
			return nil, transport.NewNetworkError(method, req.Path, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, transport.NewNetworkError(method, req.Path, err)
	}

	switch {
	case reply.Err != nil:
		return nil, reply.Err
	case reply.Network:
		return nil, transport.NewNetworkError(method, req.Path, fmt.Errorf("connection refused"))
	}

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status < 200 || status > 299 {
		return nil, transport.NewServerError(method, req.Path, status, []byte(reply.Body))
	}
	return &transport.Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(reply.Body),
	}, nil
}

// next pops the route's next reply, keeping the last one. Caller holds mu.
func (f *FakeTransport) next(key string) (Reply, bool) {
	queue := f.routes[key]
	if len(queue) == 0 {
		return Reply{}, false
	}
	reply := queue[0]
	if len(queue) > 1 {
		f.routes[key] = queue[1:]
	}
	return reply, true
}

// Calls returns every recorded request in call order.
func (f *FakeTransport) Calls() []transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallsTo counts calls to method and path.
func (f *FakeTransport) CallsTo(method ir.Method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// Drain returns the recorded requests and forgets them.
func (f *FakeTransport) Drain() []transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	calls := f.calls
	f.calls = nil
	return calls
}

// FormatCall renders a request as one trace line: "GET /path?query {body}".
// Query keys are sorted; the body is re-encoded compactly.
func FormatCall(req transport.Request) string {
	var b strings.Builder
	b.WriteString(string(req.Method))
	b.WriteByte(' ')
	b.WriteString(req.Path)
	if len(req.Query) > 0 {
		if values, err := req.Query.Encode(); err == nil {
			b.WriteByte('?')
			b.WriteString(values.Encode())
		}
	}
	if req.Body != nil {
		if data, err := json.Marshal(req.Body); err == nil {
			b.WriteByte(' ')
			b.Write(data)
		}
	}
	if len(req.Headers) > 0 {
		keys := make([]string, 0, len(req.Headers))
		for k := range req.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " [%s: %s]", k, req.Headers[k])
		}
	}
	return b.String()
}

func routeKey(method ir.Method, path string) string {
	return string(method) + " " + path
}

func cloneRequest(req transport.Request) transport.Request {
	req.Query = req.Query.Clone()
	if req.Headers != nil {
		h := make(map[string]string, len(req.Headers))
		for k, v := range req.Headers {
			h[k] = v
		}
		req.Headers = h
	}
	return req
}
