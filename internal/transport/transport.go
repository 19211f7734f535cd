package transport

import (
	"context"
	"net/http"

	"github.com/roach88/fintrack/internal/ir"
)

// Request is one call against the finance API.
type Request struct {
	Method  ir.Method
	Path    string            // relative to the base URL, e.g. "/accounts/7"
	Query   ir.IRObject       // encoded as the query string
	Body    any               // JSON-encoded unless []byte
	Headers map[string]string // merged over the baseline headers
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport performs requests.
// Implementations must be safe for concurrent use.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, req Request) (*Response, error)

// Do calls f(ctx, req).
func (f Func) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
