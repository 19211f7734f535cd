package state

import (
	"maps"

	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/transport"
)

// Kind discriminates reads from writes.
type Kind int

const (
	// KindRead addresses a resource by ID and query.
	KindRead Kind = iota
	// KindWrite carries a request body.
	KindWrite
)

// String returns "read" or "write".
func (k Kind) String() string {
	if k == KindWrite {
		return "write"
	}
	return "read"
}

// Params are the call-site inputs of one execute.
//
// The callbacks are scoped to this call and run after the store-level
// callbacks configured with WithOnSuccess, WithOnError and WithOnFinal.
type Params struct {
	ID      string            `json:"id,omitempty"`      // appended to the endpoint path
	Query   ir.IRObject       `json:"query,omitempty"`   // query string
	Body    any               `json:"body,omitempty"`    // JSON request body
	Force   bool              `json:"force,omitempty"`   // bypass the cache-skip rule
	Headers map[string]string `json:"headers,omitempty"` // merged over baseline headers

	OnSuccess func(*transport.Response) `json:"-"`
	OnError   func(error)               `json:"-"`
	OnFinal   func()                    `json:"-"`
}

// Read builds read params.
func Read(id string, query ir.IRObject) Params {
	return Params{ID: id, Query: query}
}

// Write builds write params.
func Write(id string, body any) Params {
	return Params{ID: id, Body: body}
}

// Kind reports KindWrite when a body is present.
func (p Params) Kind() Kind {
	if p.Body != nil {
		return KindWrite
	}
	return KindRead
}

// Forced returns a copy with Force set.
func (p Params) Forced() Params {
	p.Force = true
	return p
}

// Merge returns p with every non-zero field of override replacing the
// corresponding field. Maps are replaced, never merged key by key.
func (p Params) Merge(override Params) Params {
	out := p
	if override.ID != "" {
		out.ID = override.ID
	}
	if override.Query != nil {
		out.Query = override.Query
	}
	if override.Body != nil {
		out.Body = override.Body
	}
	if override.Force {
		out.Force = true
	}
	if override.Headers != nil {
		out.Headers = override.Headers
	}
	if override.OnSuccess != nil {
		out.OnSuccess = override.OnSuccess
	}
	if override.OnError != nil {
		out.OnError = override.OnError
	}
	if override.OnFinal != nil {
		out.OnFinal = override.OnFinal
	}
	return out
}

func (p Params) clone() Params {
	p.Query = p.Query.Clone()
	p.Headers = maps.Clone(p.Headers)
	return p
}

// Validate checks p against the endpoint.
func (p Params) Validate(ep ir.Endpoint) error {
	if ep.IsRead() && p.Body != nil {
		return ErrBodyOnRead
	}
	if ep.NeedsID && p.ID == "" {
		return ErrMissingID
	}
	return nil
}

func (p Params) request(ep ir.Endpoint) transport.Request {
	return transport.Request{
		Method:  ep.Method,
		Path:    ep.PathFor(p.ID),
		Query:   p.Query,
		Body:    p.Body,
		Headers: p.Headers,
	}
}
