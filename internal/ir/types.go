package ir

import (
	"net/url"
	"strings"
)

// Method is an HTTP method understood by the store factory.
type Method string

// Supported methods.
const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

// ValidMethods defines the allowed endpoint methods.
var ValidMethods = map[Method]bool{
	MethodGet:    true,
	MethodPost:   true,
	MethodPut:    true,
	MethodPatch:  true,
	MethodDelete: true,
}

// IsRead reports whether the method only reads server state.
// Only reads are eligible for the cache-skip rule.
func (m Method) IsRead() bool {
	return m == MethodGet
}

// Topic names a class of server state that mutations can invalidate.
type Topic string

// CatalogVersion is the endpoint catalog format this build reads.
const CatalogVersion = "1"

// Endpoint describes one REST resource operation.
// A store instance is built for every endpoint in the catalog.
type Endpoint struct {
	Name       string  `json:"name"`                 // "GetAccounts"
	Method     Method  `json:"method"`               // "GET"
	Path       string  `json:"path"`                 // "/accounts"
	NeedsID    bool    `json:"needs_id,omitempty"`   // path-appended identifier required
	Doc        string  `json:"doc,omitempty"`        // one-line description
	Publishes  []Topic `json:"publishes,omitempty"`  // topics invalidated on success
	Subscribes []Topic `json:"subscribes,omitempty"` // topics that force a refresh
}

// IsRead reports whether the endpoint is a read.
func (e Endpoint) IsRead() bool {
	return e.Method.IsRead()
}

// PathFor returns the request path for an optional identifier.
// The identifier is appended as a single escaped path segment.
func (e Endpoint) PathFor(id string) string {
	if id == "" {
		return e.Path
	}
	return strings.TrimSuffix(e.Path, "/") + "/" + url.PathEscape(id)
}

// Edge is one hop of the invalidation graph: a store publishing a topic
// that another store subscribes to.
type Edge struct {
	Source     string `json:"source"`
	Topic      Topic  `json:"topic"`
	Subscriber string `json:"subscriber"`
}

// Outcome is the terminal state of one execution.
type Outcome string

// Execution outcomes. Skipped executions never reach the transport.
const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeDropped Outcome = "dropped"
)

// Cause identifies the invalidation that triggered a refresh.
// The zero value means the execution was issued directly by a caller.
type Cause struct {
	ExecutionID string `json:"execution_id,omitempty"`
	Source      string `json:"source,omitempty"`
	Topic       Topic  `json:"topic,omitempty"`
}

// IsZero reports whether the cause is empty.
func (c Cause) IsZero() bool {
	return c.ExecutionID == "" && c.Source == "" && c.Topic == ""
}

// Execution is the journal record of one store execution.
type Execution struct {
	ID        string   `json:"id"` // Content-addressed hash
	FlowToken string   `json:"flow_token"`
	Store     string   `json:"store"`
	Method    Method   `json:"method"`
	Path      string   `json:"path"`
	Query     IRObject `json:"query"`
	Forced    bool     `json:"forced"`
	Seq       int64    `json:"seq"` // Logical clock
	Cause     Cause    `json:"cause"`
}

// Settlement is the journal record of an execution's outcome.
type Settlement struct {
	ExecutionID string  `json:"execution_id"`
	Outcome     Outcome `json:"outcome"`
	Status      int     `json:"status,omitempty"`
	Message     string  `json:"message,omitempty"`
	Seq         int64   `json:"seq"`
}
