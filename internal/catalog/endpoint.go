package catalog

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/fintrack/internal/ir"
)

// compileEndpoint converts one endpoint struct. The schema has already
// checked field shapes; this enforces the rules CUE cannot express.
func compileEndpoint(name string, v cue.Value) (ir.Endpoint, error) {
	ep := ir.Endpoint{Name: name}
	field := func(f string) string {
		return fmt.Sprintf("endpoint.%s.%s", name, f)
	}

	methodVal := v.LookupPath(cue.ParsePath("method"))
	if !methodVal.Exists() {
		return ep, &CompileError{Field: field("method"), Message: "method is required", Pos: v.Pos()}
	}
	method, err := methodVal.String()
	if err != nil {
		return ep, formatCUEError(err)
	}
	ep.Method = ir.Method(method)
	if !ir.ValidMethods[ep.Method] {
		return ep, &CompileError{Field: field("method"), Message: fmt.Sprintf("unsupported method %q", method), Pos: methodVal.Pos()}
	}

	pathVal := v.LookupPath(cue.ParsePath("path"))
	if !pathVal.Exists() {
		return ep, &CompileError{Field: field("path"), Message: "path is required", Pos: v.Pos()}
	}
	if ep.Path, err = pathVal.String(); err != nil {
		return ep, formatCUEError(err)
	}
	if !strings.HasPrefix(ep.Path, "/") {
		return ep, &CompileError{Field: field("path"), Message: "path must start with /", Pos: pathVal.Pos()}
	}

	if idVal := v.LookupPath(cue.ParsePath("needs_id")); idVal.Exists() {
		if ep.NeedsID, err = idVal.Bool(); err != nil {
			return ep, formatCUEError(err)
		}
	}
	if docVal := v.LookupPath(cue.ParsePath("doc")); docVal.Exists() {
		if ep.Doc, err = docVal.String(); err != nil {
			return ep, formatCUEError(err)
		}
	}

	if ep.Publishes, err = compileTopics(v, field, "publishes"); err != nil {
		return ep, err
	}
	if ep.Subscribes, err = compileTopics(v, field, "subscribes"); err != nil {
		return ep, err
	}

	if ep.IsRead() && len(ep.Publishes) > 0 {
		return ep, &CompileError{Field: field("publishes"), Message: "GET endpoints cannot publish", Pos: v.Pos()}
	}
	if !ep.IsRead() && len(ep.Subscribes) > 0 {
		return ep, &CompileError{Field: field("subscribes"), Message: fmt.Sprintf("%s endpoints cannot subscribe", ep.Method), Pos: v.Pos()}
	}
	return ep, nil
}

func compileTopics(v cue.Value, field func(string) string, name string) ([]ir.Topic, error) {
	listVal := v.LookupPath(cue.ParsePath(name))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var topics []ir.Topic
	seen := make(map[string]bool)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if seen[s] {
			return nil, &CompileError{Field: field(name), Message: fmt.Sprintf("duplicate topic %q", s), Pos: iter.Value().Pos()}
		}
		seen[s] = true
		topics = append(topics, ir.Topic(s))
	}
	return topics, nil
}
