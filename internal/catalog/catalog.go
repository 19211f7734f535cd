package catalog

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/fintrack/internal/ir"
)

//go:embed schema.cue catalog.cue
var sources embed.FS

// Catalog is a compiled, ordered set of endpoints.
// Order follows declaration order in the CUE source.
type Catalog struct {
	Version   string
	Endpoints []ir.Endpoint

	index map[string]int
}

// Default compiles the built-in catalog.
func Default() (*Catalog, error) {
	ctx := cuecontext.New()
	v, err := compileEmbedded(ctx, "catalog.cue")
	if err != nil {
		return nil, err
	}
	return Compile(v)
}

// MustDefault is Default that panics on error. The built-in catalog is
// covered by tests, so a failure here is a programming error.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in catalog: %v", err))
	}
	return c
}

// LoadDir loads the CUE package in dir and compiles it.
func LoadDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog directory: not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("load catalog %s: no CUE instances", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", dir, inst.Err)
	}

	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v)
}

// Compile validates v against the schema and converts its endpoints.
// All endpoint errors are reported, joined.
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema, err := compileEmbedded(v.Context(), "schema.cue")
	if err != nil {
		return nil, err
	}
	v = v.Unify(schema)
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{
		Version: ir.CatalogVersion,
		index:   make(map[string]int),
	}

	if verVal := v.LookupPath(cue.ParsePath("version")); verVal.Exists() {
		ver, err := verVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if ver != ir.CatalogVersion {
			return nil, &CompileError{
				Field:   "version",
				Message: fmt.Sprintf("unsupported catalog version %q (want %q)", ver, ir.CatalogVersion),
				Pos:     verVal.Pos(),
			}
		}
	}

	epsVal := v.LookupPath(cue.ParsePath("endpoint"))
	if !epsVal.Exists() {
		return nil, &CompileError{Field: "endpoint", Message: "at least one endpoint is required", Pos: v.Pos()}
	}
	iter, err := epsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var errs []error
	for iter.Next() {
		ep, err := compileEndpoint(iter.Label(), iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.index[ep.Name] = len(c.Endpoints)
		c.Endpoints = append(c.Endpoints, ep)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(c.Endpoints) == 0 {
		return nil, &CompileError{Field: "endpoint", Message: "at least one endpoint is required", Pos: epsVal.Pos()}
	}
	return c, nil
}

func compileEmbedded(ctx *cue.Context, name string) (cue.Value, error) {
	data, err := sources.ReadFile(name)
	if err != nil {
		return cue.Value{}, fmt.Errorf("read embedded %s: %w", name, err)
	}
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// Lookup returns the endpoint called name.
func (c *Catalog) Lookup(name string) (ir.Endpoint, error) {
	i, ok := c.index[name]
	if !ok {
		return ir.Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}
	return c.Endpoints[i], nil
}

// Names returns endpoint names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		names[i] = ep.Name
	}
	return names
}

// Reads returns the GET endpoints in catalog order.
func (c *Catalog) Reads() []ir.Endpoint {
	var reads []ir.Endpoint
	for _, ep := range c.Endpoints {
		if ep.IsRead() {
			reads = append(reads, ep)
		}
	}
	return reads
}

// Topics returns every topic published or subscribed, sorted.
func (c *Catalog) Topics() []ir.Topic {
	var topics []ir.Topic
	for _, ep := range c.Endpoints {
		topics = append(topics, ep.Publishes...)
		topics = append(topics, ep.Subscribes...)
	}
	slices.Sort(topics)
	return slices.Compact(topics)
}

// Edges returns the invalidation graph the catalog declares: publishers in
// catalog order, their topics in declared order, subscribers in catalog
// order.
func (c *Catalog) Edges() []ir.Edge {
	var edges []ir.Edge
	for _, pub := range c.Endpoints {
		for _, topic := range pub.Publishes {
			for _, sub := range c.Endpoints {
				if slices.Contains(sub.Subscribes, topic) {
					edges = append(edges, ir.Edge{Source: pub.Name, Topic: topic, Subscriber: sub.Name})
				}
			}
		}
	}
	return edges
}
