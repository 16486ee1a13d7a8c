// Package normalize converts validation-library descriptors into canonical
// ir.Shape values. Each supported library is an Adapter; everything that
// depends on how a library signals optionality lives here and nowhere else.
package normalize

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/schema"
)

// Adapter translates one library's descriptor conventions into canonical shapes.
type Adapter interface {
	Kind() ir.AdapterKind
	// Shape normalizes a single descriptor. loc identifies the descriptor for errors.
	Shape(r Resolver, desc *yaml.Node, loc ir.Location) (*ir.Shape, error)
}

// Resolver resolves named definitions referenced from descriptors.
type Resolver interface {
	Resolve(a Adapter, name string, loc ir.Location) (*ir.Shape, error)
}

var adapterNames = map[string]ir.AdapterKind{
	"":                ir.AdapterNone,
	"none":            ir.AdapterNone,
	"zod":             ir.AdapterZod,
	"yup":             ir.AdapterYup,
	"dto":             ir.AdapterDto,
	"class-validator": ir.AdapterDto,
}

// ParseKind maps a validation library name to its adapter kind.
func ParseKind(name string) (ir.AdapterKind, error) {
	kind, ok := adapterNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", &ir.AdapterError{Adapter: name, Msg: "unrecognized validation library"}
	}
	return kind, nil
}

// ForKind returns the adapter for kind.
func ForKind(kind ir.AdapterKind) (Adapter, error) {
	switch kind {
	case ir.AdapterNone:
		return jsonSchemaAdapter{kind: ir.AdapterNone, required: listedRequired}, nil
	case ir.AdapterZod:
		return jsonSchemaAdapter{kind: ir.AdapterZod, required: listedRequired}, nil
	case ir.AdapterDto:
		return jsonSchemaAdapter{kind: ir.AdapterDto, required: dtoRequired}, nil
	case ir.AdapterYup:
		return yupAdapter{}, nil
	}
	return nil, &ir.AdapterError{Adapter: string(kind), Msg: "unrecognized adapter kind"}
}

// RouteShapes holds the normalized slot shapes of one route. A slot without a
// descriptor is absent from Slots.
type RouteShapes struct {
	Adapter ir.AdapterKind
	Slots   map[ir.Slot]*ir.Shape
}

// Normalizer normalizes the descriptors of one document. Definitions are
// normalized once per adapter kind and shared by every reference.
type Normalizer struct {
	doc  *schema.Document
	defs map[defKey]*ir.Shape
}

type defKey struct {
	kind ir.AdapterKind
	name string
}

// New returns a normalizer for doc.
func New(doc *schema.Document) *Normalizer {
	return &Normalizer{doc: doc, defs: make(map[defKey]*ir.Shape)}
}

// Document normalizes every route of doc. The result is parallel to doc.Routes.
func Document(doc *schema.Document) ([]RouteShapes, error) {
	n := New(doc)
	out := make([]RouteShapes, 0, len(doc.Routes))
	for _, r := range doc.Routes {
		rs, err := n.Route(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}

// Route normalizes every declared slot of r.
func (n *Normalizer) Route(r schema.Route) (RouteShapes, error) {
	kind, err := ParseKind(r.Adapter)
	if err != nil {
		ae := err.(*ir.AdapterError)
		ae.Location = r.Location()
		return RouteShapes{}, ae
	}
	rs := RouteShapes{Adapter: kind, Slots: make(map[ir.Slot]*ir.Shape, len(r.Validation))}
	for _, slot := range ir.Slots {
		desc, ok := r.Validation[slot]
		if !ok {
			continue
		}
		loc := r.Location()
		loc.Path = []string{strings.ToLower(string(slot))}
		s, err := n.Normalize(kind, desc, loc)
		if err != nil {
			return RouteShapes{}, err
		}
		rs.Slots[slot] = s
	}
	return rs, nil
}

// Normalize converts one descriptor written for kind into a canonical shape.
func (n *Normalizer) Normalize(kind ir.AdapterKind, desc *yaml.Node, loc ir.Location) (*ir.Shape, error) {
	a, err := ForKind(kind)
	if err != nil {
		return nil, err
	}
	return a.Shape(n, desc, loc)
}

// Fields normalizes an object descriptor and returns its fields with their
// canonical required flags.
func (n *Normalizer) Fields(kind ir.AdapterKind, desc *yaml.Node, loc ir.Location) ([]ir.Field, error) {
	s, err := n.Normalize(kind, desc, loc)
	if err != nil {
		return nil, err
	}
	obj := ir.Resolve(s)
	if obj == nil || obj.Kind != ir.KindObject {
		return nil, &ir.AdapterError{Location: loc, Adapter: string(kind), Msg: "descriptor does not describe an object"}
	}
	return obj.Fields, nil
}

// Resolve implements Resolver.
func (n *Normalizer) Resolve(a Adapter, name string, loc ir.Location) (*ir.Shape, error) {
	key := defKey{kind: a.Kind(), name: name}
	if s, ok := n.defs[key]; ok {
		return s, nil
	}
	if n.doc == nil {
		return nil, &ir.SchemaLoadError{Location: loc, Msg: fmt.Sprintf("unresolved reference %q", name)}
	}
	desc, ok := n.doc.Definition(name)
	if !ok {
		return nil, &ir.SchemaLoadError{Location: loc, Msg: fmt.Sprintf("unresolved reference %q", name)}
	}
	s, err := a.Shape(n, desc, ir.Location{Path: []string{"definitions", name}})
	if err != nil {
		return nil, err
	}
	n.defs[key] = s
	return s, nil
}

// at returns loc extended by one path segment.
func at(loc ir.Location, seg string) ir.Location {
	path := make([]string, len(loc.Path), len(loc.Path)+1)
	copy(path, loc.Path)
	loc.Path = append(path, seg)
	return loc
}

func adapterErr(a Adapter, loc ir.Location, format string, args ...any) error {
	return &ir.AdapterError{Location: loc, Adapter: string(a.Kind()), Msg: fmt.Sprintf(format, args...)}
}
