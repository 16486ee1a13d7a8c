package normalize

import (
	"errors"

	"gopkg.in/yaml.v3"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/schema"
)

var errTypeNotScalar = errors.New(`"type" must be a string or a list of strings`)

// requiredRule decides whether an object property is required.
// listed reports membership in the parent's "required" list and hasList
// whether that list exists at all. A non-empty message means the property
// carries contradicting signals.
type requiredRule func(prop *yaml.Node, listed, hasList bool) (required bool, conflict string)

// listedRequired is the JSON Schema rule: required iff listed.
func listedRequired(_ *yaml.Node, listed, _ bool) (bool, string) {
	return listed, ""
}

// dtoRequired treats a default value as the optional marker.
func dtoRequired(prop *yaml.Node, listed, hasList bool) (bool, string) {
	hasDefault := schema.Has(prop, "default")
	switch {
	case hasDefault && listed:
		return false, "property is listed as required but declares a default value"
	case hasDefault:
		return false, ""
	case hasList:
		return listed, ""
	}
	return true, ""
}

// jsonSchemaAdapter handles descriptors expressed as JSON Schema (zod-to-json-schema,
// class-validator-jsonschema or hand-written schemas).
type jsonSchemaAdapter struct {
	kind     ir.AdapterKind
	required requiredRule
}

func (a jsonSchemaAdapter) Kind() ir.AdapterKind { return a.kind }

func (a jsonSchemaAdapter) Shape(r Resolver, n *yaml.Node, loc ir.Location) (*ir.Shape, error) {
	n = schema.Deref(n)
	if schema.IsNull(n) {
		return ir.NewUnknown(), nil
	}
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!bool" {
		// `true` accepts anything
		return ir.NewUnknown(), nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, adapterErr(a, loc, "descriptor must be a mapping")
	}

	if ref := schema.Lookup(n, "$ref"); ref != nil {
		name, ok := schema.RefName(ref.Value)
		if !ok {
			return nil, adapterErr(a, loc, "unsupported $ref %q", ref.Value)
		}
		target, err := r.Resolve(a, name, loc)
		if err != nil {
			return nil, err
		}
		return ir.NewRef(name, target), nil
	}

	if c := schema.Lookup(n, "const"); schema.Has(n, "const") {
		lit, ok, err := literal(c)
		if err != nil {
			return nil, adapterErr(a, loc, "const: %v", err)
		}
		if !ok {
			return ir.NewUnknown(), nil
		}
		return ir.NewLiteralUnion(lit), nil
	}
	if e := schema.Lookup(n, "enum"); e != nil {
		lits, _, err := literals(e)
		if err != nil {
			return nil, adapterErr(a, loc, "enum: %v", err)
		}
		if len(lits) == 0 {
			return ir.NewUnknown(), nil
		}
		return ir.NewLiteralUnion(lits...), nil
	}

	for _, key := range []string{"anyOf", "oneOf"} {
		if members := schema.Lookup(n, key); members != nil {
			return a.union(r, members, loc)
		}
	}
	if members := schema.Lookup(n, "allOf"); members != nil {
		return a.intersection(r, members, loc)
	}

	typ, err := jsonType(n)
	if err != nil {
		return nil, adapterErr(a, loc, "%v", err)
	}
	if typ == "" {
		switch {
		case schema.Has(n, "properties"):
			typ = "object"
		case schema.Has(n, "items"):
			typ = "array"
		}
	}

	switch typ {
	case "string":
		return ir.NewPrimitive(ir.String), nil
	case "number", "integer":
		return ir.NewPrimitive(ir.Number), nil
	case "boolean":
		return ir.NewPrimitive(ir.Boolean), nil
	case "array":
		items := schema.Lookup(n, "items")
		if items == nil || items.Kind == yaml.SequenceNode {
			return ir.NewArray(ir.NewUnknown()), nil
		}
		elem, err := a.Shape(r, items, at(loc, "items"))
		if err != nil {
			return nil, err
		}
		return ir.NewArray(elem), nil
	case "object":
		if !schema.Has(n, "properties") {
			return ir.NewUnknown(), nil
		}
		return a.object(r, n, loc)
	}
	return ir.NewUnknown(), nil
}

func (a jsonSchemaAdapter) object(r Resolver, n *yaml.Node, loc ir.Location) (*ir.Shape, error) {
	props, err := schema.Pairs(schema.Lookup(n, "properties"))
	if err != nil {
		return nil, adapterErr(a, loc, "properties: %v", err)
	}
	required, err := schema.Strings(n, "required")
	if err != nil {
		return nil, adapterErr(a, loc, "%v", err)
	}
	hasList := schema.Has(n, "required")
	listed := make(map[string]bool, len(required))
	for _, name := range required {
		listed[name] = true
	}
	declared := make(map[string]bool, len(props))
	for _, p := range props {
		declared[p.Key] = true
	}
	for _, name := range required {
		if !declared[name] {
			return nil, adapterErr(a, at(loc, name), "required lists an undeclared property")
		}
	}

	obj := ir.NewObject()
	for _, p := range props {
		child := at(loc, p.Key)
		s, err := a.Shape(r, p.Value, child)
		if err != nil {
			return nil, err
		}
		req, conflict := a.required(p.Value, listed[p.Key], hasList)
		if conflict != "" {
			return nil, adapterErr(a, child, "%s", conflict)
		}
		obj.Fields = append(obj.Fields, ir.Field{Name: p.Key, Shape: s, Required: req})
	}
	return obj, nil
}

// union handles anyOf/oneOf. Null members are dropped; unions of literals
// merge; a single remaining member stands for itself; anything else is Unknown.
func (a jsonSchemaAdapter) union(r Resolver, members *yaml.Node, loc ir.Location) (*ir.Shape, error) {
	if members.Kind != yaml.SequenceNode {
		return nil, adapterErr(a, loc, "union members must be a list")
	}
	var shapes []*ir.Shape
	for _, m := range members.Content {
		if t, _ := jsonType(schema.Deref(m)); t == "null" {
			continue
		}
		s, err := a.Shape(r, m, loc)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, s)
	}
	switch len(shapes) {
	case 0:
		return ir.NewUnknown(), nil
	case 1:
		return shapes[0], nil
	}
	var lits []ir.Literal
	for _, s := range shapes {
		s = ir.Resolve(s)
		if s.Kind != ir.KindLiteral {
			return ir.NewUnknown(), nil
		}
		lits = append(lits, s.Literals...)
	}
	return ir.NewLiteralUnion(lits...), nil
}

// intersection handles allOf by merging object members in order.
func (a jsonSchemaAdapter) intersection(r Resolver, members *yaml.Node, loc ir.Location) (*ir.Shape, error) {
	if members.Kind != yaml.SequenceNode {
		return nil, adapterErr(a, loc, "allOf members must be a list")
	}
	if len(members.Content) == 1 {
		return a.Shape(r, members.Content[0], loc)
	}
	merged := ir.NewObject()
	for _, m := range members.Content {
		s, err := a.Shape(r, m, loc)
		if err != nil {
			return nil, err
		}
		obj := ir.Resolve(s)
		if obj.Kind != ir.KindObject {
			return ir.NewUnknown(), nil
		}
		for _, f := range obj.Fields {
			if _, dup := merged.Field(f.Name); !dup {
				merged.Fields = append(merged.Fields, f)
			}
		}
	}
	return merged, nil
}

// jsonType returns the single non-null type named by "type".
func jsonType(n *yaml.Node) (string, error) {
	t := schema.Lookup(n, "type")
	if t == nil {
		return "", nil
	}
	switch t.Kind {
	case yaml.ScalarNode:
		return t.Value, nil
	case yaml.SequenceNode:
		var types []string
		for _, item := range t.Content {
			item = schema.Deref(item)
			if item != nil && item.Value != "null" {
				types = append(types, item.Value)
			}
		}
		switch len(types) {
		case 0:
			return "null", nil
		case 1:
			return types[0], nil
		}
		return "mixed", nil
	}
	return "", errTypeNotScalar
}
