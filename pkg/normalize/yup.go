package normalize

import (
	"gopkg.in/yaml.v3"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/schema"
)

// yupAdapter reads the output of yup's describe(). Optionality is spread over
// the "optional" and "nullable" flags; either one makes a field optional.
type yupAdapter struct{}

func (yupAdapter) Kind() ir.AdapterKind { return ir.AdapterYup }

func (a yupAdapter) Shape(r Resolver, n *yaml.Node, loc ir.Location) (*ir.Shape, error) {
	n = schema.Deref(n)
	if schema.IsNull(n) {
		return ir.NewUnknown(), nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, adapterErr(a, loc, "descriptor must be a mapping")
	}

	if oneOf := schema.Lookup(n, "oneOf"); oneOf != nil && len(oneOf.Content) > 0 {
		lits, sawNull, err := literals(oneOf)
		if err != nil {
			return nil, adapterErr(a, loc, "oneOf: %v", err)
		}
		if nullable, ok, _ := schema.Bool(n, "nullable"); sawNull && ok && !nullable {
			return nil, adapterErr(a, loc, "oneOf allows null but the field is not nullable")
		}
		if len(lits) > 0 {
			return ir.NewLiteralUnion(lits...), nil
		}
	}

	typ, err := schema.String(n, "type")
	if err != nil {
		return nil, adapterErr(a, loc, "%v", err)
	}
	switch typ {
	case "string", "date":
		return ir.NewPrimitive(ir.String), nil
	case "number":
		return ir.NewPrimitive(ir.Number), nil
	case "boolean":
		return ir.NewPrimitive(ir.Boolean), nil
	case "mixed", "":
		return ir.NewUnknown(), nil
	case "array":
		inner := schema.Lookup(n, "innerType")
		if inner == nil {
			return ir.NewArray(ir.NewUnknown()), nil
		}
		elem, err := a.Shape(r, inner, at(loc, "items"))
		if err != nil {
			return nil, err
		}
		return ir.NewArray(elem), nil
	case "tuple":
		return ir.NewArray(ir.NewUnknown()), nil
	case "object":
		if !schema.Has(n, "fields") {
			return ir.NewUnknown(), nil
		}
		return a.object(r, n, loc)
	}
	return nil, adapterErr(a, loc, "unsupported yup type %q", typ)
}

func (a yupAdapter) object(r Resolver, n *yaml.Node, loc ir.Location) (*ir.Shape, error) {
	fields, err := schema.Pairs(schema.Lookup(n, "fields"))
	if err != nil {
		return nil, adapterErr(a, loc, "fields: %v", err)
	}
	obj := ir.NewObject()
	for _, f := range fields {
		child := at(loc, f.Key)
		s, err := a.Shape(r, f.Value, child)
		if err != nil {
			return nil, err
		}
		req, err := yupRequired(f.Value)
		if err != nil {
			return nil, adapterErr(a, child, "%v", err)
		}
		obj.Fields = append(obj.Fields, ir.Field{Name: f.Key, Shape: s, Required: req})
	}
	return obj, nil
}

// yupRequired reports whether a described field must be present: neither
// optional nor nullable.
func yupRequired(n *yaml.Node) (bool, error) {
	optional, _, err := schema.Bool(n, "optional")
	if err != nil {
		return false, err
	}
	nullable, _, err := schema.Bool(n, "nullable")
	if err != nil {
		return false, err
	}
	return !optional && !nullable, nil
}
