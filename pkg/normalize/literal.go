package normalize

import (
	"fmt"
	"math"
	"strconv"

	"github.com/go-json-experiment/json"
	"gopkg.in/yaml.v3"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/schema"
)

// literal converts a scalar node into a canonical literal. ok is false for null.
func literal(n *yaml.Node) (lit ir.Literal, ok bool, err error) {
	n = schema.Deref(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return ir.Literal{}, false, fmt.Errorf("literal values must be scalars")
	}
	switch n.ShortTag() {
	case "!!null":
		return ir.Literal{}, false, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return ir.Literal{}, false, err
		}
		return ir.Literal{Kind: ir.Boolean, Raw: strconv.FormatBool(b)}, true, nil
	case "!!int", "!!float":
		raw, err := canonicalNumber(n)
		if err != nil {
			return ir.Literal{}, false, err
		}
		return ir.Literal{Kind: ir.Number, Raw: raw}, true, nil
	default:
		b, err := json.Marshal(n.Value)
		if err != nil {
			return ir.Literal{}, false, err
		}
		return ir.Literal{Kind: ir.String, Raw: string(b)}, true, nil
	}
}

// canonicalNumber renders equal numbers identically whatever their source
// spelling (10, +10, 0x0A, 1e1): integral values without a fraction or
// exponent, the rest in shortest round-trip form.
func canonicalNumber(n *yaml.Node) (string, error) {
	if n.ShortTag() == "!!int" {
		var i int64
		if err := n.Decode(&i); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
	}
	var f float64
	if err := n.Decode(&f); err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("invalid number literal %q", n.Value)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

// literals converts a sequence of scalars, skipping nulls. sawNull reports
// whether a null member was present.
func literals(n *yaml.Node) (lits []ir.Literal, sawNull bool, err error) {
	n = schema.Deref(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil, false, fmt.Errorf("expected a list of literal values")
	}
	for _, item := range n.Content {
		lit, ok, err := literal(item)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			sawNull = true
			continue
		}
		lits = append(lits, lit)
	}
	return lits, sawNull, nil
}
