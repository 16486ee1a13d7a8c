package typescript

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blimu-dev/rpc-gen/pkg/generator/common"
	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/naming"
)

// shapeToTSType converts a shape to a TypeScript type string. Objects must
// already carry a registered name.
func shapeToTSType(reg *naming.Registry, ep *ir.Endpoint, s *ir.Shape) (string, error) {
	s = ir.Resolve(s)
	switch s.Kind {
	case ir.KindPrimitive:
		switch s.Primitive {
		case ir.String:
			return "string", nil
		case ir.Number:
			return "number", nil
		case ir.Boolean:
			return "boolean", nil
		}
	case ir.KindLiteral:
		vals := make([]string, 0, len(s.Literals))
		for _, l := range s.Literals {
			vals = append(vals, l.Raw)
		}
		return strings.Join(vals, " | "), nil
	case ir.KindObject:
		nt, ok := reg.Lookup(ep, s)
		if !ok {
			return "", fmt.Errorf("object shape has no registered name")
		}
		return nt.Name, nil
	case ir.KindArray:
		inner, err := shapeToTSType(reg, ep, s.Elem)
		if err != nil {
			return "", err
		}
		return "Array<" + inner + ">", nil
	}
	return "unknown", nil
}

// declaration renders one exported type of a controller unit.
func declaration(reg *naming.Registry, ep *ir.Endpoint, nt *naming.NamedType) (string, error) {
	s := nt.Shape
	if s.Kind != ir.KindObject {
		t, err := shapeToTSType(reg, ep, s)
		if err != nil {
			return "", common.Fail(target, ep, nt.Location().Path, "%v", err)
		}
		return fmt.Sprintf("export type %s = %s;", nt.Name, t), nil
	}
	if len(s.Fields) == 0 {
		return fmt.Sprintf("export type %s = Record<string, never>;", nt.Name), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "export type %s = {", nt.Name)
	for _, f := range s.Fields {
		t, err := shapeToTSType(reg, ep, f.Shape)
		if err != nil {
			return "", common.Fail(target, ep, append(nt.Location().Path, f.Name), "%v", err)
		}
		opt := ""
		if !f.Required {
			opt = "?"
		}
		fmt.Fprintf(&b, "\n  %s%s: %s;", quoteTSPropertyName(f.Name), opt, t)
	}
	b.WriteString("\n};")
	return b.String(), nil
}

// quoteTSPropertyName quotes property names that are not plain identifiers.
func quoteTSPropertyName(name string) string {
	needsQuoting := name == ""
	for i, char := range name {
		ok := (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || char == '_' || char == '$'
		if i > 0 && char >= '0' && char <= '9' {
			ok = true
		}
		if !ok {
			needsQuoting = true
			break
		}
	}
	if needsQuoting {
		return strconv.Quote(name)
	}
	return name
}

// slotType renders the parameter type of a request slot; absent slots only
// accept undefined.
func slotType(reg *naming.Registry, ep *ir.Endpoint, slot ir.Slot) string {
	if nt := reg.Slot(ep, slot); nt != nil {
		return nt.Name
	}
	return "undefined"
}

// itemType renders the output type, or the per-item type of a stream.
func itemType(reg *naming.Registry, ep *ir.Endpoint) string {
	if nt := reg.Slot(ep, common.ResultSlot(ep)); nt != nil {
		return nt.Name
	}
	return "unknown"
}

// resultType renders the resolved value of an endpoint's promise.
func resultType(reg *naming.Registry, ep *ir.Endpoint) string {
	if ep.Streaming {
		return "StreamAsyncIterator<" + itemType(reg, ep) + ">"
	}
	return itemType(reg, ep)
}

// substitutions renders the statements replacing each :token of the path.
func substitutions(ep *ir.Endpoint) []string {
	var lines []string
	for _, p := range common.PathParams(ep) {
		access := "params" + propertyAccess(p.Token)
		lines = append(lines, fmt.Sprintf("url = substitutePathParam(url, %s, %s);", strconv.Quote(p.Token), access))
	}
	return lines
}

func propertyAccess(name string) string {
	if q := quoteTSPropertyName(name); q != name {
		return "[" + q + "]"
	}
	return "." + name
}

// docLines escapes summary lines for a JSDoc block.
func docLines(ep *ir.Endpoint) []string {
	lines := common.Summary(ep)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.TrimRight(strings.ReplaceAll(l, "*/", "*\\/"), " \t"))
	}
	return out
}
