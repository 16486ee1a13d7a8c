package python

import (
	"fmt"
	"strings"

	"github.com/blimu-dev/rpc-gen/pkg/generator/common"
	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/naming"
	"github.com/blimu-dev/rpc-gen/pkg/utils"
)

var pyKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true, "assert": true,
	"async": true, "await": true, "break": true, "class": true, "continue": true,
	"def": true, "del": true, "elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true, "yield": true,
}

// runtimeNames are bound at module level by the controller template or
// __init__.py. A controller class with one of these names would shadow it.
var runtimeNames = map[string]bool{
	"annotations": true, "importlib": true, "Any": true, "Iterator": true, "List": true,
	"Literal": true, "Optional": true, "TypedDict": true, "NotRequired": true, "_root": true,
	"default_api_root": true, "full_schema": true, "endpoint_url": true,
	"substitute_path_param": true, "fetch": true, "json": true, "os": true, "quote": true, "_f": true,
}

func isPyIdentifier(s string) bool {
	return utils.IsIdentifier(s) && !pyKeywords[s]
}

// typeExpr renders s as a Python type expression. Annotations use qualified
// names (Controller.name); class-body aliases are evaluated eagerly and must
// use the bare names of types declared earlier in the same class.
func typeExpr(reg *naming.Registry, ep *ir.Endpoint, s *ir.Shape, qualified bool) (string, error) {
	s = ir.Resolve(s)
	switch s.Kind {
	case ir.KindPrimitive:
		switch s.Primitive {
		case ir.String:
			return "str", nil
		case ir.Number:
			return "float", nil
		case ir.Boolean:
			return "bool", nil
		}
	case ir.KindLiteral:
		vals := make([]string, 0, len(s.Literals))
		for _, l := range s.Literals {
			vals = append(vals, pyLiteral(l))
		}
		return "Literal[" + strings.Join(vals, ", ") + "]", nil
	case ir.KindObject:
		nt, ok := reg.Lookup(ep, s)
		if !ok {
			return "", fmt.Errorf("object shape has no registered name")
		}
		if qualified {
			return nt.Qualified, nil
		}
		return nt.Name, nil
	case ir.KindArray:
		elem, err := typeExpr(reg, ep, s.Elem, qualified)
		if err != nil {
			return "", err
		}
		return "List[" + elem + "]", nil
	}
	return "Any", nil
}

func pyLiteral(l ir.Literal) string {
	if l.Kind == ir.Boolean {
		if l.Raw == "true" {
			return "True"
		}
		return "False"
	}
	return l.Raw
}

// declaration renders one named type as class-body source, indented one level.
func declaration(reg *naming.Registry, ep *ir.Endpoint, nt *naming.NamedType) (string, error) {
	s := nt.Shape
	if s.Kind != ir.KindObject {
		t, err := typeExpr(reg, ep, s, false)
		if err != nil {
			return "", common.Fail(target, ep, nt.Location().Path, "%v", err)
		}
		return fmt.Sprintf("    %s = %s", nt.Name, t), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "    class %s(TypedDict):", nt.Name)
	if len(s.Fields) == 0 {
		b.WriteString("\n        pass")
	}
	for _, f := range s.Fields {
		path := append(nt.Location().Path, f.Name)
		if !isPyIdentifier(f.Name) {
			return "", common.Fail(target, ep, path, "field name %q is not a valid Python identifier", f.Name)
		}
		t, err := typeExpr(reg, ep, f.Shape, true)
		if err != nil {
			return "", common.Fail(target, ep, path, "%v", err)
		}
		if !f.Required {
			t = "NotRequired[" + t + "]"
		}
		fmt.Fprintf(&b, "\n        %s: %s", f.Name, t)
	}
	return b.String(), nil
}

// slotType renders the annotation of a request slot; absent slots are None.
func slotType(reg *naming.Registry, ep *ir.Endpoint, slot ir.Slot) string {
	if nt := reg.Slot(ep, slot); nt != nil {
		return nt.Qualified
	}
	return "None"
}

// resultType renders the return annotation of an endpoint callable.
func resultType(reg *naming.Registry, ep *ir.Endpoint) string {
	item := "Any"
	if nt := reg.Slot(ep, common.ResultSlot(ep)); nt != nil {
		item = nt.Qualified
	}
	if ep.Streaming {
		return "Iterator[" + item + "]"
	}
	return item
}

// substitutions renders the statements replacing each :token of the path.
func substitutions(ep *ir.Endpoint) []string {
	var lines []string
	for _, p := range common.PathParams(ep) {
		value := fmt.Sprintf("params[%q]", p.Token)
		if !p.Required {
			value = fmt.Sprintf("params.get(%q)", p.Token)
		}
		lines = append(lines, fmt.Sprintf("url = _root().substitute_path_param(url, %q, %s)", p.Token, value))
	}
	return lines
}

// docLines escapes summary lines for a triple-quoted docstring.
func docLines(ep *ir.Endpoint) []string {
	lines := common.Summary(ep)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.ReplaceAll(l, `\`, `\\`)
		l = strings.ReplaceAll(l, `"""`, `\"\"\"`)
		out = append(out, strings.TrimRight(l, " \t"))
	}
	return out
}
