package golang

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blimu-dev/rpc-gen/pkg/generator/common"
	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/naming"
	"github.com/blimu-dev/rpc-gen/pkg/utils"
)

var toPascalCase = utils.ToPascalCase

var invalidPackageChars = regexp.MustCompile(`[^a-z0-9_]`)

// runtimeNames are declared by client.go and cannot be used by generated types.
var runtimeNames = map[string]bool{
	"DefaultAPIRoot": true, "DefaultFetcher": true, "Request": true, "Fetcher": true,
	"Stream": true, "StreamError": true, "Absent": true, "FullSchema": true, "ErrNoFetcher": true,
}

// goType renders the Go type of s. Optional struct fields are wrapped by the caller.
func goType(reg *naming.Registry, ep *ir.Endpoint, s *ir.Shape) (string, error) {
	s = ir.Resolve(s)
	switch s.Kind {
	case ir.KindPrimitive:
		return primitiveType(s.Primitive), nil
	case ir.KindLiteral:
		kinds := s.LiteralKinds()
		if len(kinds) != 1 {
			return "", fmt.Errorf("literal union mixes %d primitive kinds", len(kinds))
		}
		return primitiveType(kinds[0]), nil
	case ir.KindObject:
		nt, ok := reg.Lookup(ep, s)
		if !ok {
			return "", fmt.Errorf("object shape has no registered name")
		}
		return nt.Name, nil
	case ir.KindArray:
		inner, err := goType(reg, ep, s.Elem)
		if err != nil {
			return "", err
		}
		return "[]" + inner, nil
	}
	return "json.RawMessage", nil
}

func primitiveType(p ir.PrimitiveKind) string {
	switch p {
	case ir.Number:
		return "float64"
	case ir.Boolean:
		return "bool"
	}
	return "string"
}

// fieldName converts a wire name to an exported Go identifier.
func fieldName(name string) string {
	n := toPascalCase(name)
	if n == "" || (n[0] >= '0' && n[0] <= '9') {
		n = "X" + n
	}
	return n
}

// declaration renders one named type of a controller unit.
func declaration(reg *naming.Registry, ep *ir.Endpoint, nt *naming.NamedType) (string, error) {
	s := nt.Shape
	loc := nt.Location().Path
	if s.Kind != ir.KindObject {
		t, err := goType(reg, ep, s)
		if err != nil {
			return "", common.Fail(target, ep, loc, "%v", err)
		}
		doc := ""
		if s.Kind == ir.KindLiteral {
			vals := make([]string, 0, len(s.Literals))
			for _, l := range s.Literals {
				vals = append(vals, l.Raw)
			}
			doc = fmt.Sprintf("// %s is one of %s.\n", nt.Name, strings.Join(vals, ", "))
		}
		return fmt.Sprintf("%stype %s = %s", doc, nt.Name, t), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "type %s struct {", nt.Name)
	seen := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		path := append(nt.Location().Path, f.Name)
		name := fieldName(f.Name)
		if prev, dup := seen[name]; dup {
			return "", common.Fail(target, ep, path, "fields %q and %q both map to Go field %s", prev, f.Name, name)
		}
		seen[name] = f.Name

		t, err := goType(reg, ep, f.Shape)
		if err != nil {
			return "", common.Fail(target, ep, path, "%v", err)
		}
		tag := f.Name
		if !f.Required {
			tag += ",omitempty"
			if needsPointer(f.Shape) {
				t = "*" + t
			}
		}
		fmt.Fprintf(&b, "\n\t%s %s `json:%s`", name, t, strconv.Quote(tag))
	}
	b.WriteString("\n}")
	return b.String(), nil
}

// needsPointer reports whether an optional field of s needs a pointer to
// distinguish absence from the zero value.
func needsPointer(s *ir.Shape) bool {
	switch ir.Resolve(s).Kind {
	case ir.KindArray, ir.KindUnknown:
		return false
	}
	return true
}

// slotType renders the parameter type of a request slot; absent slots are
// typed Absent so only nil can be passed.
func slotType(reg *naming.Registry, ep *ir.Endpoint, slot ir.Slot) string {
	if nt := reg.Slot(ep, slot); nt != nil {
		return nt.Name
	}
	return "Absent"
}

// resultType renders the item type a call yields.
func resultType(reg *naming.Registry, ep *ir.Endpoint) string {
	if nt := reg.Slot(ep, common.ResultSlot(ep)); nt != nil {
		return nt.Name
	}
	return "json.RawMessage"
}

// substitutions renders the statements replacing each :token of the path.
func substitutions(ep *ir.Endpoint) []string {
	var lines []string
	for _, p := range common.PathParams(ep) {
		lines = append(lines, fmt.Sprintf("url = substitutePathParam(url, %s, params.%s)", strconv.Quote(p.Token), fieldName(p.Token)))
	}
	return lines
}

// formatGoComment formats a string as a proper Go comment, handling multiline descriptions
func formatGoComment(s string) string {
	if s == "" {
		return ""
	}

	lines := strings.Split(s, "\n")
	var result []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			result = append(result, "//")
		} else {
			result = append(result, "// "+line)
		}
	}

	return strings.Join(result, "\n")
}

// withoutHeadings drops the blank line in front of every one-line paragraph
// that gofmt would rewrite as a "# heading", which would change the text.
func withoutHeadings(lines []string) []string {
	blank := func(i int) bool { return strings.TrimSpace(lines[i]) == "" }
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if blank(i) && i > 0 && i+3 < len(lines) && !blank(i+1) && blank(i+2) && !blank(i+3) && headingLike(lines[i+1]) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// headingLike reports whether line may pass the old-style heading test of
// go/doc/comment. It is looser than the real test, never stricter.
func headingLike(line string) bool {
	line = strings.TrimSpace(line)
	first, _ := utf8.DecodeRuneInString(line)
	last, _ := utf8.DecodeLastRuneInString(line)
	if !unicode.IsUpper(first) || !(unicode.IsLetter(last) || unicode.IsDigit(last)) {
		return false
	}
	return !strings.ContainsAny(line, ";:!?+*/=[]{}_^°&§~%#@<\">\\")
}

// sanitizePackageName ensures the package name is valid for Go
func sanitizePackageName(name string) string {
	// Extract the last part of the package name if it looks like a module path
	parts := strings.Split(name, "/")
	if len(parts) > 0 {
		name = parts[len(parts)-1]
	}

	name = invalidPackageChars.ReplaceAllString(strings.ToLower(name), "")

	if len(name) > 0 && name[0] >= '0' && name[0] <= '9' {
		name = "pkg" + name
	}

	if name == "" {
		name = "client"
	}

	return name
}
