// Package schema reads an RPC schema document (segments, controllers and
// handlers with their validation descriptors) into an ordered list of routes.
// It performs no normalization: descriptors are kept as raw yaml nodes.
package schema

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
)

// Document is a loaded schema.
type Document struct {
	Source      string
	APIRoot     string
	Definitions []Pair
	Routes      []Route
	// Root is the whole parsed document, kept for introspection.
	Root *yaml.Node
}

// Route is one handler together with the controller and segment it belongs to.
type Route struct {
	Segment            string
	Controller         string
	OriginalController string
	Prefix             string
	// Adapter is the validation library name as written in the document.
	Adapter    string
	Handler    string
	HTTPMethod string
	Path       string
	Streaming  bool
	Operation  *openapi3.Operation
	// Validation maps each declared slot to its raw descriptor.
	Validation map[ir.Slot]*yaml.Node
}

// Location returns the route's identity for error reporting.
func (r Route) Location() ir.Location {
	return ir.Location{Controller: r.Controller, Endpoint: r.Handler}
}

// Definition returns the raw descriptor registered under name.
func (d *Document) Definition(name string) (*yaml.Node, bool) {
	for _, p := range d.Definitions {
		if p.Key == name {
			return p.Value, true
		}
	}
	return nil, false
}

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

var slotKeys = map[string]ir.Slot{
	"body":      ir.SlotBody,
	"query":     ir.SlotQuery,
	"params":    ir.SlotParams,
	"output":    ir.SlotOutput,
	"iteration": ir.SlotIteration,
}

// refPrefixes are the JSON pointer prefixes accepted in "$ref" values.
var refPrefixes = []string{"#/definitions/", "#/$defs/", "#/components/schemas/"}

// RefName extracts the definition name from a "$ref" value.
func RefName(ref string) (string, bool) {
	for _, p := range refPrefixes {
		if strings.HasPrefix(ref, p) {
			name := strings.TrimPrefix(ref, p)
			return name, name != ""
		}
	}
	return "", false
}

// Load reads and parses the schema document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ir.SchemaLoadError{Source: path, Msg: "read failed", Err: err}
	}
	doc, err := Parse(data)
	if err != nil {
		if le, ok := err.(*ir.SchemaLoadError); ok {
			le.Source = path
		}
		return nil, err
	}
	doc.Source = path
	return doc, nil
}

// Parse parses a JSON or YAML schema document.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	var root *yaml.Node
	if looksLikeJSON(data) {
		n, err := decodeJSON(data)
		if err != nil {
			return nil, &ir.SchemaLoadError{Msg: "invalid JSON", Err: err}
		}
		root = n
	} else {
		var n yaml.Node
		if err := yaml.Unmarshal(data, &n); err != nil {
			return nil, &ir.SchemaLoadError{Msg: "invalid YAML", Err: err}
		}
		root = Deref(&n)
	}
	if !IsMapping(root) {
		return nil, &ir.SchemaLoadError{Msg: "document must be a mapping"}
	}

	doc := &Document{Root: root}
	var err error
	if doc.APIRoot, err = String(root, "apiRoot"); err != nil {
		return nil, &ir.SchemaLoadError{Msg: "invalid apiRoot", Err: err}
	}
	for _, key := range []string{"definitions", "$defs"} {
		defs, err := Pairs(Lookup(root, key))
		if err != nil {
			return nil, &ir.SchemaLoadError{Msg: "invalid " + key, Err: err}
		}
		doc.Definitions = append(doc.Definitions, defs...)
	}

	segments := Lookup(root, "segments")
	if segments == nil {
		return nil, &ir.SchemaLoadError{Msg: `missing "segments" mapping`}
	}
	segPairs, err := Pairs(segments)
	if err != nil {
		return nil, &ir.SchemaLoadError{Msg: "invalid segments", Err: err}
	}

	owner := make(map[string]string)
	for _, seg := range segPairs {
		routes, err := parseSegment(seg, owner)
		if err != nil {
			return nil, err
		}
		doc.Routes = append(doc.Routes, routes...)
	}

	if err := doc.checkRefs(); err != nil {
		return nil, err
	}
	return doc, nil
}

func parseSegment(seg Pair, owner map[string]string) ([]Route, error) {
	name, err := String(seg.Value, "segmentName")
	if err != nil {
		return nil, &ir.SchemaLoadError{Msg: "segment " + seg.Key, Err: err}
	}
	if name == "" {
		name = seg.Key
	}
	controllers, err := Pairs(Lookup(seg.Value, "controllers"))
	if err != nil {
		return nil, &ir.SchemaLoadError{Msg: "segment " + seg.Key + " controllers", Err: err}
	}

	var routes []Route
	for _, ctrl := range controllers {
		moduleName, err := String(ctrl.Value, "rpcModuleName")
		if err != nil {
			return nil, &ir.SchemaLoadError{Location: ir.Location{Controller: ctrl.Key}, Msg: "invalid controller", Err: err}
		}
		if moduleName == "" {
			moduleName = ctrl.Key
		}
		if prev, ok := owner[moduleName]; ok {
			return nil, &ir.SchemaLoadError{
				Location: ir.Location{Controller: moduleName},
				Msg:      fmt.Sprintf("controller declared in segments %q and %q", prev, name),
			}
		}
		owner[moduleName] = name

		base := Route{Segment: name, Controller: moduleName}
		fields := []struct {
			key string
			dst *string
		}{
			{"originalControllerName", &base.OriginalController},
			{"prefix", &base.Prefix},
			{"validationLibrary", &base.Adapter},
		}
		for _, f := range fields {
			if *f.dst, err = String(ctrl.Value, f.key); err != nil {
				return nil, &ir.SchemaLoadError{Location: ir.Location{Controller: moduleName}, Msg: "invalid controller", Err: err}
			}
		}

		handlers, err := Pairs(Lookup(ctrl.Value, "handlers"))
		if err != nil {
			return nil, &ir.SchemaLoadError{Location: ir.Location{Controller: moduleName}, Msg: "invalid handlers", Err: err}
		}
		for _, h := range handlers {
			route := base
			route.Handler = h.Key
			if err := parseHandler(h.Value, &route); err != nil {
				return nil, err
			}
			routes = append(routes, route)
		}
	}
	return routes, nil
}

func parseHandler(n *yaml.Node, route *Route) error {
	loc := route.Location()
	fail := func(msg string, err error) error {
		return &ir.SchemaLoadError{Location: loc, Msg: msg, Err: err}
	}
	if !IsMapping(n) {
		return fail("handler must be a mapping", nil)
	}

	method, err := String(n, "httpMethod")
	if err != nil {
		return fail("invalid handler", err)
	}
	method = strings.ToUpper(method)
	if !httpMethods[method] {
		return fail(fmt.Sprintf("unsupported http method %q", method), nil)
	}
	route.HTTPMethod = method

	if route.Path, err = String(n, "path"); err != nil {
		return fail("invalid handler", err)
	}
	streaming, _, err := Bool(n, "streaming")
	if err != nil {
		return fail("invalid handler", err)
	}

	if route.Operation, err = parseOperation(Lookup(n, "openapi")); err != nil {
		return fail("invalid openapi metadata", err)
	}

	validation, err := Pairs(Lookup(n, "validation"))
	if err != nil {
		return fail("invalid validation", err)
	}
	route.Validation = make(map[ir.Slot]*yaml.Node, len(validation))
	for _, v := range validation {
		slot, ok := slotKeys[v.Key]
		if !ok {
			return fail(fmt.Sprintf("unknown validation slot %q", v.Key), nil)
		}
		if IsNull(v.Value) {
			continue
		}
		route.Validation[slot] = v.Value
	}
	if route.Validation[ir.SlotOutput] != nil && route.Validation[ir.SlotIteration] != nil {
		return fail("output and iteration cannot both be declared", nil)
	}
	route.Streaming = streaming || route.Validation[ir.SlotIteration] != nil
	return nil
}

type operationMeta struct {
	Summary     string   `yaml:"summary"`
	Description string   `yaml:"description"`
	OperationID string   `yaml:"operationId"`
	Deprecated  bool     `yaml:"deprecated"`
	Tags        []string `yaml:"tags"`
}

func parseOperation(n *yaml.Node) (*openapi3.Operation, error) {
	if IsNull(n) {
		return nil, nil
	}
	var meta operationMeta
	if err := n.Decode(&meta); err != nil {
		return nil, err
	}
	op := openapi3.NewOperation()
	op.Summary = meta.Summary
	op.Description = meta.Description
	op.OperationID = meta.OperationID
	op.Deprecated = meta.Deprecated
	op.Tags = meta.Tags
	return op, nil
}

// checkRefs verifies that every "$ref" resolves to a definition and that
// definitions do not reference themselves directly or transitively.
func (d *Document) checkRefs() error {
	edges := make(map[string][]string, len(d.Definitions))
	for _, def := range d.Definitions {
		refs, err := collectRefs(def.Value)
		if err != nil {
			return &ir.SchemaLoadError{Location: ir.Location{Path: []string{"definitions", def.Key}}, Msg: "invalid reference", Err: err}
		}
		for _, r := range refs {
			if _, ok := d.Definition(r); !ok {
				return &ir.SchemaLoadError{Location: ir.Location{Path: []string{"definitions", def.Key}}, Msg: fmt.Sprintf("unresolved reference %q", r)}
			}
		}
		edges[def.Key] = refs
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(edges))
	var visit func(name string, trail []string) error
	visit = func(name string, trail []string) error {
		switch color[name] {
		case grey:
			return &ir.SchemaLoadError{
				Location: ir.Location{Path: []string{"definitions", name}},
				Msg:      "reference cycle " + strings.Join(append(trail, name), " -> "),
			}
		case black:
			return nil
		}
		color[name] = grey
		for _, next := range edges[name] {
			if err := visit(next, append(trail, name)); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}
	for _, def := range d.Definitions {
		if err := visit(def.Key, nil); err != nil {
			return err
		}
	}

	for _, r := range d.Routes {
		for _, slot := range ir.Slots {
			refs, err := collectRefs(r.Validation[slot])
			if err != nil {
				return &ir.SchemaLoadError{Location: r.Location(), Msg: "invalid reference", Err: err}
			}
			for _, ref := range refs {
				if _, ok := d.Definition(ref); !ok {
					return &ir.SchemaLoadError{
						Location: ir.Location{Controller: r.Controller, Endpoint: r.Handler, Path: []string{string(slot)}},
						Msg:      fmt.Sprintf("unresolved reference %q", ref),
					}
				}
			}
		}
	}
	return nil
}

// collectRefs returns the definition names referenced anywhere below n.
func collectRefs(n *yaml.Node) ([]string, error) {
	var refs []string
	stack := []*yaml.Node{n}
	for len(stack) > 0 {
		cur := Deref(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		if cur == nil {
			continue
		}
		switch cur.Kind {
		case yaml.MappingNode:
			for i := 0; i+1 < len(cur.Content); i += 2 {
				if cur.Content[i].Value == "$ref" {
					val := Deref(cur.Content[i+1])
					name, ok := "", false
					if val != nil {
						name, ok = RefName(val.Value)
					}
					if !ok {
						return nil, fmt.Errorf("unsupported $ref at line %d", cur.Line)
					}
					refs = append(refs, name)
					continue
				}
				stack = append(stack, cur.Content[i+1])
			}
		case yaml.SequenceNode:
			stack = append(stack, cur.Content...)
		}
	}
	return refs, nil
}
