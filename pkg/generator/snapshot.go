package generator

import (
	"bytes"
	"sort"
	"strings"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
)

// Snapshot renders the normalized service as the full-schema.json document
// exposed by generated index units. Shapes are written as JSON Schema and
// shared references land under "definitions". Output is deterministic.
func Snapshot(svc *ir.Service) ([]byte, error) {
	var buf bytes.Buffer
	enc := jsontext.NewEncoder(&buf, jsontext.WithIndent("  "))
	w := &snapshotWriter{enc: enc, defs: make(map[string]*ir.Shape)}

	w.begin('{')
	w.str("apiRoot")
	w.str(svc.APIRoot)
	w.str("controllers")
	w.begin('{')
	for _, c := range svc.Controllers {
		w.str(c.Name)
		w.controller(c)
	}
	w.end('}')
	if len(w.defs) > 0 {
		w.str("definitions")
		w.definitions()
	}
	w.end('}')
	if w.err != nil {
		return nil, w.err
	}
	return buf.Bytes(), nil
}

type snapshotWriter struct {
	enc  *jsontext.Encoder
	defs map[string]*ir.Shape
	err  error
}

func (w *snapshotWriter) token(t jsontext.Token) {
	if w.err == nil {
		w.err = w.enc.WriteToken(t)
	}
}

func (w *snapshotWriter) value(v jsontext.Value) {
	if w.err == nil {
		w.err = w.enc.WriteValue(v)
	}
}

func (w *snapshotWriter) begin(kind byte) {
	if kind == '[' {
		w.token(jsontext.BeginArray)
		return
	}
	w.token(jsontext.BeginObject)
}

func (w *snapshotWriter) end(kind byte) {
	if kind == ']' {
		w.token(jsontext.EndArray)
		return
	}
	w.token(jsontext.EndObject)
}

func (w *snapshotWriter) str(s string) { w.token(jsontext.String(s)) }

func (w *snapshotWriter) field(name, val string) {
	if val == "" {
		return
	}
	w.str(name)
	w.str(val)
}

func (w *snapshotWriter) controller(c *ir.Controller) {
	w.begin('{')
	w.field("rpcModuleName", c.Name)
	w.field("originalControllerName", c.OriginalName)
	w.field("segmentName", c.Segment)
	w.field("prefix", c.Prefix)
	w.field("validationLibrary", string(c.Adapter))
	w.str("handlers")
	w.begin('{')
	for _, ep := range c.Endpoints {
		w.str(ep.Name)
		w.endpoint(ep)
	}
	w.end('}')
	w.end('}')
}

func (w *snapshotWriter) endpoint(ep *ir.Endpoint) {
	w.begin('{')
	w.field("httpMethod", ep.HTTPMethod)
	w.str("path")
	w.str(ep.Path)
	w.field("fullPath", ep.FullPath)
	if ep.Streaming {
		w.str("streaming")
		w.token(jsontext.True)
	}
	if ep.Operation != nil {
		w.str("openapi")
		w.begin('{')
		w.field("summary", ep.Operation.Summary)
		w.field("description", ep.Operation.Description)
		w.field("operationId", ep.Operation.OperationID)
		if ep.Operation.Deprecated {
			w.str("deprecated")
			w.token(jsontext.True)
		}
		if len(ep.Operation.Tags) > 0 {
			w.str("tags")
			w.begin('[')
			for _, t := range ep.Operation.Tags {
				w.str(t)
			}
			w.end(']')
		}
		w.end('}')
	}
	present := false
	for _, slot := range ir.Slots {
		if ep.Shape(slot) != nil {
			present = true
		}
	}
	if present {
		w.str("validation")
		w.begin('{')
		for _, slot := range ir.Slots {
			if s := ep.Shape(slot); s != nil {
				w.str(strings.ToLower(string(slot)))
				w.shape(s)
			}
		}
		w.end('}')
	}
	w.end('}')
}

// shape writes s as JSON Schema. Unknown and nil shapes are {}.
func (w *snapshotWriter) shape(s *ir.Shape) {
	w.begin('{')
	if s == nil {
		w.end('}')
		return
	}
	switch s.Kind {
	case ir.KindPrimitive:
		w.str("type")
		w.str(string(s.Primitive))
	case ir.KindLiteral:
		w.str("enum")
		w.begin('[')
		for _, l := range s.Literals {
			w.value(jsontext.Value(l.Raw))
		}
		w.end(']')
	case ir.KindObject:
		w.str("type")
		w.str("object")
		w.str("properties")
		w.begin('{')
		var required []string
		for _, f := range s.Fields {
			w.str(f.Name)
			w.shape(f.Shape)
			if f.Required {
				required = append(required, f.Name)
			}
		}
		w.end('}')
		if len(required) > 0 {
			w.str("required")
			w.begin('[')
			for _, r := range required {
				w.str(r)
			}
			w.end(']')
		}
		w.str("additionalProperties")
		w.token(jsontext.False)
	case ir.KindArray:
		w.str("type")
		w.str("array")
		w.str("items")
		w.shape(s.Elem)
	case ir.KindRef:
		if _, ok := w.defs[s.Ref]; !ok {
			w.defs[s.Ref] = s.Target
		}
		w.str("$ref")
		w.str("#/definitions/" + s.Ref)
	}
	w.end('}')
}

// definitions writes every referenced definition, including the ones only
// reached from other definitions. The smallest pending name goes first.
func (w *snapshotWriter) definitions() {
	w.begin('{')
	written := make(map[string]bool)
	for {
		var pending []string
		for name := range w.defs {
			if !written[name] {
				pending = append(pending, name)
			}
		}
		if len(pending) == 0 {
			break
		}
		sort.Strings(pending)
		name := pending[0]
		written[name] = true
		w.str(name)
		w.shape(w.defs[name])
	}
	w.end('}')
}
