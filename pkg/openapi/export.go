// Package openapi exports a built service as an OpenAPI 3 document.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	jsonv2 "github.com/go-json-experiment/json"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
)

// ErrorResponseSchema is the component every operation's default response refers to.
const ErrorResponseSchema = "VovkErrorResponse"

// Options controls Export.
type Options struct {
	Title   string
	Version string
	// ServerURL is the API root the paths are relative to.
	ServerURL string
}

type exporter struct {
	schemas openapi3.Schemas
}

// Export builds an OpenAPI document from svc and validates it.
func Export(ctx context.Context, svc *ir.Service, opts Options) (*openapi3.T, error) {
	if opts.Title == "" {
		opts.Title = "RPC API"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	e := &exporter{schemas: openapi3.Schemas{ErrorResponseSchema: errorResponse()}}

	paths := openapi3.NewPaths()
	for _, c := range svc.Controllers {
		for _, ep := range c.Endpoints {
			op, err := e.operation(ep)
			if err != nil {
				return nil, err
			}
			key := openAPIPath(ep.FullPath)
			item := paths.Value(key)
			if item == nil {
				item = &openapi3.PathItem{}
				paths.Set(key, item)
			}
			if item.GetOperation(ep.HTTPMethod) != nil {
				return nil, fmt.Errorf("%s %s is declared by more than one handler (second: %s.%s)", ep.HTTPMethod, key, ep.Controller, ep.Name)
			}
			item.SetOperation(ep.HTTPMethod, op)
		}
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   opts.Title,
			Version: opts.Version,
		},
		Components: &openapi3.Components{
			Schemas: e.schemas,
		},
		Paths: paths,
	}
	if opts.ServerURL != "" {
		doc.Servers = openapi3.Servers{{URL: opts.ServerURL}}
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("exported document is invalid: %w", err)
	}
	return doc, nil
}

// Marshal renders doc as indented JSON.
func Marshal(doc *openapi3.T) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// openAPIPath rewrites :token segments as {token}.
func openAPIPath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			segs[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segs, "/")
}

func (e *exporter) operation(ep *ir.Endpoint) (*openapi3.Operation, error) {
	op := openapi3.NewOperation()
	if ep.Operation != nil {
		op.Summary = ep.Operation.Summary
		op.Description = ep.Operation.Description
		op.Deprecated = ep.Operation.Deprecated
		op.OperationID = ep.Operation.OperationID
		op.Tags = append(op.Tags, ep.Operation.Tags...)
	}
	if op.OperationID == "" {
		op.OperationID = ep.Controller + "_" + ep.Name
	}
	if len(op.Tags) == 0 {
		op.Tags = []string{ep.Controller}
	}

	if params := ir.Resolve(ep.Params); params != nil {
		for _, f := range params.Fields {
			s, err := e.schema(f.Shape)
			if err != nil {
				return nil, err
			}
			op.AddParameter(openapi3.NewPathParameter(f.Name).WithSchema(s.Value))
		}
	}
	if query := ir.Resolve(ep.Query); query != nil {
		if query.Kind != ir.KindObject {
			return nil, fmt.Errorf("%s.%s: query shape must be an object to export, got %s", ep.Controller, ep.Name, query.Kind)
		}
		for _, f := range query.Fields {
			s, err := e.schema(f.Shape)
			if err != nil {
				return nil, err
			}
			p := &openapi3.Parameter{In: openapi3.ParameterInQuery, Name: f.Name, Required: f.Required, Schema: s}
			if k := ir.Resolve(f.Shape).Kind; k == ir.KindObject {
				p.Style = openapi3.SerializationDeepObject
				explode := true
				p.Explode = &explode
			}
			op.AddParameter(p)
		}
	}
	if ep.Body != nil {
		s, err := e.schema(ep.Body)
		if err != nil {
			return nil, err
		}
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content:  openapi3.Content{"application/json": &openapi3.MediaType{Schema: s}},
			},
		}
	}

	result, contentType := ep.Output, "application/json"
	if ep.Streaming {
		result, contentType = ep.Iteration, "application/jsonl"
	}
	var resultSchema *openapi3.SchemaRef
	if result != nil {
		s, err := e.schema(result)
		if err != nil {
			return nil, err
		}
		resultSchema = s
	} else {
		resultSchema = &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}
	ok := "Successful response"
	failure := "Error response"
	op.Responses = openapi3.NewResponses()
	op.Responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &ok,
			Content:     openapi3.Content{contentType: &openapi3.MediaType{Schema: resultSchema}},
		},
	})
	op.Responses.Set("default", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &failure,
			Content: openapi3.Content{"application/json": &openapi3.MediaType{
				Schema: e.ref(ErrorResponseSchema),
			}},
		},
	})
	return op, nil
}

// schema converts s. References become component refs; their targets are
// converted once.
func (e *exporter) schema(s *ir.Shape) (*openapi3.SchemaRef, error) {
	switch s.Kind {
	case ir.KindRef:
		if _, ok := e.schemas[s.Ref]; !ok {
			// Reserve the name first so cyclic walks terminate; the
			// placeholder is filled in place so earlier refs see the target.
			placeholder := &openapi3.Schema{}
			e.schemas[s.Ref] = &openapi3.SchemaRef{Value: placeholder}
			target, err := e.schema(s.Target)
			if err != nil {
				return nil, err
			}
			*placeholder = *target.Value
		}
		return e.ref(s.Ref), nil
	case ir.KindPrimitive:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{string(s.Primitive)}}}, nil
	case ir.KindLiteral:
		out := &openapi3.Schema{}
		for _, l := range s.Literals {
			var v any
			if err := jsonv2.Unmarshal([]byte(l.Raw), &v); err != nil {
				return nil, fmt.Errorf("literal %s: %w", l.Raw, err)
			}
			out.Enum = append(out.Enum, v)
		}
		if kinds := s.LiteralKinds(); len(kinds) == 1 {
			out.Type = &openapi3.Types{string(kinds[0])}
		}
		return &openapi3.SchemaRef{Value: out}, nil
	case ir.KindObject:
		out := &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeObject}, Properties: openapi3.Schemas{}}
		for _, f := range s.Fields {
			fs, err := e.schema(f.Shape)
			if err != nil {
				return nil, err
			}
			out.Properties[f.Name] = fs
			if f.Required {
				out.Required = append(out.Required, f.Name)
			}
		}
		return &openapi3.SchemaRef{Value: out}, nil
	case ir.KindArray:
		items, err := e.schema(s.Elem)
		if err != nil {
			return nil, err
		}
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeArray}, Items: items}}, nil
	}
	return &openapi3.SchemaRef{Value: &openapi3.Schema{}}, nil
}

// ref points at a component schema. The resolved value travels with the
// reference because Validate rejects bare refs in a document built in memory.
func (e *exporter) ref(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name, Value: e.schemas[name].Value}
}

func errorResponse() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:        &openapi3.Types{openapi3.TypeObject},
			Description: "Error body returned by failed handlers",
			Properties: openapi3.Schemas{
				"statusCode": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeInteger}}},
				"message":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeString}}},
				"isError":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeBoolean}, Enum: []any{true}}},
			},
			Required: []string{"statusCode", "message", "isError"},
		},
	}
}
