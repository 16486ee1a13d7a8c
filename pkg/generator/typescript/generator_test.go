package typescript

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/go-cmp/cmp"

	"github.com/blimu-dev/rpc-gen/pkg/config"
	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/naming"
	"github.com/blimu-dev/rpc-gen/pkg/output"
)

func str() *ir.Shape { return ir.NewPrimitive(ir.String) }

func req(name string, s *ir.Shape) ir.Field { return ir.Field{Name: name, Shape: s, Required: true} }

func opt(name string, s *ir.Shape) ir.Field { return ir.Field{Name: name, Shape: s} }

func helloService() *ir.Service {
	greet := &ir.Endpoint{
		Controller: "HelloWorld",
		Name:       "greet",
		HTTPMethod: "GET",
		FullPath:   "/hello/:name",
		Summary:    "Greets someone",
		Params:     ir.NewObject(req("name", str())),
		Output:     ir.NewObject(req("message", str()), opt("x-trace", str())),
		Operation:  &openapi3.Operation{Deprecated: true},
	}
	search := &ir.Endpoint{
		Controller: "HelloWorld",
		Name:       "search",
		HTTPMethod: "POST",
		FullPath:   "/hello/search",
		Body: ir.NewObject(
			req("term", str()),
			opt("filters", ir.NewArray(ir.NewObject(req("key", str())))),
			req("mode", ir.NewLiteralUnion(ir.Literal{Kind: ir.String, Raw: `"fast"`}, ir.Literal{Kind: ir.Number, Raw: "2"})),
			opt("extra", ir.NewUnknown()),
			opt("empty", ir.NewObject()),
		),
	}
	stream := &ir.Endpoint{
		Controller: "HelloWorld",
		Name:       "stream",
		HTTPMethod: "GET",
		FullPath:   "/hello/stream",
		Streaming:  true,
		Iteration:  ir.NewObject(req("token", str())),
	}
	return &ir.Service{
		APIRoot: "/api",
		Controllers: []*ir.Controller{{
			Name:      "HelloWorld",
			Endpoints: []*ir.Endpoint{greet, search, stream},
		}},
	}
}

func emit(t *testing.T, client config.Client, svc *ir.Service) ([]output.Unit, error) {
	t.Helper()
	g := NewTypeScriptGenerator()
	reg, err := naming.New(g.Style(), nil).Name(svc)
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	return g.Emit(client, svc, reg)
}

func unitMap(units []output.Unit) map[string]string {
	m := make(map[string]string, len(units))
	for _, u := range units {
		m[u.Path] = string(u.Content)
	}
	return m
}

func TestEmitUnits(t *testing.T) {
	units, err := emit(t, config.Client{Name: "ts"}, helloService())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	var paths []string
	for _, u := range units {
		paths = append(paths, u.Path)
	}
	if diff := cmp.Diff([]string{"hello-world.ts", "index.ts"}, paths); diff != "" {
		t.Errorf("unit paths mismatch (-want +got):\n%s", diff)
	}

	mod := unitMap(units)["hello-world.ts"]
	for _, want := range []string{
		"// Code generated by rpc-gen. DO NOT EDIT.",
		"import { config, endpointUrl, substitutePathParam, openStream, type StreamAsyncIterator } from './index';",
		"export type greet_Params = {\n  name: string;\n};",
		"export type greet_Output = {\n  message: string;\n  \"x-trace\"?: string;\n};",
		"   * HelloWorld.greet GET /api/hello/:name\n   *\n   * Greets someone\n   * @deprecated\n   */",
		"    body: undefined,\n    query: undefined,\n    params: greet_Params,",
		"  ): Promise<greet_Output> {",
		`url = substitutePathParam(url, "name", params.name);`,
		"export type search_Body_filters_items = {\n  key: string;\n};",
		"  filters?: Array<search_Body_filters_items>;",
		"  mode: \"fast\" | 2;",
		"  extra?: unknown;",
		"  empty?: search_Body_empty;",
		"export type search_Body_empty = Record<string, never>;",
		"   * No summary",
		"  ): Promise<unknown> {",
		"  ): Promise<StreamAsyncIterator<stream_Iteration>> {",
		"      streaming: true,\n    }).then((stream) => openStream<stream_Iteration>(stream as ReadableStream<Uint8Array>));",
		"      streaming: false,\n    }) as Promise<greet_Output>;",
		"} as const;",
	} {
		if !strings.Contains(mod, want) {
			t.Errorf("hello-world.ts does not contain %q\n%s", want, mod)
		}
	}
}

func TestEmitIndex(t *testing.T) {
	units, err := emit(t, config.Client{Name: "ts", EmitSchema: true}, helloService())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	index := unitMap(units)["index.ts"]
	for _, want := range []string{
		`import fullSchema from "./full-schema.json";`,
		`  apiRoot: "/api",`,
		"export { fullSchema };",
		"export { HelloWorld } from './hello-world';",
		"export type * as HelloWorldTypes from './hello-world';",
		"export class StreamError extends Error {",
		"export function openStream<T>(stream: ReadableStream<Uint8Array>): StreamAsyncIterator<T> {",
		"if (frame !== null && typeof frame === 'object' && frame.isError === true) {\n            throw new StreamError(frame.reason);",
	} {
		if !strings.Contains(index, want) {
			t.Errorf("index.ts does not contain %q\n%s", want, index)
		}
	}
}

func TestNoRequestTypes(t *testing.T) {
	ping := &ir.Endpoint{Controller: "Health", Name: "ping", HTTPMethod: "GET", FullPath: "/health/"}
	svc := &ir.Service{APIRoot: "/api", Controllers: []*ir.Controller{{Name: "Health", Endpoints: []*ir.Endpoint{ping}}}}
	units, err := emit(t, config.Client{Name: "ts"}, svc)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	m := unitMap(units)
	mod := m["health.ts"]
	if strings.Contains(mod, "export type") {
		t.Errorf("no types should be declared\n%s", mod)
	}
	if !strings.Contains(mod, "import { config, endpointUrl } from './index';") {
		t.Errorf("unexpected runtime imports\n%s", mod)
	}
	if strings.Contains(m["index.ts"], "HealthTypes") {
		t.Errorf("a controller without types must not re-export a types namespace")
	}
}

func TestEmitDeterministic(t *testing.T) {
	first, err := emit(t, config.Client{Name: "ts"}, helloService())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	second, err := emit(t, config.Client{Name: "ts"}, helloService())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	for i := range first {
		if !bytes.Equal(first[i].Content, second[i].Content) {
			t.Errorf("%s differs between runs", first[i].Path)
		}
	}
}

func TestEmissionErrors(t *testing.T) {
	tests := []struct {
		name string
		ctrl string
	}{
		{"reserved word", "delete"},
		{"not an identifier", "hello-world"},
		{"shadows the config import", "config"},
		{"shadows an index export", "StreamError"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			svc := helloService()
			svc.Controllers[0].Name = test.ctrl
			_, err := emit(t, config.Client{Name: "ts"}, svc)
			var ee *ir.EmissionError
			if !errors.As(err, &ee) || ee.Target != "typescript" {
				t.Fatalf("expected a typescript EmissionError, got %v", err)
			}
		})
	}
}

func TestQuoteTSPropertyName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"name", "name"},
		{"_id", "_id"},
		{"$ref", "$ref"},
		{"x2", "x2"},
		{"2x", `"2x"`},
		{"x-trace", `"x-trace"`},
		{"", `""`},
	}
	for _, test := range tests {
		if got := quoteTSPropertyName(test.input); got != test.expected {
			t.Errorf("quoteTSPropertyName(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}
}
