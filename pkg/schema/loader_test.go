package schema

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
)

func TestLoadFixture(t *testing.T) {
	doc, err := Load(filepath.Join("..", "..", "testdata", "schema.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.APIRoot != "/api" {
		t.Errorf("APIRoot = %q, expected /api", doc.APIRoot)
	}
	if _, ok := doc.Definition("Address"); !ok {
		t.Errorf("definition Address not loaded")
	}

	type routeKey struct {
		Segment, Controller, Handler, Method, Path string
		Streaming                                  bool
	}
	var got []routeKey
	for _, r := range doc.Routes {
		got = append(got, routeKey{r.Segment, r.Controller, r.Handler, r.HTTPMethod, r.Path, r.Streaming})
	}
	expected := []routeKey{
		{"", "UserRPC", "getUser", "GET", ":id", false},
		{"", "UserRPC", "updateUser", "POST", ":id/update", false},
		{"", "StreamRPC", "streamTokens", "POST", "tokens", true},
		{"", "HealthRPC", "ping", "GET", "", false},
		{"admin", "AdminRPC", "listThings", "GET", "list", false},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}

	update := doc.Routes[1]
	if update.Operation == nil || !update.Operation.Deprecated || update.Operation.Summary != "Update a user" {
		t.Errorf("openapi metadata not decoded: %+v", update.Operation)
	}
	if update.OriginalController != "UserController" || update.Prefix != "users" || update.Adapter != "zod" {
		t.Errorf("controller fields not copied: %+v", update)
	}
	if _, ok := update.Validation[ir.SlotQuery]; ok {
		t.Errorf("undeclared query slot should be absent")
	}
	if _, ok := update.Validation[ir.SlotBody]; !ok {
		t.Errorf("declared body slot missing")
	}
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"apiRoot": "https://example.com/api",
		"segments": {
			"": {
				"controllers": {
					"HelloRPC": {
						"rpcModuleName": "HelloRPC",
						"prefix": "hello",
						"validationLibrary": "zod",
						"handlers": {
							"greet": {
								"httpMethod": "post",
								"path": "",
								"validation": {
									"body": {"type": "object", "properties": {"n": {"type": "number", "const": 1.5}}},
									"query": null
								}
							}
						}
					}
				}
			}
		}
	}`)
	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(doc.Routes))
	}
	r := doc.Routes[0]
	if r.HTTPMethod != "POST" {
		t.Errorf("HTTPMethod = %q, expected POST", r.HTTPMethod)
	}
	if _, ok := r.Validation[ir.SlotQuery]; ok {
		t.Errorf("null query slot should be absent")
	}
	n := Lookup(Lookup(Lookup(r.Validation[ir.SlotBody], "properties"), "n"), "const")
	if n == nil || n.Value != "1.5" || n.ShortTag() != "!!float" {
		t.Errorf("numeric scalar decoded as %+v", n)
	}
}

func TestDecodeJSONKeepsKeyOrder(t *testing.T) {
	root, err := decodeJSON([]byte(`{"zeta": {"inner": 1}, "alpha": [true, null, "x"], "mid": -2.5e3}`))
	if err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	pairs, err := Pairs(root)
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	var keys []string
	for _, p := range pairs {
		keys = append(keys, p.Key)
	}
	if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, keys); diff != "" {
		t.Errorf("key order mismatch (-want +got):\n%s", diff)
	}
	if inner := Lookup(Lookup(root, "zeta"), "inner"); inner == nil || inner.Value != "1" || inner.ShortTag() != "!!int" {
		t.Errorf("nested scalar decoded as %+v", inner)
	}
	if arr := Lookup(root, "alpha"); arr == nil || len(arr.Content) != 3 || arr.Content[1].ShortTag() != "!!null" {
		t.Errorf("array decoded as %+v", arr)
	}
	if mid := Lookup(root, "mid"); mid == nil || mid.Value != "-2.5e3" || mid.ShortTag() != "!!float" {
		t.Errorf("float decoded as %+v", mid)
	}

	doc, err := Parse([]byte(`{"apiRoot": "/api", "segments": {}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.APIRoot != "/api" || len(doc.Routes) != 0 {
		t.Errorf("minimal document parsed as %+v", doc)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "not a mapping",
			doc:  "- a\n- b\n",
			want: "document must be a mapping",
		},
		{
			name: "missing segments",
			doc:  "apiRoot: /api\n",
			want: `missing "segments"`,
		},
		{
			name: "unknown slot",
			doc: `segments:
  "":
    controllers:
      A:
        handlers:
          h:
            httpMethod: GET
            path: x
            validation:
              headers: {}
`,
			want: `unknown validation slot "headers"`,
		},
		{
			name: "unsupported method",
			doc: `segments:
  "":
    controllers:
      A:
        handlers:
          h:
            httpMethod: TRACE
            path: x
`,
			want: `unsupported http method "TRACE"`,
		},
		{
			name: "output and iteration",
			doc: `segments:
  "":
    controllers:
      A:
        handlers:
          h:
            httpMethod: GET
            path: x
            validation:
              output: {type: string}
              iteration: {type: string}
`,
			want: "output and iteration cannot both be declared",
		},
		{
			name: "controller in two segments",
			doc: `segments:
  a:
    controllers:
      A:
        handlers: {}
  b:
    controllers:
      A:
        handlers: {}
`,
			want: `controller declared in segments "a" and "b"`,
		},
		{
			name: "unresolved reference",
			doc: `segments:
  "":
    controllers:
      A:
        handlers:
          h:
            httpMethod: GET
            path: x
            validation:
              body: {$ref: "#/definitions/Missing"}
`,
			want: `unresolved reference "Missing"`,
		},
		{
			name: "reference cycle",
			doc: `definitions:
  A:
    type: object
    properties:
      b: {$ref: "#/definitions/B"}
  B:
    type: object
    properties:
      a: {$ref: "#/definitions/A"}
segments: {}
`,
			want: "reference cycle A -> B -> A",
		},
		{
			name: "duplicate json key",
			doc:  `{"segments": {}, "segments": {}}`,
			want: "invalid JSON",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.doc))
			if err == nil {
				t.Fatalf("expected an error containing %q", test.want)
			}
			var le *ir.SchemaLoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected a SchemaLoadError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not contain %q", err.Error(), test.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	var le *ir.SchemaLoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected a SchemaLoadError, got %v", err)
	}
	if !strings.HasSuffix(le.Source, "missing.json") {
		t.Errorf("Source = %q", le.Source)
	}
}

func TestRefName(t *testing.T) {
	tests := []struct {
		ref  string
		name string
		ok   bool
	}{
		{"#/definitions/User", "User", true},
		{"#/$defs/User", "User", true},
		{"#/components/schemas/User", "User", true},
		{"#/definitions/", "", false},
		{"other.json#/User", "", false},
	}
	for _, test := range tests {
		name, ok := RefName(test.ref)
		if name != test.name || ok != test.ok {
			t.Errorf("RefName(%q) = %q, %v, expected %q, %v", test.ref, name, ok, test.name, test.ok)
		}
	}
}
