package python

import (
	"bytes"
	"errors"
	"strings"
	"testing"

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
		Output:     ir.NewObject(req("message", str())),
	}
	search := &ir.Endpoint{
		Controller: "HelloWorld",
		Name:       "search",
		HTTPMethod: "POST",
		FullPath:   "/hello/search",
		Body: ir.NewObject(
			req("term", str()),
			opt("limit", ir.NewPrimitive(ir.Number)),
			opt("filters", ir.NewArray(ir.NewObject(req("key", str())))),
			req("mode", ir.NewLiteralUnion(ir.Literal{Kind: ir.String, Raw: `"fast"`}, ir.Literal{Kind: ir.String, Raw: `"full"`})),
			req("strict", ir.NewLiteralUnion(ir.Literal{Kind: ir.Boolean, Raw: "true"})),
			opt("extra", ir.NewUnknown()),
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
	g := NewPythonGenerator()
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
	units, err := emit(t, config.Client{Name: "py"}, helloService())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	var paths []string
	for _, u := range units {
		paths = append(paths, u.Path)
	}
	if diff := cmp.Diff([]string{"hello_world.py", "__init__.py"}, paths); diff != "" {
		t.Errorf("unit paths mismatch (-want +got):\n%s", diff)
	}

	mod := unitMap(units)["hello_world.py"]
	for _, want := range []string{
		"# Code generated by rpc-gen. DO NOT EDIT.",
		"class HelloWorld:",
		"    class greet_Params(TypedDict):\n        name: str",
		"    # HelloWorld.greet GET /api/hello/:name",
		"        body: None,\n        query: None,\n        params: HelloWorld.greet_Params,",
		") -> HelloWorld.greet_Output:",
		`        """` + "\n        Greets someone\n" + `        """`,
		`url = _root().endpoint_url(api_root, "/hello/:name")`,
		`url = _root().substitute_path_param(url, "name", params["name"])`,
		"            streaming=False,",
		"    class search_Body_filters_items(TypedDict):\n        key: str",
		"        limit: NotRequired[float]",
		"        filters: NotRequired[List[HelloWorld.search_Body_filters_items]]",
		`        mode: Literal["fast", "full"]`,
		"        strict: Literal[True]",
		"        extra: NotRequired[Any]",
		"        body: HelloWorld.search_Body,\n        query: None,\n        params: None,",
		") -> Any:",
		"        No summary",
		") -> Iterator[HelloWorld.stream_Iteration]:",
		"            streaming=True,",
	} {
		if !strings.Contains(mod, want) {
			t.Errorf("hello_world.py does not contain %q\n%s", want, mod)
		}
	}

	if strings.Index(mod, "class search_Body_filters_items") > strings.Index(mod, "class search_Body(") {
		t.Errorf("nested types must be declared before the types using them")
	}
}

func TestEmitIndex(t *testing.T) {
	units, err := emit(t, config.Client{Name: "py", EmitSchema: true}, helloService())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	index := unitMap(units)["__init__.py"]
	for _, want := range []string{
		`default_api_root: str = "/api"`,
		`"full-schema.json"`,
		"full_schema: Any = json.load(_f)",
		"from .hello_world import HelloWorld  # noqa: E402",
		`    "HelloWorld",`,
		"def substitute_path_param(url: str, name: str, value: Any) -> str:",
	} {
		if !strings.Contains(index, want) {
			t.Errorf("__init__.py does not contain %q\n%s", want, index)
		}
	}

	units, err = emit(t, config.Client{Name: "py"}, helloService())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if strings.Contains(unitMap(units)["__init__.py"], "full_schema") {
		t.Errorf("full_schema must only be exposed when the snapshot is emitted")
	}
}

func TestEmitDeterministic(t *testing.T) {
	first, err := emit(t, config.Client{Name: "py"}, helloService())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	second, err := emit(t, config.Client{Name: "py"}, helloService())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	for i := range first {
		if !bytes.Equal(first[i].Content, second[i].Content) {
			t.Errorf("%s differs between runs", first[i].Path)
		}
	}
}

func TestNoRequestTypes(t *testing.T) {
	ping := &ir.Endpoint{Controller: "Health", Name: "ping", HTTPMethod: "GET", FullPath: "/health/", Output: str()}
	svc := &ir.Service{APIRoot: "/api", Controllers: []*ir.Controller{{Name: "Health", Endpoints: []*ir.Endpoint{ping}}}}
	units, err := emit(t, config.Client{Name: "py"}, svc)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	mod := unitMap(units)["health.py"]
	if strings.Contains(mod, "TypedDict):") {
		t.Errorf("no request types should be declared\n%s", mod)
	}
	for _, want := range []string{
		"    ping_Output = str",
		"        body: None,\n        query: None,\n        params: None,",
		") -> Health.ping_Output:",
	} {
		if !strings.Contains(mod, want) {
			t.Errorf("health.py does not contain %q\n%s", want, mod)
		}
	}
}

func TestEmissionErrors(t *testing.T) {
	tests := []struct {
		name string
		svc  func() *ir.Service
	}{
		{"controller name", func() *ir.Service {
			svc := helloService()
			svc.Controllers[0].Name = "hello-world"
			return svc
		}},
		{"keyword field", func() *ir.Service {
			svc := helloService()
			svc.Controllers[0].Endpoints[0].Output = ir.NewObject(req("class", str()))
			return svc
		}},
		{"method name", func() *ir.Service {
			svc := helloService()
			svc.Controllers[0].Endpoints[1].Name = "not-valid"
			return svc
		}},
		{"controller shadows a typing import", func() *ir.Service {
			svc := helloService()
			svc.Controllers[0].Name = "Literal"
			return svc
		}},
		{"controller shadows the fetch hook", func() *ir.Service {
			svc := helloService()
			svc.Controllers[0].Name = "fetch"
			return svc
		}},
		{"module shadows the json import", func() *ir.Service {
			svc := helloService()
			svc.Controllers[0].Name = "Json"
			return svc
		}},
		{"module clash", func() *ir.Service {
			svc := helloService()
			svc.Controllers = append(svc.Controllers, &ir.Controller{Name: "hello_world"})
			return svc
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := emit(t, config.Client{Name: "py"}, test.svc())
			var ee *ir.EmissionError
			if !errors.As(err, &ee) {
				t.Fatalf("expected an EmissionError, got %v", err)
			}
			if ee.Target != "python" {
				t.Errorf("Target = %q", ee.Target)
			}
		})
	}
}
