package typescript

import (
	"embed"
	"fmt"
	"strconv"
	"text/template"

	"github.com/blimu-dev/rpc-gen/pkg/config"
	"github.com/blimu-dev/rpc-gen/pkg/generator/common"
	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/naming"
	"github.com/blimu-dev/rpc-gen/pkg/output"
	"github.com/blimu-dev/rpc-gen/pkg/utils"
)

//go:embed templates/*
var templatesFS embed.FS

const target = "typescript"

var tsReserved = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true, "continue": true,
	"debugger": true, "default": true, "delete": true, "do": true, "else": true, "enum": true,
	"export": true, "extends": true, "false": true, "finally": true, "for": true, "function": true,
	"if": true, "import": true, "in": true, "instanceof": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true, "with": true,
	"let": true, "static": true, "yield": true, "await": true,
}

// TypeScriptGenerator emits one ES module per controller and an index.ts
// holding the shared runtime configuration.
type TypeScriptGenerator struct{}

// NewTypeScriptGenerator creates a new TypeScript generator
func NewTypeScriptGenerator() *TypeScriptGenerator {
	return &TypeScriptGenerator{}
}

// GetType returns the generator type identifier
func (g *TypeScriptGenerator) GetType() string {
	return target
}

// Style returns the naming style of TypeScript units.
func (g *TypeScriptGenerator) Style() naming.Style {
	return naming.UnderscoreStyle{}
}

type method struct {
	Key           string
	Comment       string
	Doc           []string
	Deprecated    bool
	Body          string
	Query         string
	Params        string
	Result        string
	Item          string
	HTTPMethod    string
	FullPath      string
	Substitutions []string
	Streaming     bool
}

type controllerData struct {
	Header  string
	Name    string
	Types   []string
	Methods []method
	Runtime []string
}

type module struct {
	File  string
	Name  string
	Types bool
}

type indexData struct {
	Header     string
	APIRoot    string
	EmitSchema bool
	SchemaFile string
	Modules    []module
}

// runtimeNames are declared by index.ts and imported by controller units.
var runtimeNames = map[string]bool{
	"config": true, "endpointUrl": true, "substitutePathParam": true, "openStream": true,
	"StreamAsyncIterator": true, "StreamError": true, "Fetcher": true, "FetcherOptions": true,
	"fullSchema": true,
}

// Emit renders every controller unit followed by index.ts.
func (g *TypeScriptGenerator) Emit(client config.Client, svc *ir.Service, reg *naming.Registry) ([]output.Unit, error) {
	funcs := common.FuncMap(template.FuncMap{"tsString": strconv.Quote})

	var units []output.Unit
	idx := indexData{
		Header:     common.Header,
		APIRoot:    svc.APIRoot,
		EmitSchema: client.EmitSchema,
		SchemaFile: common.SchemaFile,
	}
	files := map[string]string{"index": ""}
	for _, c := range svc.Controllers {
		if quoteTSPropertyName(c.Name) != c.Name || tsReserved[c.Name] {
			return nil, common.Fail(target, nil, nil, "controller name %q is not a valid TypeScript identifier", c.Name)
		}
		if runtimeNames[c.Name] {
			return nil, &ir.EmissionError{
				Location: ir.Location{Controller: c.Name},
				Target:   target,
				Msg:      fmt.Sprintf("controller name %s is already declared by index.ts", c.Name),
			}
		}
		file := utils.ToKebabCase(c.Name)
		if file == "" {
			file = "controller"
		}
		if prev, dup := files[file]; dup {
			return nil, &ir.EmissionError{
				Location: ir.Location{Controller: c.Name},
				Target:   target,
				Msg:      fmt.Sprintf("module %s.ts is already used by %q", file, prev),
			}
		}
		files[file] = c.Name

		data := controllerData{Header: common.Header, Name: c.Name}
		runtime := map[string]bool{}
		for _, ep := range c.Endpoints {
			for _, nt := range reg.Declarations(ep) {
				decl, err := declaration(reg, ep, nt)
				if err != nil {
					return nil, err
				}
				data.Types = append(data.Types, decl)
			}
			m := buildMethod(reg, ep, svc.APIRoot)
			if len(m.Substitutions) > 0 {
				runtime["substitutePathParam"] = true
			}
			if m.Streaming {
				runtime["StreamAsyncIterator"] = true
			}
			data.Methods = append(data.Methods, m)
		}
		data.Runtime = []string{"config", "endpointUrl"}
		if runtime["substitutePathParam"] {
			data.Runtime = append(data.Runtime, "substitutePathParam")
		}
		if runtime["StreamAsyncIterator"] {
			data.Runtime = append(data.Runtime, "openStream", "type StreamAsyncIterator")
		}

		content, err := common.Render(templatesFS, "controller.ts.gotmpl", funcs, data)
		if err != nil {
			return nil, &ir.EmissionError{Location: ir.Location{Controller: c.Name}, Target: target, Msg: "render controller", Err: err}
		}
		units = append(units, output.Unit{Path: file + ".ts", Content: content})
		idx.Modules = append(idx.Modules, module{File: file, Name: c.Name, Types: len(data.Types) > 0})
	}

	content, err := common.Render(templatesFS, "index.ts.gotmpl", funcs, idx)
	if err != nil {
		return nil, &ir.EmissionError{Target: target, Msg: "render index", Err: err}
	}
	units = append(units, output.Unit{Path: "index.ts", Content: content})
	return units, nil
}

func buildMethod(reg *naming.Registry, ep *ir.Endpoint, apiRoot string) method {
	return method{
		Key:           quoteTSPropertyName(ep.Name),
		Comment:       common.DocLine(ep, apiRoot),
		Doc:           docLines(ep),
		Deprecated:    ep.Deprecated(),
		Body:          slotType(reg, ep, ir.SlotBody),
		Query:         slotType(reg, ep, ir.SlotQuery),
		Params:        slotType(reg, ep, ir.SlotParams),
		Result:        resultType(reg, ep),
		Item:          itemType(reg, ep),
		HTTPMethod:    ep.HTTPMethod,
		FullPath:      ep.FullPath,
		Substitutions: substitutions(ep),
		Streaming:     ep.Streaming,
	}
}
