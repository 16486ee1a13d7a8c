package python

import (
	"embed"
	"fmt"
	"text/template"

	"github.com/blimu-dev/rpc-gen/pkg/config"
	"github.com/blimu-dev/rpc-gen/pkg/generator/common"
	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/naming"
	"github.com/blimu-dev/rpc-gen/pkg/output"
	"github.com/blimu-dev/rpc-gen/pkg/utils"
)

//go:embed templates/*
var templateFS embed.FS

const target = "python"

// PythonGenerator emits a Python package: one module per controller holding a
// class of typed dictionaries and static methods, plus an __init__.py index.
type PythonGenerator struct{}

// NewPythonGenerator creates a new Python generator
func NewPythonGenerator() *PythonGenerator {
	return &PythonGenerator{}
}

// GetType returns the generator type
func (g *PythonGenerator) GetType() string {
	return target
}

// Style returns the naming style of Python units.
func (g *PythonGenerator) Style() naming.Style {
	return naming.UnderscoreStyle{}
}

type method struct {
	Name          string
	Comment       string
	Doc           []string
	Types         []string
	Body          string
	Query         string
	Params        string
	Result        string
	HTTPMethod    string
	FullPath      string
	Substitutions []string
	Streaming     bool
}

type controllerData struct {
	Header  string
	Name    string
	Methods []method
}

type module struct {
	Module string
	Class  string
}

type indexData struct {
	Header     string
	APIRoot    string
	EmitSchema bool
	SchemaFile string
	Modules    []module
}

// Emit renders every controller module followed by __init__.py.
func (g *PythonGenerator) Emit(client config.Client, svc *ir.Service, reg *naming.Registry) ([]output.Unit, error) {
	funcs := common.FuncMap(template.FuncMap{"pyString": pyString})

	var units []output.Unit
	idx := indexData{
		Header:     common.Header,
		APIRoot:    svc.APIRoot,
		EmitSchema: client.EmitSchema,
		SchemaFile: common.SchemaFile,
	}
	files := map[string]string{"__init__": ""}
	for _, c := range svc.Controllers {
		if !isPyIdentifier(c.Name) {
			return nil, common.Fail(target, nil, nil, "controller name %q is not a valid Python identifier", c.Name)
		}
		if runtimeNames[c.Name] {
			return nil, common.Fail(target, nil, nil, "controller name %s is already declared by the generated runtime", c.Name)
		}
		mod := utils.ToSnakeCase(c.Name)
		if !isPyIdentifier(mod) {
			mod = "rpc_" + mod
		}
		// Importing a submodule rebinds the package attribute of the same name.
		if runtimeNames[mod] {
			return nil, common.Fail(target, nil, nil, "module %s.py would shadow a name in __init__.py", mod)
		}
		if prev, dup := files[mod]; dup {
			return nil, &ir.EmissionError{
				Location: ir.Location{Controller: c.Name},
				Target:   target,
				Msg:      fmt.Sprintf("module %s.py is already used by %q", mod, prev),
			}
		}
		files[mod] = c.Name

		data := controllerData{Header: common.Header, Name: c.Name}
		for _, ep := range c.Endpoints {
			m, err := buildMethod(reg, ep, svc.APIRoot)
			if err != nil {
				return nil, err
			}
			data.Methods = append(data.Methods, m)
		}
		content, err := common.Render(templateFS, "controller.py.gotmpl", funcs, data)
		if err != nil {
			return nil, &ir.EmissionError{Location: ir.Location{Controller: c.Name}, Target: target, Msg: "render controller", Err: err}
		}
		units = append(units, output.Unit{Path: mod + ".py", Content: content})
		idx.Modules = append(idx.Modules, module{Module: mod, Class: c.Name})
	}

	content, err := common.Render(templateFS, "__init__.py.gotmpl", funcs, idx)
	if err != nil {
		return nil, &ir.EmissionError{Target: target, Msg: "render index", Err: err}
	}
	units = append(units, output.Unit{Path: "__init__.py", Content: content})
	return units, nil
}

func buildMethod(reg *naming.Registry, ep *ir.Endpoint, apiRoot string) (method, error) {
	if !isPyIdentifier(ep.Name) {
		return method{}, common.Fail(target, ep, nil, "method name %q is not a valid Python identifier", ep.Name)
	}
	m := method{
		Name:          ep.Name,
		Comment:       common.DocLine(ep, apiRoot),
		Doc:           docLines(ep),
		Body:          slotType(reg, ep, ir.SlotBody),
		Query:         slotType(reg, ep, ir.SlotQuery),
		Params:        slotType(reg, ep, ir.SlotParams),
		Result:        resultType(reg, ep),
		HTTPMethod:    ep.HTTPMethod,
		FullPath:      ep.FullPath,
		Substitutions: substitutions(ep),
		Streaming:     ep.Streaming,
	}
	for _, nt := range reg.Declarations(ep) {
		decl, err := declaration(reg, ep, nt)
		if err != nil {
			return method{}, err
		}
		m.Types = append(m.Types, decl)
	}
	return m, nil
}

// pyString renders s as a double-quoted Python string literal.
func pyString(s string) string {
	return fmt.Sprintf("%q", s)
}
