package golang

import (
	"embed"
	"fmt"
	"go/format"
	"strconv"
	"strings"
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

const target = "go"

// GoGenerator emits a single Go package: one file per controller and a
// client.go holding the transport seam.
type GoGenerator struct{}

// NewGoGenerator creates a new Go generator
func NewGoGenerator() *GoGenerator {
	return &GoGenerator{}
}

// GetType returns the generator type identifier
func (g *GoGenerator) GetType() string {
	return target
}

// Style returns the naming style of Go units. Every controller shares the
// package namespace.
func (g *GoGenerator) Style() naming.Style {
	return naming.PascalStyle{}
}

type method struct {
	Name          string
	Doc           string
	Body          string
	Query         string
	Params        string
	Result        string
	HTTPMethod    string
	FullPath      string
	Substitutions []string
	Streaming     bool
	// BodyArg and QueryArg are the expressions handed to the fetcher.
	BodyArg  string
	QueryArg string
}

type controllerData struct {
	Header   string
	Package  string
	Var      string
	TypeName string
	RawJSON  bool
	Types    []string
	Methods  []method
}

type indexData struct {
	Header     string
	Package    string
	APIRoot    string
	EmitSchema bool
	SchemaFile string
}

// Emit renders every controller file followed by client.go. Every unit is
// gofmt-formatted.
func (g *GoGenerator) Emit(client config.Client, svc *ir.Service, reg *naming.Registry) ([]output.Unit, error) {
	pkg := client.PackageName
	if pkg == "" {
		pkg = client.Name
	}
	pkg = sanitizePackageName(pkg)
	funcs := common.FuncMap(template.FuncMap{
		"goString":        strconv.Quote,
		"formatGoComment": formatGoComment,
	})

	idents := make(map[string]string)
	for name := range runtimeNames {
		idents[name] = "client.go"
	}
	for _, nt := range reg.Types() {
		idents[nt.Name] = nt.Qualified
	}
	claim := func(c *ir.Controller, name string) error {
		if prev, dup := idents[name]; dup {
			return &ir.EmissionError{
				Location: ir.Location{Controller: c.Name},
				Target:   target,
				Msg:      fmt.Sprintf("identifier %s is already declared by %s", name, prev),
			}
		}
		idents[name] = c.Name
		return nil
	}

	var units []output.Unit
	files := map[string]string{"client": ""}
	for _, c := range svc.Controllers {
		base := fieldName(c.Name)
		data := controllerData{
			Header:   common.Header,
			Package:  pkg,
			Var:      base,
			TypeName: base + "Controller",
		}
		if err := claim(c, data.Var); err != nil {
			return nil, err
		}
		if err := claim(c, data.TypeName); err != nil {
			return nil, err
		}
		file := utils.ToSnakeCase(c.Name)
		if file == "" {
			file = "controller"
		}
		if prev, dup := files[file]; dup {
			return nil, &ir.EmissionError{
				Location: ir.Location{Controller: c.Name},
				Target:   target,
				Msg:      fmt.Sprintf("file %s.go is already used by %q", file, prev),
			}
		}
		files[file] = c.Name

		methods := make(map[string]string)
		for _, ep := range c.Endpoints {
			for _, nt := range reg.Declarations(ep) {
				decl, err := declaration(reg, ep, nt)
				if err != nil {
					return nil, err
				}
				data.Types = append(data.Types, decl)
			}
			m := buildMethod(reg, ep, svc.APIRoot)
			if prev, dup := methods[m.Name]; dup {
				return nil, common.Fail(target, ep, nil, "handlers %q and %q both map to method %s", prev, ep.Name, m.Name)
			}
			methods[m.Name] = ep.Name
			data.Methods = append(data.Methods, m)
		}
		for _, t := range data.Types {
			if strings.Contains(t, "json.RawMessage") {
				data.RawJSON = true
			}
		}
		for _, m := range data.Methods {
			if m.Result == "json.RawMessage" {
				data.RawJSON = true
			}
		}

		content, err := g.render("controller.go.gotmpl", funcs, data, c.Name)
		if err != nil {
			return nil, err
		}
		units = append(units, output.Unit{Path: file + ".go", Content: content})
	}

	content, err := g.render("client.go.gotmpl", funcs, indexData{
		Header:     common.Header,
		Package:    pkg,
		APIRoot:    svc.APIRoot,
		EmitSchema: client.EmitSchema,
		SchemaFile: common.SchemaFile,
	}, "")
	if err != nil {
		return nil, err
	}
	units = append(units, output.Unit{Path: "client.go", Content: content})
	return units, nil
}

func (g *GoGenerator) render(name string, funcs template.FuncMap, data any, controller string) ([]byte, error) {
	loc := ir.Location{Controller: controller}
	src, err := common.Render(templatesFS, name, funcs, data)
	if err != nil {
		return nil, &ir.EmissionError{Location: loc, Target: target, Msg: "render " + name, Err: err}
	}
	formatted, err := format.Source(src)
	if err != nil {
		return nil, &ir.EmissionError{Location: loc, Target: target, Msg: "gofmt " + name, Err: err}
	}
	return formatted, nil
}

func buildMethod(reg *naming.Registry, ep *ir.Endpoint, apiRoot string) method {
	lines := append([]string{common.DocLine(ep, apiRoot)}, common.Summary(ep)...)
	if ep.Deprecated() {
		lines = append(lines, "", "Deprecated: the handler is marked deprecated.")
	}
	doc := formatGoComment(strings.Join(withoutHeadings(lines), "\n"))
	m := method{
		Name:          fieldName(ep.Name),
		Doc:           doc,
		Body:          slotType(reg, ep, ir.SlotBody),
		Query:         slotType(reg, ep, ir.SlotQuery),
		Params:        slotType(reg, ep, ir.SlotParams),
		Result:        resultType(reg, ep),
		HTTPMethod:    ep.HTTPMethod,
		FullPath:      ep.FullPath,
		Substitutions: substitutions(ep),
		Streaming:     ep.Streaming,
		BodyArg:       "body",
		QueryArg:      "query",
	}
	if m.Body == "Absent" {
		m.BodyArg = "nil"
	}
	if m.Query == "Absent" {
		m.QueryArg = "nil"
	}
	return m
}
