// Package common holds helpers shared by the language emitters.
package common

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/blimu-dev/rpc-gen/pkg/config"
	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/naming"
	"github.com/blimu-dev/rpc-gen/pkg/output"
)

// Header is the first comment line of every generated file.
const Header = "Code generated by rpc-gen. DO NOT EDIT."

// NoSummary is rendered for endpoints without a summary.
const NoSummary = "No summary"

// SchemaFile is the name of the normalized schema snapshot.
const SchemaFile = "full-schema.json"

// Emitter renders the units of one target language.
type Emitter interface {
	// Emit returns one unit per controller followed by the index unit.
	Emit(client config.Client, svc *ir.Service, reg *naming.Registry) ([]output.Unit, error)
	// Style returns the naming style the registry must be built with.
	Style() naming.Style
}

// FuncMap returns sprig's functions overlaid with extra.
func FuncMap(extra template.FuncMap) template.FuncMap {
	funcs := sprig.TxtFuncMap()
	for k, v := range extra {
		funcs[k] = v
	}
	return funcs
}

// Render executes the named template from fsys into memory.
func Render(fsys fs.FS, name string, funcs template.FuncMap, data any) ([]byte, error) {
	content, err := fs.ReadFile(fsys, "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Funcs(funcs).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Summary returns the endpoint summary lines, or the placeholder.
func Summary(ep *ir.Endpoint) []string {
	s := strings.TrimSpace(ep.Summary)
	if s == "" {
		return []string{NoSummary}
	}
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

// DocLine renders "Controller.method METHOD <apiRoot><path>". Path tokens are
// left as written.
func DocLine(ep *ir.Endpoint, apiRoot string) string {
	return fmt.Sprintf("%s.%s %s %s%s", ep.Controller, ep.Name, ep.HTTPMethod, strings.TrimSuffix(apiRoot, "/"), ep.FullPath)
}

// Fail builds an EmissionError for target at the endpoint's location.
func Fail(target string, ep *ir.Endpoint, path []string, format string, args ...any) error {
	loc := ir.Location{Path: path}
	if ep != nil {
		loc.Controller, loc.Endpoint = ep.Controller, ep.Name
	}
	return &ir.EmissionError{Location: loc, Target: target, Msg: fmt.Sprintf(format, args...)}
}

// PathParam describes one :token substitution of an endpoint path.
type PathParam struct {
	Token    string
	Required bool
}

// PathParams returns the substitutions of ep in path order.
func PathParams(ep *ir.Endpoint) []PathParam {
	params := ir.Resolve(ep.Params)
	var out []PathParam
	for _, tok := range ir.PathTokens(ep.FullPath) {
		p := PathParam{Token: tok, Required: true}
		if params != nil {
			if f, ok := params.Field(tok); ok {
				p.Required = f.Required
			}
		}
		out = append(out, p)
	}
	return out
}

// ResultSlot returns the slot describing what a call yields: the iteration
// item for streaming endpoints, the output otherwise.
func ResultSlot(ep *ir.Endpoint) ir.Slot {
	if ep.Streaming {
		return ir.SlotIteration
	}
	return ir.SlotOutput
}
