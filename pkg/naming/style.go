package naming

import (
	"strings"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/utils"
)

// TypeRef locates a named fragment: the slot it hangs off and the field path
// from the slot root. Array elements contribute an "items" segment.
type TypeRef struct {
	Controller string
	Endpoint   string
	Slot       ir.Slot
	Path       []string
}

// Style renders synthesized names for one target language.
type Style interface {
	// TypeName renders the identifier used inside the generated unit.
	TypeName(ref TypeRef) string
	// Qualify renders the name that must be unique across the whole run.
	Qualify(controller, local string) string
}

// UnderscoreStyle keeps endpoint and field spellings and joins the parts with
// underscores: handleAll_Query_z_d_arrOfObjects_items. Types are scoped by
// controller, so the qualified form is Controller.local.
type UnderscoreStyle struct{}

func (UnderscoreStyle) TypeName(ref TypeRef) string {
	parts := make([]string, 0, len(ref.Path)+2)
	parts = append(parts, utils.SanitizeIdentifier(ref.Endpoint), string(ref.Slot))
	for _, seg := range ref.Path {
		parts = append(parts, utils.SanitizeIdentifier(seg))
	}
	return strings.Join(parts, "_")
}

func (UnderscoreStyle) Qualify(controller, local string) string {
	return controller + "." + local
}

// PascalStyle concatenates PascalCase parts prefixed by the controller name,
// for targets where every controller shares one namespace.
type PascalStyle struct{}

func (PascalStyle) TypeName(ref TypeRef) string {
	var b strings.Builder
	b.WriteString(pascalPart(ref.Controller))
	b.WriteString(pascalPart(ref.Endpoint))
	b.WriteString(string(ref.Slot))
	for _, seg := range ref.Path {
		b.WriteString(pascalPart(seg))
	}
	return b.String()
}

func (PascalStyle) Qualify(_, local string) string {
	return local
}

func pascalPart(s string) string {
	if p := utils.ToPascalCase(s); p != "" {
		return p
	}
	return "X"
}
