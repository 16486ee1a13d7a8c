package ir

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// AdapterKind identifies which validation library described a controller's shapes.
type AdapterKind string

const (
	AdapterNone AdapterKind = "none"
	AdapterZod  AdapterKind = "zod"
	AdapterYup  AdapterKind = "yup"
	AdapterDto  AdapterKind = "dto"
)

// Slot is a named position in an endpoint's contract.
type Slot string

const (
	SlotBody      Slot = "Body"
	SlotQuery     Slot = "Query"
	SlotParams    Slot = "Params"
	SlotOutput    Slot = "Output"
	SlotIteration Slot = "Iteration"
)

// Slots lists every slot in walk and emission order.
var Slots = []Slot{SlotBody, SlotQuery, SlotParams, SlotOutput, SlotIteration}

// Service is the root of the intermediate representation for one generation run.
type Service struct {
	// APIRoot is the default API root baked into emitted index units.
	APIRoot     string
	Controllers []*Controller
}

// Controller is an ordered group of endpoints sharing one RPC module name.
type Controller struct {
	Name         string
	OriginalName string
	Segment      string
	Prefix       string
	Adapter      AdapterKind
	Endpoints    []*Endpoint
}

// Endpoint is one handler of a controller.
type Endpoint struct {
	Controller string
	Name       string
	HTTPMethod string
	// Path is the handler path as declared; FullPath joins segment, prefix and path.
	Path      string
	FullPath  string
	Summary   string
	Streaming bool
	// Operation carries the declared OpenAPI metadata (description, tags, deprecation).
	Operation *openapi3.Operation

	Body      *Shape
	Query     *Shape
	Params    *Shape
	Output    *Shape
	Iteration *Shape
}

// Shape returns the shape held by slot, or nil when the slot is absent.
func (e *Endpoint) Shape(slot Slot) *Shape {
	switch slot {
	case SlotBody:
		return e.Body
	case SlotQuery:
		return e.Query
	case SlotParams:
		return e.Params
	case SlotOutput:
		return e.Output
	case SlotIteration:
		return e.Iteration
	}
	return nil
}

// Description returns the declared operation description, if any.
func (e *Endpoint) Description() string {
	if e.Operation == nil {
		return ""
	}
	return e.Operation.Description
}

// Deprecated reports whether the operation is marked deprecated.
func (e *Endpoint) Deprecated() bool {
	return e.Operation != nil && e.Operation.Deprecated
}

// Endpoints returns every endpoint of the service in emission order.
func (s *Service) Endpoints() []*Endpoint {
	var out []*Endpoint
	for _, c := range s.Controllers {
		out = append(out, c.Endpoints...)
	}
	return out
}
