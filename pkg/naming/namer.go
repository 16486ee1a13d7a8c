// Package naming assigns deterministic names to the anonymous shapes of a
// service. Every slot root is named {Endpoint}_{Slot}; nested objects are
// named after their field path and structurally identical objects within one
// endpoint share a single name.
package naming

import (
	"strings"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
)

// NamedType pairs a shape with its synthesized identifier.
type NamedType struct {
	// Name is the identifier inside the generated unit; Qualified is unique per run.
	Name        string
	Qualified   string
	Controller  string
	Endpoint    string
	Slot        ir.Slot
	Path        []string
	Shape       *ir.Shape
	Fingerprint string
}

// Location returns the schema position the type was derived from.
func (nt *NamedType) Location() ir.Location {
	return ir.Location{
		Controller: nt.Controller,
		Endpoint:   nt.Endpoint,
		Path:       append([]string{strings.ToLower(string(nt.Slot))}, nt.Path...),
	}
}

// Registry holds the named types of one generation run for one target.
// It is written by the Namer only and read by emitters.
type Registry struct {
	style       Style
	byQualified map[string]*NamedType
	endpoints   map[*ir.Endpoint]*endpointTypes
	order       []*NamedType
}

type endpointTypes struct {
	slots         map[ir.Slot]*NamedType
	byShape       map[*ir.Shape]*NamedType
	byFingerprint map[string]*NamedType
	decls         []*NamedType
}

func newRegistry(style Style) *Registry {
	return &Registry{
		style:       style,
		byQualified: make(map[string]*NamedType),
		endpoints:   make(map[*ir.Endpoint]*endpointTypes),
	}
}

// Style returns the naming style the registry was built with.
func (r *Registry) Style() Style { return r.style }

// Slot returns the named type of an endpoint slot, or nil when the slot is absent.
func (r *Registry) Slot(ep *ir.Endpoint, slot ir.Slot) *NamedType {
	if et := r.endpoints[ep]; et != nil {
		return et.slots[slot]
	}
	return nil
}

// Lookup returns the named type assigned to an object shape reached from ep.
// References are followed.
func (r *Registry) Lookup(ep *ir.Endpoint, s *ir.Shape) (*NamedType, bool) {
	et := r.endpoints[ep]
	if et == nil {
		return nil, false
	}
	nt, ok := et.byShape[ir.Resolve(s)]
	return nt, ok
}

// Declarations returns the types owned by ep in declaration order: every
// type appears after the types it refers to.
func (r *Registry) Declarations(ep *ir.Endpoint) []*NamedType {
	if et := r.endpoints[ep]; et != nil {
		return et.decls
	}
	return nil
}

// Types returns every named type in registration order.
func (r *Registry) Types() []*NamedType { return r.order }

// Namer walks a service and fills a Registry.
type Namer struct {
	style Style
	fp    *Fingerprinter
}

// New returns a namer. A nil fingerprinter gets a private one.
func New(style Style, fp *Fingerprinter) *Namer {
	if fp == nil {
		fp = NewFingerprinter()
	}
	return &Namer{style: style, fp: fp}
}

// Name assigns names to every slot and nested object of svc.
func (n *Namer) Name(svc *ir.Service) (*Registry, error) {
	reg := newRegistry(n.style)
	for _, c := range svc.Controllers {
		for _, ep := range c.Endpoints {
			if err := n.nameEndpoint(reg, ep); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

type frame struct {
	shape *ir.Shape
	path  []string
	// exit marks the post-order visit of an already named type.
	exit *NamedType
}

// nameEndpoint walks the slots of ep with an explicit stack. Names are
// assigned on the way down, declarations are recorded on the way up.
func (n *Namer) nameEndpoint(reg *Registry, ep *ir.Endpoint) error {
	et := &endpointTypes{
		slots:         make(map[ir.Slot]*NamedType),
		byShape:       make(map[*ir.Shape]*NamedType),
		byFingerprint: make(map[string]*NamedType),
	}
	reg.endpoints[ep] = et

	for _, slot := range ir.Slots {
		root := ir.Resolve(ep.Shape(slot))
		if root == nil {
			continue
		}
		rootFP := n.fp.Fingerprint(root)
		nt, owned, err := n.declare(reg, ep, slot, nil, root, rootFP)
		if err != nil {
			return err
		}
		et.slots[slot] = nt
		if _, ok := et.byShape[root]; !ok && root.Kind == ir.KindObject {
			et.byShape[root] = nt
		}
		if _, ok := et.byFingerprint[rootFP]; !ok && root.Kind == ir.KindObject {
			et.byFingerprint[rootFP] = nt
		}
		if !owned {
			continue
		}

		stack := []frame{{exit: nt}}
		stack = pushChildren(stack, root, nil)
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if f.exit != nil {
				et.decls = append(et.decls, f.exit)
				continue
			}

			s := ir.Resolve(f.shape)
			switch s.Kind {
			case ir.KindArray:
				stack = append(stack, frame{shape: s.Elem, path: appendPath(f.path, "items")})
			case ir.KindObject:
				if _, ok := et.byShape[s]; ok {
					continue
				}
				fp := n.fp.Fingerprint(s)
				if existing, ok := et.byFingerprint[fp]; ok {
					et.byShape[s] = existing
					continue
				}
				child, owned, err := n.declare(reg, ep, slot, f.path, s, fp)
				if err != nil {
					return err
				}
				et.byShape[s] = child
				et.byFingerprint[fp] = child
				if !owned {
					continue
				}
				stack = append(stack, frame{exit: child})
				stack = pushChildren(stack, s, f.path)
			}
		}
	}
	return nil
}

// pushChildren pushes the children of s so that they pop in declaration order.
func pushChildren(stack []frame, s *ir.Shape, path []string) []frame {
	switch s.Kind {
	case ir.KindObject:
		for i := len(s.Fields) - 1; i >= 0; i-- {
			f := s.Fields[i]
			stack = append(stack, frame{shape: f.Shape, path: appendPath(path, f.Name)})
		}
	case ir.KindArray:
		stack = append(stack, frame{shape: s.Elem, path: appendPath(path, "items")})
	}
	return stack
}

func appendPath(path []string, seg string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}

// declare registers a new name or returns the structurally identical type
// already holding it, in which case owned is false and the caller must not
// declare it again.
func (n *Namer) declare(reg *Registry, ep *ir.Endpoint, slot ir.Slot, path []string, s *ir.Shape, fp string) (*NamedType, bool, error) {
	ref := TypeRef{Controller: ep.Controller, Endpoint: ep.Name, Slot: slot, Path: path}
	local := reg.style.TypeName(ref)
	qualified := reg.style.Qualify(ep.Controller, local)

	nt := &NamedType{
		Name:        local,
		Qualified:   qualified,
		Controller:  ep.Controller,
		Endpoint:    ep.Name,
		Slot:        slot,
		Path:        path,
		Shape:       s,
		Fingerprint: fp,
	}
	if existing, ok := reg.byQualified[qualified]; ok {
		if existing.Fingerprint != fp {
			return nil, false, &ir.NamingCollisionError{
				Location: nt.Location(),
				Name:     qualified,
				Existing: existing.Location(),
			}
		}
		return existing, false, nil
	}
	reg.byQualified[qualified] = nt
	reg.order = append(reg.order, nt)
	return nt, true, nil
}
