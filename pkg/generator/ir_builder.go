package generator

import (
	"fmt"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/normalize"
	"github.com/blimu-dev/rpc-gen/pkg/schema"
)

// BuildIR assembles the service tree from raw routes and their normalized
// shapes; shapes must be parallel to routes. Controllers appear in the order
// their first route was declared and keep their routes in declaration order.
func BuildIR(routes []schema.Route, shapes []normalize.RouteShapes) (*ir.Service, error) {
	if len(routes) != len(shapes) {
		return nil, fmt.Errorf("build IR: %d routes but %d normalized shape sets", len(routes), len(shapes))
	}

	svc := &ir.Service{}
	byName := make(map[string]*ir.Controller)
	for i, r := range routes {
		rs := shapes[i]
		ctrl, ok := byName[r.Controller]
		if !ok {
			ctrl = &ir.Controller{
				Name:         r.Controller,
				OriginalName: r.OriginalController,
				Segment:      r.Segment,
				Prefix:       r.Prefix,
				Adapter:      rs.Adapter,
			}
			byName[r.Controller] = ctrl
			svc.Controllers = append(svc.Controllers, ctrl)
		} else if ctrl.Adapter != rs.Adapter {
			return nil, &ir.AdapterError{
				Location: r.Location(),
				Adapter:  string(rs.Adapter),
				Msg:      fmt.Sprintf("controller already uses the %s adapter", ctrl.Adapter),
			}
		}

		ep := &ir.Endpoint{
			Controller: r.Controller,
			Name:       r.Handler,
			HTTPMethod: r.HTTPMethod,
			Path:       r.Path,
			FullPath:   ir.JoinPath(r.Segment, r.Prefix, r.Path),
			Streaming:  r.Streaming,
			Operation:  r.Operation,
			Body:       rs.Slots[ir.SlotBody],
			Query:      rs.Slots[ir.SlotQuery],
			Params:     rs.Slots[ir.SlotParams],
			Output:     rs.Slots[ir.SlotOutput],
			Iteration:  rs.Slots[ir.SlotIteration],
		}
		if r.Operation != nil {
			ep.Summary = r.Operation.Summary
		}
		if err := checkPathParams(ep); err != nil {
			return nil, err
		}
		ctrl.Endpoints = append(ctrl.Endpoints, ep)
	}
	return svc, nil
}

// checkPathParams enforces that the path tokens and the params fields are the same set.
func checkPathParams(ep *ir.Endpoint) error {
	mismatch := func(format string, args ...any) error {
		return &ir.PathParamMismatchError{
			Location:     ir.Location{Controller: ep.Controller, Endpoint: ep.Name, Path: []string{"params"}},
			PathTemplate: ep.FullPath,
			Msg:          fmt.Sprintf(format, args...),
		}
	}

	tokens := ir.PathTokens(ep.FullPath)
	if ep.Params == nil {
		if len(tokens) > 0 {
			return mismatch("path declares :%s but the endpoint has no params shape", tokens[0])
		}
		return nil
	}
	obj := ir.Resolve(ep.Params)
	if obj.Kind != ir.KindObject {
		return mismatch("params shape must be an object, got %s", obj.Kind)
	}

	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			return mismatch("empty path parameter name")
		}
		if seen[tok] {
			return mismatch(":%s appears more than once", tok)
		}
		seen[tok] = true
		if _, ok := obj.Field(tok); !ok {
			return mismatch(":%s has no matching params field", tok)
		}
	}
	for _, f := range obj.Fields {
		if !seen[f.Name] {
			return mismatch("params field %q has no :%s token in the path", f.Name, f.Name)
		}
	}
	return nil
}
