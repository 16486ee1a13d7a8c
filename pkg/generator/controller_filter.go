package generator

import (
	"fmt"
	"regexp"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
)

// filterControllers returns a shallow copy of svc keeping the controllers
// selected by the include/exclude patterns. Exclusion takes precedence.
func filterControllers(svc *ir.Service, include, exclude []string) (*ir.Service, error) {
	inc, exc, err := compileControllerFilters(include, exclude)
	if err != nil {
		return nil, err
	}
	out := &ir.Service{APIRoot: svc.APIRoot}
	for _, c := range svc.Controllers {
		if shouldIncludeController(c.Name, inc, exc) {
			out.Controllers = append(out.Controllers, c)
		}
	}
	return out, nil
}

// compileControllerFilters compiles regex patterns for controller filtering
func compileControllerFilters(include, exclude []string) ([]*regexp.Regexp, []*regexp.Regexp, error) {
	inc := make([]*regexp.Regexp, 0, len(include))
	for _, p := range include {
		r, err := regexp.Compile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid includeControllers pattern %q: %w", p, err)
		}
		inc = append(inc, r)
	}
	exc := make([]*regexp.Regexp, 0, len(exclude))
	for _, p := range exclude {
		r, err := regexp.Compile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid excludeControllers pattern %q: %w", p, err)
		}
		exc = append(exc, r)
	}
	return inc, exc, nil
}

// shouldIncludeController matches a controller name against the filters.
func shouldIncludeController(name string, include, exclude []*regexp.Regexp) bool {
	included := len(include) == 0
	for _, r := range include {
		if r.MatchString(name) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, r := range exclude {
		if r.MatchString(name) {
			return false
		}
	}
	return true
}
