package generator

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
)

func TestShouldIncludeController(t *testing.T) {
	tests := []struct {
		name        string
		controller  string
		include     []string
		exclude     []string
		expected    bool
		description string
	}{
		{
			name:        "no filters - include all",
			controller:  "UserRPC",
			expected:    true,
			description: "When no filters are specified, every controller should be included",
		},
		{
			name:        "include filter matches",
			controller:  "UserRPC",
			include:     []string{"^User"},
			expected:    true,
			description: "Controller should be included when it matches an include pattern",
		},
		{
			name:        "include filter matches none",
			controller:  "AdminRPC",
			include:     []string{"^User"},
			expected:    false,
			description: "Controller should be excluded when no include pattern matches",
		},
		{
			name:        "exclude filter matches",
			controller:  "InternalRPC",
			exclude:     []string{"Internal"},
			expected:    false,
			description: "Controller should be excluded when an exclude pattern matches",
		},
		{
			name:        "include and exclude both match",
			controller:  "UserInternalRPC",
			include:     []string{"^User"},
			exclude:     []string{"Internal"},
			expected:    false,
			description: "Exclude should take precedence over include",
		},
		{
			name:        "multiple include patterns - any match",
			controller:  "PostRPC",
			include:     []string{"^User", "^Post"},
			expected:    true,
			description: "Controller should be included if any include pattern matches",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			inc, exc, err := compileControllerFilters(test.include, test.exclude)
			if err != nil {
				t.Fatalf("compileControllerFilters: %v", err)
			}
			result := shouldIncludeController(test.controller, inc, exc)
			if result != test.expected {
				t.Errorf("shouldIncludeController(%q, %v, %v) = %v, expected %v\nDescription: %s",
					test.controller, test.include, test.exclude, result, test.expected, test.description)
			}
		})
	}
}

func TestFilterControllers(t *testing.T) {
	svc := &ir.Service{
		APIRoot: "/api",
		Controllers: []*ir.Controller{
			{Name: "UserRPC"},
			{Name: "AdminRPC"},
			{Name: "UserAdminRPC"},
		},
	}
	filtered, err := filterControllers(svc, []string{"^User"}, []string{"Admin"})
	if err != nil {
		t.Fatalf("filterControllers: %v", err)
	}
	var got []string
	for _, c := range filtered.Controllers {
		got = append(got, c.Name)
	}
	if diff := cmp.Diff([]string{"UserRPC"}, got); diff != "" {
		t.Errorf("controllers mismatch (-want +got):\n%s", diff)
	}
	if filtered.APIRoot != "/api" || len(svc.Controllers) != 3 {
		t.Errorf("filtering must copy the service without changing it")
	}

	if _, err := filterControllers(svc, []string{"("}, nil); err == nil {
		t.Errorf("expected an error for an invalid pattern")
	}
}
