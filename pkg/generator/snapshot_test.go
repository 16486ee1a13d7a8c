package generator

import (
	"bytes"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
)

func TestSnapshotFixture(t *testing.T) {
	_, svc, err := NewService().Build(fixture)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := Snapshot(svc)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	again, err := Snapshot(svc)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("snapshot differs between runs")
	}

	var snap struct {
		APIRoot     string `json:"apiRoot"`
		Controllers map[string]struct {
			RPCModuleName          string `json:"rpcModuleName"`
			OriginalControllerName string `json:"originalControllerName"`
			SegmentName            string `json:"segmentName"`
			Handlers               map[string]struct {
				HTTPMethod string `json:"httpMethod"`
				FullPath   string `json:"fullPath"`
				Streaming  bool   `json:"streaming"`
				OpenAPI    struct {
					Summary    string   `json:"summary"`
					Deprecated bool     `json:"deprecated"`
					Tags       []string `json:"tags"`
				} `json:"openapi"`
				Validation map[string]map[string]any `json:"validation"`
			} `json:"handlers"`
		} `json:"controllers"`
		Definitions map[string]map[string]any `json:"definitions"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v\n%s", err, data)
	}

	if snap.APIRoot != "/api" {
		t.Errorf("apiRoot = %q", snap.APIRoot)
	}
	user := snap.Controllers["UserRPC"]
	if user.OriginalControllerName != "UserController" || user.RPCModuleName != "UserRPC" {
		t.Errorf("UserRPC names = %q, %q", user.RPCModuleName, user.OriginalControllerName)
	}
	update := user.Handlers["updateUser"]
	if update.FullPath != "/users/:id/update" || update.HTTPMethod != "POST" {
		t.Errorf("updateUser route = %s %s", update.HTTPMethod, update.FullPath)
	}
	if !update.OpenAPI.Deprecated || update.OpenAPI.Summary != "Update a user" {
		t.Errorf("updateUser openapi = %+v", update.OpenAPI)
	}
	if diff := cmp.Diff([]string{"users"}, update.OpenAPI.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if _, ok := update.Validation["body"]; !ok {
		t.Errorf("updateUser validation lacks body: %v", update.Validation)
	}
	if _, ok := update.Validation["query"]; ok {
		t.Errorf("absent slots must not be written")
	}

	if !snap.Controllers["StreamRPC"].Handlers["streamTokens"].Streaming {
		t.Errorf("streamTokens is not marked streaming")
	}
	if got := snap.Controllers["AdminRPC"].SegmentName; got != "admin" {
		t.Errorf("AdminRPC segment = %q", got)
	}

	addr, ok := snap.Definitions["Address"]
	if !ok {
		t.Fatalf("definitions lack Address: %v", snap.Definitions)
	}
	if diff := cmp.Diff([]any{"street"}, addr["required"]); diff != "" {
		t.Errorf("Address required mismatch (-want +got):\n%s", diff)
	}
}
