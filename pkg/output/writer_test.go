package output

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	units := []Unit{
		{Path: "index.ts", Content: []byte("export {}\n")},
		{Path: "nested/user.ts", Content: []byte("export const a = 1\n")},
		{Path: "full-schema.json", Content: []byte("{}")},
	}
	skip := func(rel string) bool { return rel == "full-schema.json" }

	res, err := Write(dir, units, Options{Skip: skip})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := Result{
		Written: []string{"index.ts", "nested/user.ts"},
		Skipped: []string{"full-schema.json"},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("first write mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, "full-schema.json")); !os.IsNotExist(err) {
		t.Errorf("skipped unit was written")
	}

	res, err = Write(dir, units, Options{Skip: skip})
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	want = Result{
		Unchanged: []string{"index.ts", "nested/user.ts"},
		Skipped:   []string{"full-schema.json"},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("second write mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCheck(t *testing.T) {
	dir := t.TempDir()
	units := []Unit{
		{Path: "a.py", Content: []byte("a = 1\n")},
		{Path: "b.py", Content: []byte("b = 1\n")},
	}
	if _, err := Write(dir, units[:1], Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	res, err := Write(dir, units, Options{Check: true})
	if !errors.Is(err, ErrDrift) {
		t.Fatalf("expected ErrDrift, got %v", err)
	}
	if diff := cmp.Diff([]string{"a.py"}, res.Unchanged); diff != "" {
		t.Errorf("unchanged mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.py")); !os.IsNotExist(err) {
		t.Errorf("check mode wrote b.py")
	}

	if _, err := Write(dir, units, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := Write(dir, units, Options{Check: true}); err != nil {
		t.Errorf("expected no drift after writing, got %v", err)
	}
}

func TestWriteRejectsEscapingPaths(t *testing.T) {
	for _, p := range []string{"../evil.ts", "/etc/passwd", ".", "a/../../b"} {
		_, err := Write(t.TempDir(), []Unit{{Path: p}}, Options{})
		if err == nil {
			t.Errorf("Write(%q) succeeded, expected an error", p)
		}
	}
}

func TestWriteFileReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.go")
	if wrote, err := WriteFile(path, []byte("one"), false); err != nil || !wrote {
		t.Fatalf("WriteFile = %v, %v", wrote, err)
	}
	if wrote, err := WriteFile(path, []byte("two"), false); err != nil || !wrote {
		t.Fatalf("WriteFile = %v, %v", wrote, err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "two" {
		t.Errorf("content = %q, expected %q", got, "two")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}
}

func TestWriteRemovesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	old := []Unit{
		{Path: "a.py", Content: []byte("a = 1\n")},
		{Path: "gone.py", Content: []byte("g = 1\n")},
		{Path: "kept.py", Content: []byte("k = 1\n")},
	}
	if _, err := Write(dir, old, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("mine"), 0o644); err != nil {
		t.Fatal(err)
	}

	// kept.py is claimed by the skip hook, so it belongs to the user now.
	skip := func(rel string) bool { return rel == "kept.py" }
	units := old[:1]

	res, err := Write(dir, units, Options{Check: true, Skip: skip})
	if !errors.Is(err, ErrDrift) {
		t.Fatalf("expected ErrDrift for a stale file, got %v", err)
	}
	if len(res.Removed) != 0 {
		t.Errorf("check mode removed %v", res.Removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "gone.py")); err != nil {
		t.Errorf("check mode touched gone.py: %v", err)
	}

	res, err = Write(dir, units, Options{Skip: skip})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if diff := cmp.Diff([]string{"gone.py"}, res.Removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{".rpc-gen-manifest", "a.py", "kept.py", "notes.txt"}, dirNames(t, dir)); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
	got, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "a.py\n" {
		t.Errorf("manifest = %q, expected %q", got, "a.py\n")
	}

	if _, err := Write(dir, units, Options{Check: true, Skip: skip}); err != nil {
		t.Errorf("expected no drift after removal, got %v", err)
	}
}

func TestManifestEntriesStayInside(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "out")
	outside := filepath.Join(root, "outside.py")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte("../outside.py\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := Write(dir, []Unit{{Path: "a.py", Content: []byte("a")}}, Options{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(res.Removed) != 0 {
		t.Errorf("removed %v", res.Removed)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside the output directory was removed: %v", err)
	}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
