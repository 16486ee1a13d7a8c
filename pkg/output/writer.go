// Package output lays emitted units out on disk.
package output

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ManifestFile lists, one path per line, the units the last Write produced
// in a directory. Files listed there and no longer produced are stale.
const ManifestFile = ".rpc-gen-manifest"

// Unit is one emitted file. Path is relative to the output directory and
// always uses forward slashes.
type Unit struct {
	Path    string
	Content []byte
}

// Options controls Write.
type Options struct {
	// Check reports drift instead of writing.
	Check bool
	// Skip reports units that must not be written, e.g. user-owned files.
	Skip func(relPath string) bool
}

// Result summarizes a Write call.
type Result struct {
	Written   []string
	Unchanged []string
	Skipped   []string
	Removed   []string
}

// ErrDrift is wrapped by Write in check mode when a file is missing or differs.
var ErrDrift = errors.New("generated output is out of date")

// Write writes units under dir in the order given. Unchanged files are not
// touched; changed files are replaced atomically. Files a previous Write
// produced that are no longer among units are removed, unless Skip claims
// them. In check mode nothing is written and every missing, differing or
// stale file is reported.
func Write(dir string, units []Unit, opt Options) (Result, error) {
	var res Result
	var drift []string
	previous, err := readManifest(dir)
	if err != nil {
		return res, err
	}
	produced := make(map[string]bool, len(units))
	for _, u := range units {
		rel, err := cleanRel(u.Path)
		if err != nil {
			return res, err
		}
		if opt.Skip != nil && opt.Skip(rel) {
			res.Skipped = append(res.Skipped, rel)
			continue
		}
		produced[rel] = true
		wrote, err := WriteFile(filepath.Join(dir, filepath.FromSlash(rel)), u.Content, opt.Check)
		switch {
		case errors.Is(err, ErrDrift):
			drift = append(drift, rel)
		case err != nil:
			return res, err
		case wrote:
			res.Written = append(res.Written, rel)
		default:
			res.Unchanged = append(res.Unchanged, rel)
		}
	}

	for _, rel := range previous {
		if produced[rel] || (opt.Skip != nil && opt.Skip(rel)) {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			continue
		} else if err != nil {
			return res, fmt.Errorf("stat stale file: %w", err)
		}
		if opt.Check {
			drift = append(drift, rel)
			continue
		}
		if err := os.Remove(path); err != nil {
			return res, fmt.Errorf("remove stale file: %w", err)
		}
		res.Removed = append(res.Removed, rel)
	}

	if !opt.Check {
		if _, err := WriteFile(filepath.Join(dir, ManifestFile), manifest(produced), false); err != nil {
			return res, fmt.Errorf("write manifest: %w", err)
		}
	}
	if len(drift) > 0 {
		return res, fmt.Errorf("%w: %s", ErrDrift, strings.Join(drift, ", "))
	}
	return res, nil
}

// WriteFile writes data to path unless it already holds exactly data.
func WriteFile(path string, data []byte, check bool) (wrote bool, err error) {
	existing, readErr := os.ReadFile(path)
	if readErr == nil {
		if bytes.Equal(existing, data) {
			return false, nil
		}
	} else if !os.IsNotExist(readErr) {
		return false, fmt.Errorf("read existing: %w", readErr)
	}

	if check {
		return false, fmt.Errorf("%w: %s", ErrDrift, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("mkdir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return false, fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("rename tmp: %w", err)
	}
	return true, nil
}

func readManifest(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		// An entry pointing outside dir is never trusted.
		rel, err := cleanRel(line)
		if err != nil || rel == ManifestFile {
			continue
		}
		paths = append(paths, rel)
	}
	return paths, nil
}

func manifest(produced map[string]bool) []byte {
	paths := make([]string, 0, len(produced))
	for rel := range produced {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	var b bytes.Buffer
	for _, rel := range paths {
		b.WriteString(rel)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func cleanRel(p string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	if clean == "." || filepath.IsAbs(p) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("unit path %q escapes the output directory", p)
	}
	return clean, nil
}
