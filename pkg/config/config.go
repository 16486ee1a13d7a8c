package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAPIRoot is used when neither the config nor the schema names an API root.
const DefaultAPIRoot = "/api"

// Config represents the complete configuration for client generation
type Config struct {
	// Schema is the path of the RPC schema document (JSON or YAML).
	Schema string `yaml:"schema"`
	// APIRoot is the default API root baked into every generated client.
	APIRoot string   `yaml:"apiRoot"`
	Clients []Client `yaml:"clients"`
}

// Client represents configuration for a single generated client
type Client struct {
	Name string `yaml:"name"`
	// Type selects the emitter: python, typescript or go.
	Type        string `yaml:"type"`
	OutDir      string `yaml:"outDir"`
	PackageName string `yaml:"packageName"`
	// APIRoot overrides Config.APIRoot for this client.
	APIRoot string `yaml:"apiRoot"`
	// EmitSchema writes full-schema.json next to the index unit and exposes it
	// from the generated package.
	EmitSchema bool `yaml:"emitSchema"`
	// IncludeControllers and ExcludeControllers are regular expressions matched
	// against controller names. Exclusion wins.
	IncludeControllers []string `yaml:"includeControllers"`
	ExcludeControllers []string `yaml:"excludeControllers"`
	// PreCommand is an optional command to run before generation starts.
	// Uses Docker Compose array format: ["npm", "install"]
	// The command will be executed in the output directory.
	PreCommand []string `yaml:"preCommand"`
	// PostCommand is an optional command to run after generation completes.
	// Uses Docker Compose array format: ["gofmt", "-w", "."]
	// The command will be executed in the output directory.
	PostCommand []string `yaml:"postCommand"`
	// ExcludeFiles is a list of file paths (relative to outDir) that should not be written
	// Example: ["__init__.py", "full-schema.json"]
	ExcludeFiles []string `yaml:"exclude"`
}

// GetPreCommand returns the pre-generation command to execute.
func (c *Client) GetPreCommand() []string {
	return c.PreCommand
}

// GetPostCommand returns the post-generation command to execute.
func (c *Client) GetPostCommand() []string {
	return c.PostCommand
}

// ShouldExcludeFile checks if a file path should be excluded based on the ExcludeFiles list.
// relPath is relative to OutDir. Patterns match exactly, as a directory prefix
// ("gen/") or as a filepath.Match glob.
func (c *Client) ShouldExcludeFile(relPath string) bool {
	if len(c.ExcludeFiles) == 0 {
		return false
	}
	relPath = filepath.ToSlash(filepath.Clean(relPath))

	for _, pattern := range c.ExcludeFiles {
		pattern = filepath.ToSlash(pattern)
		if relPath == pattern {
			return true
		}
		if dir := strings.TrimSuffix(pattern, "/"); dir != "" && strings.HasPrefix(relPath, dir+"/") {
			return true
		}
		if ok, err := filepath.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// ResolveAPIRoot picks the API root for a client: the client override, then
// the config value, then the schema document's value, then DefaultAPIRoot.
func (c *Config) ResolveAPIRoot(client Client, documentRoot string) string {
	for _, candidate := range []string{client.APIRoot, c.APIRoot, documentRoot} {
		if candidate != "" {
			return candidate
		}
	}
	return DefaultAPIRoot
}

// Load loads configuration from a YAML file. Relative paths are resolved
// against the directory holding the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(base); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and makes paths absolute relative to base.
func (c *Config) Validate(base string) error {
	if c.Schema == "" {
		return errors.New("config.schema is required")
	}
	c.Schema = absolute(base, c.Schema)

	names := make(map[string]int, len(c.Clients))
	dirs := make(map[string]int, len(c.Clients))
	for i := range c.Clients {
		cl := &c.Clients[i]
		if cl.Type == "" || cl.OutDir == "" || cl.Name == "" {
			return fmt.Errorf("clients[%d] missing required fields (name, type, outDir)", i)
		}
		cl.OutDir = absolute(base, cl.OutDir)
		if j, dup := names[cl.Name]; dup {
			return fmt.Errorf("clients[%d] and clients[%d] share the name %q", j, i, cl.Name)
		}
		if j, dup := dirs[cl.OutDir]; dup {
			return fmt.Errorf("clients[%d] and clients[%d] share the output directory %s", j, i, cl.OutDir)
		}
		names[cl.Name] = i
		dirs[cl.OutDir] = i
	}
	return nil
}

func absolute(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
