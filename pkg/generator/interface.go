package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blimu-dev/rpc-gen/pkg/config"
	"github.com/blimu-dev/rpc-gen/pkg/generator/common"
	"github.com/blimu-dev/rpc-gen/pkg/generator/golang"
	"github.com/blimu-dev/rpc-gen/pkg/generator/python"
	"github.com/blimu-dev/rpc-gen/pkg/generator/typescript"
	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/naming"
	"github.com/blimu-dev/rpc-gen/pkg/normalize"
	"github.com/blimu-dev/rpc-gen/pkg/output"
	"github.com/blimu-dev/rpc-gen/pkg/schema"
)

// Generator defines the interface for client generators
type Generator interface {
	common.Emitter
	// GetType returns the type identifier for this generator (e.g., "typescript")
	GetType() string
}

// Registry manages available generators
type Registry struct {
	generators map[string]Generator
}

// NewRegistry creates a new generator registry
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[string]Generator),
	}
}

// Register adds a generator to the registry
func (r *Registry) Register(gen Generator) {
	r.generators[gen.GetType()] = gen
}

// Get retrieves a generator by type
func (r *Registry) Get(genType string) (Generator, bool) {
	gen, exists := r.generators[genType]
	return gen, exists
}

// GetAvailableTypes returns all registered generator types, sorted.
func (r *Registry) GetAvailableTypes() []string {
	types := make([]string, 0, len(r.generators))
	for t := range r.generators {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// TargetStats describes one finished target.
type TargetStats struct {
	Client    string
	Type      string
	Endpoints int
	Types     int
	Output    output.Result
	Duration  time.Duration
}

// Observer receives generation events. Implementations must be safe for
// concurrent use; targets report from their own goroutines.
type Observer interface {
	// ObserveTarget is called once per target, with the error that ended it.
	ObserveTarget(stats TargetStats, err error)
}

// GenerateOptions contains options for client generation
type GenerateOptions struct {
	ConfigPath   string
	SingleClient string
	// Check reports drift instead of writing files.
	Check    bool
	Fallback FallbackOptions
}

// FallbackOptions describes a single client when no config file is provided
type FallbackOptions struct {
	Schema             string
	Type               string
	OutDir             string
	PackageName        string
	Name               string
	APIRoot            string
	EmitSchema         bool
	IncludeControllers []string
	ExcludeControllers []string
}

// Config turns the fallback flags into a one-client configuration.
func (f FallbackOptions) Config() (*config.Config, error) {
	if f.Schema == "" || f.Type == "" || f.OutDir == "" {
		return nil, errors.New("either a config path or the schema, type and output directory must be provided")
	}
	name := f.Name
	if name == "" {
		name = f.Type
	}
	cfg := &config.Config{
		Schema: f.Schema,
		Clients: []config.Client{{
			Name:               name,
			Type:               f.Type,
			OutDir:             f.OutDir,
			PackageName:        f.PackageName,
			APIRoot:            f.APIRoot,
			EmitSchema:         f.EmitSchema,
			IncludeControllers: f.IncludeControllers,
			ExcludeControllers: f.ExcludeControllers,
		}},
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(wd); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Service runs the load, normalize, build, name, emit and write pipeline.
type Service struct {
	registry    *Registry
	logger      *slog.Logger
	observer    Observer
	parallelism int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithObserver sets the observer notified after every target.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithParallelism bounds the number of targets generated at once.
func WithParallelism(n int) Option {
	return func(s *Service) { s.parallelism = n }
}

// WithRegistry replaces the default generator registry.
func WithRegistry(r *Registry) Option {
	return func(s *Service) { s.registry = r }
}

// DefaultRegistry returns a registry holding the python, typescript and go generators.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(python.NewPythonGenerator())
	registry.Register(typescript.NewTypeScriptGenerator())
	registry.Register(golang.NewGoGenerator())
	return registry
}

// NewService creates a new generator service with default generators
func NewService(opts ...Option) *Service {
	s := &Service{registry: DefaultRegistry(), parallelism: 4}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.parallelism < 1 {
		s.parallelism = 1
	}
	return s
}

// GetRegistry returns the generator registry
func (s *Service) GetRegistry() *Registry {
	return s.registry
}

// Generate generates clients based on the provided options
func (s *Service) Generate(ctx context.Context, opts GenerateOptions) error {
	var cfg *config.Config
	var err error
	if opts.ConfigPath == "" {
		cfg, err = opts.Fallback.Config()
	} else {
		cfg, err = config.Load(opts.ConfigPath)
	}
	if err != nil {
		return err
	}
	return s.GenerateFromConfig(ctx, cfg, RunOptions{OnlyClient: opts.SingleClient, Check: opts.Check})
}

// RunOptions selects what GenerateFromConfig does with the emitted units.
type RunOptions struct {
	// OnlyClient restricts the run to one named client.
	OnlyClient string
	// Check compares instead of writing.
	Check bool
	// DryRun stops after emission; nothing is read from or written to disk.
	DryRun bool
}

// Build loads the schema document and builds the read-only service tree.
func (s *Service) Build(schemaPath string) (*schema.Document, *ir.Service, error) {
	start := time.Now()
	doc, err := schema.Load(schemaPath)
	if err != nil {
		return nil, nil, err
	}
	shapes, err := normalize.Document(doc)
	if err != nil {
		return nil, nil, err
	}
	svc, err := BuildIR(doc.Routes, shapes)
	if err != nil {
		return nil, nil, err
	}
	svc.APIRoot = doc.APIRoot
	s.logger.Debug("schema built",
		"schema", schemaPath,
		"controllers", len(svc.Controllers),
		"endpoints", len(svc.Endpoints()),
		"duration", time.Since(start))
	return doc, svc, nil
}

// GenerateFromConfig generates every configured client. Targets run
// concurrently; a failed target does not stop the others and all failures
// are joined into the returned error.
func (s *Service) GenerateFromConfig(ctx context.Context, cfg *config.Config, opts RunOptions) error {
	doc, svc, err := s.Build(cfg.Schema)
	if err != nil {
		return err
	}

	var clients []config.Client
	for _, client := range cfg.Clients {
		if opts.OnlyClient != "" && client.Name != opts.OnlyClient {
			continue
		}
		clients = append(clients, client)
	}
	if opts.OnlyClient != "" && len(clients) == 0 {
		return fmt.Errorf("client %q not found in config", opts.OnlyClient)
	}

	fp := naming.NewFingerprinter()
	errs := make([]error, len(clients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, client := range clients {
		client.APIRoot = cfg.ResolveAPIRoot(client, doc.APIRoot)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			start := time.Now()
			stats, err := s.runTarget(gctx, client, svc, fp, opts)
			stats.Duration = time.Since(start)
			if s.observer != nil {
				s.observer.ObserveTarget(stats, err)
			}
			if err != nil {
				s.logger.Error("target failed", "client", client.Name, "type", client.Type, "error", err)
				errs[i] = fmt.Errorf("client %s: %w", client.Name, err)
				return nil
			}
			s.logger.Info("target generated",
				"client", client.Name,
				"type", client.Type,
				"written", len(stats.Output.Written),
				"unchanged", len(stats.Output.Unchanged),
				"skipped", len(stats.Output.Skipped),
				"removed", len(stats.Output.Removed),
				"duration", stats.Duration)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Emit runs naming and emission for one client without touching the disk.
func (s *Service) Emit(client config.Client, svc *ir.Service, fp *naming.Fingerprinter) ([]output.Unit, *naming.Registry, *ir.Service, error) {
	gen, exists := s.registry.Get(client.Type)
	if !exists {
		return nil, nil, nil, fmt.Errorf("unsupported client type: %s (available: %s)", client.Type, strings.Join(s.registry.GetAvailableTypes(), ", "))
	}
	filtered, err := filterControllers(svc, client.IncludeControllers, client.ExcludeControllers)
	if err != nil {
		return nil, nil, nil, err
	}
	if client.APIRoot != "" {
		filtered.APIRoot = client.APIRoot
	}
	if filtered.APIRoot == "" {
		filtered.APIRoot = config.DefaultAPIRoot
	}

	reg, err := naming.New(gen.Style(), fp).Name(filtered)
	if err != nil {
		return nil, nil, nil, err
	}
	units, err := gen.Emit(client, filtered, reg)
	if err != nil {
		return nil, nil, nil, err
	}
	if client.EmitSchema {
		snap, err := Snapshot(filtered)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("snapshot: %w", err)
		}
		units = append(units, output.Unit{Path: common.SchemaFile, Content: snap})
	}
	return units, reg, filtered, nil
}

func (s *Service) runTarget(ctx context.Context, client config.Client, svc *ir.Service, fp *naming.Fingerprinter, opts RunOptions) (TargetStats, error) {
	stats := TargetStats{Client: client.Name, Type: client.Type}
	units, reg, filtered, err := s.Emit(client, svc, fp)
	if err != nil {
		return stats, err
	}
	stats.Endpoints = len(filtered.Endpoints())
	stats.Types = len(reg.Types())
	if opts.DryRun {
		return stats, nil
	}

	if !opts.Check {
		if err := os.MkdirAll(client.OutDir, 0o755); err != nil {
			return stats, fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := s.executeCommand(ctx, client.GetPreCommand(), client.OutDir, "pre-command"); err != nil {
			return stats, fmt.Errorf("pre-generation commands failed: %w", err)
		}
	}

	stats.Output, err = output.Write(client.OutDir, units, output.Options{
		Check: opts.Check,
		Skip:  client.ShouldExcludeFile,
	})
	if err != nil {
		return stats, err
	}

	if !opts.Check {
		if err := s.executeCommand(ctx, client.GetPostCommand(), client.OutDir, "post-command"); err != nil {
			return stats, fmt.Errorf("post-generation commands failed: %w", err)
		}
	}
	return stats, nil
}

// executeCommand executes a single command in Docker Compose array format
func (s *Service) executeCommand(ctx context.Context, command []string, workDir, commandLabel string) error {
	if len(command) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = workDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	cmdDescription := strings.Join(command, " ")
	s.logger.Debug("running command", "label", commandLabel, "command", cmdDescription, "dir", workDir)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s (%s) failed: %w", commandLabel, cmdDescription, err)
	}

	return nil
}
