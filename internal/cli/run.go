package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blimu-dev/rpc-gen/internal/metrics"
	"github.com/blimu-dev/rpc-gen/pkg/config"
	"github.com/blimu-dev/rpc-gen/pkg/generator"
	"github.com/blimu-dev/rpc-gen/pkg/openapi"
	"github.com/blimu-dev/rpc-gen/pkg/output"
)

// FallbackParams describes a single client given on the command line.
type FallbackParams struct {
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

// CommonParams are shared by every command.
type CommonParams struct {
	ConfigPath   string
	SingleClient string
	Logger       *slog.Logger
	Fallback     FallbackParams
}

// RunGenerateParams configures RunGenerate.
type RunGenerateParams struct {
	CommonParams
	Check       bool
	Parallelism int
	MetricsFile string
}

func (p CommonParams) config() (*config.Config, error) {
	if p.ConfigPath != "" {
		return config.Load(p.ConfigPath)
	}
	return generator.FallbackOptions{
		Schema:             absPath(p.Fallback.Schema),
		Type:               p.Fallback.Type,
		OutDir:             absPath(p.Fallback.OutDir),
		PackageName:        p.Fallback.PackageName,
		Name:               p.Fallback.Name,
		APIRoot:            p.Fallback.APIRoot,
		EmitSchema:         p.Fallback.EmitSchema,
		IncludeControllers: p.Fallback.IncludeControllers,
		ExcludeControllers: p.Fallback.ExcludeControllers,
	}.Config()
}

// RunGenerate generates every selected client. The metrics file, when
// requested, is written even if generation fails.
func RunGenerate(ctx context.Context, p RunGenerateParams) (err error) {
	cfg, err := p.config()
	if err != nil {
		return err
	}

	opts := []generator.Option{
		generator.WithLogger(p.Logger),
		generator.WithParallelism(p.Parallelism),
	}
	if p.MetricsFile != "" {
		reg := metrics.NewRegistry()
		opts = append(opts, generator.WithObserver(metrics.NewGenerationObserver(reg)))
		defer func() {
			if werr := metrics.WriteFile(reg, p.MetricsFile); werr != nil {
				err = errors.Join(err, fmt.Errorf("write metrics: %w", werr))
			}
		}()
	}

	svc := generator.NewService(opts...)
	return svc.GenerateFromConfig(ctx, cfg, generator.RunOptions{OnlyClient: p.SingleClient, Check: p.Check})
}

// RunValidate runs the whole pipeline for every selected client without
// touching the output directories.
func RunValidate(ctx context.Context, p CommonParams) error {
	cfg, err := p.config()
	if err != nil {
		return err
	}
	svc := generator.NewService(generator.WithLogger(p.Logger))
	if err := svc.GenerateFromConfig(ctx, cfg, generator.RunOptions{OnlyClient: p.SingleClient, DryRun: true}); err != nil {
		return err
	}
	if p.Logger != nil {
		p.Logger.Info("schema is valid", "schema", cfg.Schema, "clients", len(cfg.Clients))
	}
	return nil
}

// RunOpenAPIParams configures RunOpenAPI.
type RunOpenAPIParams struct {
	Schema  string
	APIRoot string
	Title   string
	Version string
	// Out is the destination file; empty writes to Stdout.
	Out    string
	Check  bool
	Stdout io.Writer
	Logger *slog.Logger
}

// RunOpenAPI exports the schema as an OpenAPI document.
func RunOpenAPI(ctx context.Context, p RunOpenAPIParams) error {
	if p.Schema == "" {
		return errors.New("--schema is required")
	}
	svc := generator.NewService(generator.WithLogger(p.Logger))
	doc, built, err := svc.Build(absPath(p.Schema))
	if err != nil {
		return err
	}
	apiRoot := p.APIRoot
	if apiRoot == "" {
		apiRoot = doc.APIRoot
	}
	if apiRoot == "" {
		apiRoot = config.DefaultAPIRoot
	}
	exported, err := openapi.Export(ctx, built, openapi.Options{Title: p.Title, Version: p.Version, ServerURL: apiRoot})
	if err != nil {
		return err
	}
	data, err := openapi.Marshal(exported)
	if err != nil {
		return err
	}
	if p.Out == "" {
		_, err := p.Stdout.Write(data)
		return err
	}
	wrote, err := output.WriteFile(absPath(p.Out), data, p.Check)
	if err != nil {
		return err
	}
	if p.Logger != nil {
		p.Logger.Info("openapi document exported", "out", p.Out, "changed", wrote)
	}
	return nil
}
