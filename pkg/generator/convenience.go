package generator

import (
	"context"

	"github.com/blimu-dev/rpc-gen/pkg/config"
	"github.com/blimu-dev/rpc-gen/pkg/openapi"
)

// GenerateClient is a convenience function for generating one client without a config file
func GenerateClient(ctx context.Context, opts FallbackOptions) error {
	return NewService().Generate(ctx, GenerateOptions{Fallback: opts})
}

// GenerateFromConfig is a convenience function for generating from a config file
func GenerateFromConfig(ctx context.Context, configPath string, singleClient ...string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	onlyClient := ""
	if len(singleClient) > 0 {
		onlyClient = singleClient[0]
	}

	return NewService().GenerateFromConfig(ctx, cfg, RunOptions{OnlyClient: onlyClient})
}

// ValidateSchema loads, normalizes and builds a route schema without emitting anything.
func ValidateSchema(schemaPath string) error {
	_, _, err := NewService().Build(schemaPath)
	return err
}

// ExportOpenAPI builds a route schema and renders it as an OpenAPI 3 JSON document.
func ExportOpenAPI(ctx context.Context, schemaPath string, opts openapi.Options) ([]byte, error) {
	doc, svc, err := NewService().Build(schemaPath)
	if err != nil {
		return nil, err
	}
	if opts.ServerURL == "" {
		opts.ServerURL = doc.APIRoot
	}
	exported, err := openapi.Export(ctx, svc, opts)
	if err != nil {
		return nil, err
	}
	return openapi.Marshal(exported)
}
