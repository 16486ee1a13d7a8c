// Package rpcgen generates typed RPC client stubs from a route schema.
//
// The schema describes segments, controllers and handlers together with the
// validation descriptors of each handler (JSON Schema from zod or
// class-validator, or yup's describe() output). rpcgen normalizes them into
// one shape vocabulary, names every anonymous fragment and emits one module
// per controller for Python, TypeScript or Go.
//
// Quick Start:
//
//	import "github.com/blimu-dev/rpc-gen"
//
//	err := rpcgen.GenerateFromConfig(ctx, "./rpcgen.yaml")
//
// For more advanced usage, see the generator package.
package rpcgen

import (
	"context"

	"github.com/blimu-dev/rpc-gen/pkg/generator"
	"github.com/blimu-dev/rpc-gen/pkg/openapi"
)

// GenerateOptions describes a single client generated without a config file.
type GenerateOptions = generator.FallbackOptions

// Generate generates one client.
//
// Example:
//
//	err := rpcgen.Generate(ctx, rpcgen.GenerateOptions{
//		Schema:     "./.vovk-schema/full.json",
//		Type:       "python",
//		OutDir:     "./client",
//		EmitSchema: true,
//	})
func Generate(ctx context.Context, opts GenerateOptions) error {
	return generator.GenerateClient(ctx, opts)
}

// GenerateFromConfig generates clients from a YAML configuration file.
// Optionally, you can specify a single client name to generate only that client.
//
// Example:
//
//	// Generate all clients from config
//	err := rpcgen.GenerateFromConfig(ctx, "./rpcgen.yaml")
//
//	// Generate only a specific client
//	err := rpcgen.GenerateFromConfig(ctx, "./rpcgen.yaml", "py")
func GenerateFromConfig(ctx context.Context, configPath string, singleClient ...string) error {
	return generator.GenerateFromConfig(ctx, configPath, singleClient...)
}

// Validate checks that a route schema loads, normalizes and builds.
//
// Example:
//
//	if err := rpcgen.Validate("./schema.json"); err != nil {
//		log.Fatalf("invalid schema: %v", err)
//	}
func Validate(schemaPath string) error {
	return generator.ValidateSchema(schemaPath)
}

// ExportOpenAPI renders a route schema as an OpenAPI 3 JSON document.
func ExportOpenAPI(ctx context.Context, schemaPath string, opts openapi.Options) ([]byte, error) {
	return generator.ExportOpenAPI(ctx, schemaPath, opts)
}
