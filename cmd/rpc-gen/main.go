package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	cli "github.com/blimu-dev/rpc-gen/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var logLevel string
	var logger *slog.Logger

	root := &cobra.Command{
		Use:           "rpc-gen",
		Short:         "Generate typed RPC clients from a route schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := cli.NewLogger(logLevel, os.Stderr)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(newGenerateCmd(&logger))
	root.AddCommand(newValidateCmd(&logger))
	root.AddCommand(newOpenAPICmd(&logger))

	if err := root.ExecuteContext(ctx); err != nil {
		if logger == nil {
			logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
		}
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func bindCommon(cmd *cobra.Command, p *cli.CommonParams) {
	cmd.Flags().StringVarP(&p.ConfigPath, "config", "c", "", "Path to rpcgen.yaml config")
	cmd.Flags().StringVar(&p.SingleClient, "client", "", "Generate only the named client from config")
	// Fallback single-client flags
	cmd.Flags().StringVar(&p.Fallback.Schema, "schema", "", "Route schema file (json/yaml)")
	cmd.Flags().StringVar(&p.Fallback.Type, "type", "", "Client type (python, typescript, go)")
	cmd.Flags().StringVar(&p.Fallback.OutDir, "out", "", "Output directory")
	cmd.Flags().StringVar(&p.Fallback.PackageName, "package-name", "", "Package name")
	cmd.Flags().StringVar(&p.Fallback.Name, "client-name", "", "Client name")
	cmd.Flags().StringVar(&p.Fallback.APIRoot, "api-root", "", "Default API root baked into the client")
	cmd.Flags().BoolVar(&p.Fallback.EmitSchema, "emit-schema", false, "Write full-schema.json next to the index unit")
	cmd.Flags().StringArrayVar(&p.Fallback.IncludeControllers, "include-controllers", nil, "Regex patterns for controllers to include")
	cmd.Flags().StringArrayVar(&p.Fallback.ExcludeControllers, "exclude-controllers", nil, "Regex patterns for controllers to exclude")
}

func newGenerateCmd(logger **slog.Logger) *cobra.Command {
	var p cli.RunGenerateParams

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate client stubs",
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Logger = *logger
			return cli.RunGenerate(cmd.Context(), p)
		},
	}

	bindCommon(cmd, &p.CommonParams)
	cmd.Flags().BoolVar(&p.Check, "check", false, "Fail if generated files are missing or out of date instead of writing")
	cmd.Flags().IntVar(&p.Parallelism, "parallelism", 4, "Number of clients generated at once")
	cmd.Flags().StringVar(&p.MetricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")

	return cmd
}

func newValidateCmd(logger **slog.Logger) *cobra.Command {
	var p cli.CommonParams
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the generator for every client without writing",
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Logger = *logger
			return cli.RunValidate(cmd.Context(), p)
		},
	}
	bindCommon(cmd, &p)
	return cmd
}

func newOpenAPICmd(logger **slog.Logger) *cobra.Command {
	var p cli.RunOpenAPIParams
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Export the route schema as an OpenAPI 3 document",
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Logger = *logger
			p.Stdout = cmd.OutOrStdout()
			return cli.RunOpenAPI(cmd.Context(), p)
		},
	}
	cmd.Flags().StringVar(&p.Schema, "schema", "", "Route schema file (json/yaml)")
	cmd.Flags().StringVar(&p.APIRoot, "api-root", "", "Server URL of the document")
	cmd.Flags().StringVar(&p.Title, "title", "", "info.title")
	cmd.Flags().StringVar(&p.Version, "version", "", "info.version")
	cmd.Flags().StringVarP(&p.Out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&p.Check, "check", false, "Fail if the output file is missing or out of date")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}
