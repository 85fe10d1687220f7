// Package main is the entry point for the pragma CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pragmatiks/pragma/internal/telemetry"
)

// Version information set at build time.
var version = "0.4.0"

// Global flags.
var (
	contextFlag string
	tokenFlag   string
	verbose     bool
)

var logger *slog.Logger

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pragma",
		Short: "Pragmatiks platform CLI",
		Long: `Pragma declares, inspects, and mutates resources managed by the
Pragmatiks platform, and drives the build/deploy lifecycle of custom
providers. The platform is the system of record; pragma holds only
connection contexts and credentials locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			ctx := telemetry.WithCorrelationID(cmd.Context(), "")
			cmd.SetContext(ctx)
			logger = telemetry.CommandLogger(telemetry.NewLogger(os.Stderr, level), ctx, cmd.Name())
			slog.SetDefault(logger)
		},
	}

	root.PersistentFlags().StringVar(&contextFlag, "context", "", "Context to use for this invocation")
	root.PersistentFlags().StringVar(&tokenFlag, "token", "", "Authentication token (overrides all other sources)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose output")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newAuthCmd())
	root.AddCommand(newResourcesCmd())
	root.AddCommand(newProviderCmd())
	root.AddCommand(newOpsCmd())

	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
