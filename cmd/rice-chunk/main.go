// Package main provides the rice-chunk binary.
// It splits source files into size-bounded chunks that carry their
// enclosing classes and functions as context, and serves the same
// chunking to MCP clients.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-chunk/internal/config"
	"github.com/ricesearch/rice-chunk/internal/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rice-chunk",
		Short: "Rice Chunk - syntax-aware code chunking",
		Long: `Rice Chunk splits source files into ordered, size-bounded chunks along
syntax boundaries. Every chunk carries the chain of enclosing classes and
functions as a preamble, so it reads correctly on its own.

Examples:
  rice-chunk chunk src/                         # JSON Lines to stdout
  rice-chunk chunk -b 40 --unit lines main.py   # 40-line chunks
  rice-chunk chunk --format sqlite -o chunks.db --incremental repo/
  rice-chunk languages                          # supported languages
  rice-chunk mcp                                # MCP server on stdio`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	rootCmd.AddCommand(
		chunkCmd(),
		languagesCmd(),
		mcpCmd(),
		versionCmd(),
	)

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rice-chunk %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// loadConfig loads the config file and environment, then applies the
// global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format, _ = cmd.Flags().GetString("log-format")
	}
	return cfg, nil
}

// newLogger creates a logger on the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) *logger.Logger {
	return logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
}
