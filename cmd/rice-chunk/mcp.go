package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-chunk/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve chunking tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
chunk_code, chunk_file and list_languages tools. Chunking defaults come
from the config file and environment; tools may override them per call.
Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("root") {
				cfg.MCP.Root, _ = cmd.Flags().GetString("root")
			}
			log := newLogger(cmd, cfg)

			reg, err := cfg.Registry()
			if err != nil {
				return fmt.Errorf("failed to load profiles: %w", err)
			}
			chunkerCfg, err := cfg.ChunkerConfig()
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerConfig{
				Chunker:  chunkerCfg,
				Registry: reg,
				Logger:   log,
				Root:     cfg.MCP.Root,
				Version:  version,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().String("root", "", "directory that relative chunk_file paths resolve against")

	return cmd
}
