package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-chunk/internal/config"
	"github.com/ricesearch/rice-chunk/internal/index"
	"github.com/ricesearch/rice-chunk/internal/pkg/logger"
	"github.com/ricesearch/rice-chunk/internal/store"
)

func chunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk [paths...]",
		Short: "Chunk files and directories",
		Long: `Chunk every file named on the command line, walking directories.
Languages are detected from file extensions. Records are written in input
order as JSON Lines (default), a JSON array, or into a SQLite database.
Directory walks honour .gitignore and .ricechunkignore. With --watch the
command keeps running and re-chunks files as they change.

Flags override the config file and RICE_CHUNK_* environment variables.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runChunk,
	}

	f := cmd.Flags()

	// Chunking
	f.IntP("budget", "b", 0, "maximum chunk size in --unit")
	f.Int("overlap", 0, "previous-chunk context repeated ahead of each chunk, in --unit")
	f.String("unit", "", "size unit (lines, tokens, bytes, nws)")
	f.Int("max-depth", 0, "maximum nesting depth before a file fails")
	f.Int("max-nodes", 0, "maximum nodes decomposed per file (0 = unlimited)")
	f.String("style", "", "ancestor preamble style (kind, signature)")
	f.Bool("count-ancestors", false, "charge the ancestor preamble against the budget")
	f.Bool("no-merge", false, "do not merge adjacent small segments")
	f.String("tokenizer", "", "count tokens with a BPE encoding (e.g. cl100k_base)")

	// Records
	f.String("template", "", "metadata template (none, default, coderagbench-repoeval, coderagbench-swebench-lite)")
	f.Bool("expand", false, "prefix chunks with a fenced file path and ancestors header")
	f.String("repo", "", "repository name for the repoeval template")
	f.String("instance-id", "", "instance id for the swebench-lite template")

	// Output
	f.StringP("format", "f", "", "output format (jsonl, json, sqlite)")
	f.StringP("out", "o", "", "output file (default stdout)")
	f.Bool("windows", false, "write code windows instead of full records")

	// Pipeline
	f.IntP("workers", "w", 0, "files chunked in parallel")
	f.Bool("fail-fast", false, "stop at the first file that fails")
	f.Bool("fallback", false, "chunk unknown languages as plain text")
	f.Bool("hidden", false, "include hidden files and directories")
	f.String("profiles", "", "directory of YAML language profiles")
	f.Bool("incremental", false, "skip files unchanged since the last run")
	f.Bool("prune", false, "with --incremental, drop files no longer present")
	f.String("state", "", "state file remembering content hashes between runs")
	f.Bool("quiet", false, "do not print the run summary")
	f.Bool("watch", false, "keep running and re-chunk files as they change")
	f.Duration("watch-delay", 0, "how long file events settle before re-chunking")

	return cmd
}

// applyChunkFlags copies explicitly set flags over the loaded config.
func applyChunkFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	setInt := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	setString := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}

	setInt("budget", &cfg.Chunk.Budget)
	setInt("overlap", &cfg.Chunk.Overlap)
	setString("unit", &cfg.Chunk.Unit)
	setInt("max-depth", &cfg.Chunk.MaxDepth)
	setInt("max-nodes", &cfg.Chunk.MaxNodes)
	setString("style", &cfg.Chunk.Style)
	setBool("count-ancestors", &cfg.Chunk.CountAncestors)
	setBool("no-merge", &cfg.Chunk.DisableMerge)
	setString("tokenizer", &cfg.Chunk.Encoding)

	setString("template", &cfg.Index.Template)
	setBool("expand", &cfg.Index.Expand)
	setString("repo", &cfg.Index.Repo)
	setString("instance-id", &cfg.Index.InstanceID)

	setString("format", &cfg.Output.Format)
	setString("out", &cfg.Output.Path)
	setBool("windows", &cfg.Output.CodeWindows)

	setInt("workers", &cfg.Index.Workers)
	setBool("fail-fast", &cfg.Index.FailFast)
	setBool("fallback", &cfg.Index.FallbackPlaintext)
	setBool("hidden", &cfg.Index.IncludeHidden)
	setString("profiles", &cfg.Index.ProfilesDir)
	setBool("incremental", &cfg.Index.Incremental)
	setBool("prune", &cfg.Index.Prune)
	setString("state", &cfg.Index.StateFile)
	if f.Changed("watch-delay") {
		cfg.Index.WatchDelay, _ = f.GetDuration("watch-delay")
	}
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyChunkFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	chunkerCfg, err := cfg.ChunkerConfig()
	if err != nil {
		return err
	}
	chunker, err := index.NewChunker(chunkerCfg, reg, log)
	if err != nil {
		return err
	}

	sink, err := store.Open(ctx, cfg.OutputOptions(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	pipeline := index.NewPipeline(cfg.PipelineConfig(), chunker, sink, log)
	if cfg.IsDevelopment() {
		pipeline.OnProgress(func(p index.Progress) {
			log.Debug("Progress", "stage", p.Stage, "current", p.Current, "total", p.Total, "file", p.CurrentFile)
		})
	}

	if cfg.Index.Incremental {
		if err := seedTracker(ctx, cfg, pipeline.Tracker(), sink); err != nil {
			return err
		}
	}

	log.Info("Chunking",
		"paths", len(args),
		"budget", cfg.Chunk.Budget,
		"unit", cfg.Chunk.Unit,
		"format", cfg.Output.Format,
	)

	result, err := pipeline.Run(ctx, args)
	if err != nil {
		return err
	}

	if cfg.Index.Incremental {
		if err := finishIncremental(ctx, cfg, pipeline.Tracker(), sink, result, log); err != nil {
			return err
		}
	}

	var summary io.Writer
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		summary = cmd.ErrOrStderr()
	}

	if watching, _ := cmd.Flags().GetBool("watch"); watching {
		if summary != nil {
			printSummary(summary, result)
		}
		if err := runWatch(ctx, cfg, pipeline, sink, args, summary, log); err != nil {
			return err
		}
		return sink.Close()
	}

	if err := sink.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}

	if summary != nil {
		printSummary(summary, result)
	}

	if result.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", result.Failed, result.Files)
	}
	return nil
}

// seedTracker loads the content hashes of the previous run.
func seedTracker(ctx context.Context, cfg *config.Config, tracker *index.Tracker, sink store.Sink) error {
	if cfg.Index.StateFile != "" {
		if err := tracker.Load(cfg.Index.StateFile); err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
	}
	if db, ok := sink.(*store.SQLiteSink); ok {
		hashes, err := db.DocumentHashes(ctx)
		if err != nil {
			return err
		}
		tracker.Seed(hashes)
	}
	return nil
}

// finishIncremental prunes vanished files and saves the state file.
func finishIncremental(ctx context.Context, cfg *config.Config, tracker *index.Tracker, sink store.Sink, result *index.Result, log *logger.Logger) error {
	if cfg.Index.Prune {
		current := make([]string, 0, len(result.FileInfo))
		for _, fi := range result.FileInfo {
			current = append(current, fi.Path)
		}
		removed := tracker.Removed(current)
		if db, ok := sink.(*store.SQLiteSink); ok && len(removed) > 0 {
			if err := db.DeleteDocuments(ctx, removed...); err != nil {
				return err
			}
		}
		for _, path := range removed {
			tracker.RemovePath(path)
		}
		if len(removed) > 0 {
			log.Info("Pruned removed files", "count", len(removed))
		}
	}

	if cfg.Index.StateFile != "" {
		if err := tracker.Save(cfg.Index.StateFile); err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}
	}
	return nil
}

func printSummary(w io.Writer, r *index.Result) {
	fmt.Fprintf(w, "Chunked %d of %d files into %s chunks (%s) in %s",
		r.Chunked, r.Files, humanize.Comma(int64(r.Chunks)), humanize.Bytes(uint64(r.Bytes)), r.Duration.Round(time.Millisecond))
	if r.Skipped > 0 || r.Failed > 0 {
		fmt.Fprintf(w, ", %d skipped, %d failed", r.Skipped, r.Failed)
	}
	fmt.Fprintln(w)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s: %s\n", e.Path, e.Message)
	}
}
