// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ricesearch/rice-chunk/internal/chunk"
	"github.com/ricesearch/rice-chunk/internal/index"
	"github.com/ricesearch/rice-chunk/internal/profile"
	"github.com/ricesearch/rice-chunk/internal/store"
	"github.com/ricesearch/rice-chunk/internal/watch"
)

// Config holds all application configuration.
type Config struct {
	// Chunking parameters
	Chunk ChunkConfig `yaml:"chunk"`

	// File pipeline and record settings
	Index IndexConfig `yaml:"index"`

	// Output destination
	Output OutputConfig `yaml:"output"`

	// MCP server settings
	MCP MCPConfig `yaml:"mcp"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// ChunkConfig holds the chunking parameters.
type ChunkConfig struct {
	Budget         int    `envconfig:"RICE_CHUNK_BUDGET" yaml:"budget"`
	Overlap        int    `envconfig:"RICE_CHUNK_OVERLAP" yaml:"overlap"`
	Unit           string `envconfig:"RICE_CHUNK_UNIT" yaml:"unit"`
	MaxDepth       int    `envconfig:"RICE_CHUNK_MAX_DEPTH" yaml:"max_depth"`
	MaxNodes       int    `envconfig:"RICE_CHUNK_MAX_NODES" yaml:"max_nodes"` // 0 = unlimited
	Style          string `envconfig:"RICE_CHUNK_STYLE" yaml:"style"`
	CountAncestors bool   `envconfig:"RICE_CHUNK_COUNT_ANCESTORS" yaml:"count_ancestors"`
	DisableMerge   bool   `envconfig:"RICE_CHUNK_DISABLE_MERGE" yaml:"disable_merge"`

	// Encoding selects exact BPE token counting (e.g. cl100k_base) for the
	// tokens unit. Empty uses the character estimate.
	Encoding string `envconfig:"RICE_CHUNK_ENCODING" yaml:"encoding"`
}

// IndexConfig holds file pipeline and record settings.
type IndexConfig struct {
	Workers           int    `envconfig:"RICE_CHUNK_WORKERS" yaml:"workers"`
	BatchSize         int    `envconfig:"RICE_CHUNK_BATCH_SIZE" yaml:"batch_size"`
	Template          string `envconfig:"RICE_CHUNK_TEMPLATE" yaml:"template"`
	Expand            bool   `envconfig:"RICE_CHUNK_EXPAND" yaml:"expand"`
	FailFast          bool   `envconfig:"RICE_CHUNK_FAIL_FAST" yaml:"fail_fast"`
	FallbackPlaintext bool   `envconfig:"RICE_CHUNK_FALLBACK_PLAINTEXT" yaml:"fallback_plaintext"`
	IncludeHidden     bool   `envconfig:"RICE_CHUNK_INCLUDE_HIDDEN" yaml:"include_hidden"`
	ProfilesDir       string `envconfig:"RICE_CHUNK_PROFILES_DIR" yaml:"profiles_dir"`

	// Incremental skips files whose content is unchanged since the last
	// run, using the SQLite output or StateFile to remember hashes.
	Incremental bool   `envconfig:"RICE_CHUNK_INCREMENTAL" yaml:"incremental"`
	Prune       bool   `envconfig:"RICE_CHUNK_PRUNE" yaml:"prune"`
	StateFile   string `envconfig:"RICE_CHUNK_STATE_FILE" yaml:"state_file"`

	// WatchDelay is how long watch mode lets file events settle.
	WatchDelay time.Duration `envconfig:"RICE_CHUNK_WATCH_DELAY" yaml:"watch_delay"`

	// Benchmark identifiers used by the coderagbench templates
	Repo       string `envconfig:"RICE_CHUNK_REPO" yaml:"repo"`
	InstanceID string `envconfig:"RICE_CHUNK_INSTANCE_ID" yaml:"instance_id"`
}

// OutputConfig holds output settings.
type OutputConfig struct {
	Format      string `envconfig:"RICE_CHUNK_FORMAT" yaml:"format"`
	Path        string `envconfig:"RICE_CHUNK_OUT" yaml:"path"` // empty or "-" = stdout
	CodeWindows bool   `envconfig:"RICE_CHUNK_CODE_WINDOWS" yaml:"code_windows"`
}

// MCPConfig holds MCP server settings.
type MCPConfig struct {
	Root string `envconfig:"RICE_CHUNK_MCP_ROOT" yaml:"root"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"RICE_CHUNK_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"RICE_CHUNK_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	cfg.Chunk = ChunkConfig{
		Budget:   chunk.DefaultBudget,
		Unit:     string(chunk.UnitTokens),
		MaxDepth: chunk.DefaultMaxDepth,
		Style:    string(chunk.StyleKind),
	}

	cfg.Index = IndexConfig{
		Workers:    index.DefaultPipelineConfig().Workers,
		BatchSize:  index.DefaultBatchSize,
		Template:   string(index.DefaultTemplate),
		WatchDelay: watch.DefaultDelay,
	}

	cfg.Output = OutputConfig{
		Format: string(store.FormatJSONL),
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Chunk validation
	if c.Chunk.Budget < 1 {
		errs = append(errs, "budget must be positive")
	}

	if c.Chunk.Overlap < 0 {
		errs = append(errs, "overlap must not be negative")
	}

	if c.Chunk.MaxDepth < 1 {
		errs = append(errs, "max_depth must be positive")
	}

	if c.Chunk.MaxNodes < 0 {
		errs = append(errs, "max_nodes must not be negative")
	}

	unit, err := chunk.ParseUnit(c.Chunk.Unit)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid unit: %s (must be lines, tokens, bytes, or nws)", c.Chunk.Unit))
	}

	if _, err := chunk.ParseStyle(c.Chunk.Style); err != nil {
		errs = append(errs, fmt.Sprintf("invalid style: %s (must be kind or signature)", c.Chunk.Style))
	}

	if c.Chunk.Encoding != "" && err == nil && unit != chunk.UnitTokens {
		errs = append(errs, "encoding requires unit tokens")
	}

	// Index validation
	if c.Index.Workers < 1 {
		errs = append(errs, "workers must be positive")
	}

	if c.Index.BatchSize < 1 {
		errs = append(errs, "batch_size must be positive")
	}

	if _, err := index.ParseTemplate(c.Index.Template); err != nil {
		errs = append(errs, fmt.Sprintf("invalid template: %s", c.Index.Template))
	}

	// Output validation
	format, err := store.ParseFormat(c.Output.Format)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid output format: %s (must be jsonl, json, or sqlite)", c.Output.Format))
	} else if format == store.FormatSQLite && (c.Output.Path == "" || c.Output.Path == "-") {
		errs = append(errs, "sqlite output requires an output path")
	}

	if c.Index.Prune && !c.Index.Incremental {
		errs = append(errs, "prune requires incremental")
	}

	if c.Index.Incremental && format != store.FormatSQLite && c.Index.StateFile == "" {
		errs = append(errs, "incremental runs need sqlite output or a state_file")
	}

	if c.Index.WatchDelay < 0 {
		errs = append(errs, "watch_delay must not be negative")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ChunkOptions returns the chunking options. A configured encoding loads
// the BPE tokenizer.
func (c *Config) ChunkOptions() (chunk.Options, error) {
	opts := chunk.Options{
		Budget:         c.Chunk.Budget,
		Overlap:        c.Chunk.Overlap,
		Unit:           chunk.Unit(strings.ToLower(c.Chunk.Unit)),
		MaxDepth:       c.Chunk.MaxDepth,
		MaxNodes:       c.Chunk.MaxNodes,
		Style:          chunk.Style(strings.ToLower(c.Chunk.Style)),
		CountAncestors: c.Chunk.CountAncestors,
		DisableMerge:   c.Chunk.DisableMerge,
	}
	if c.Chunk.Encoding != "" {
		m, err := chunk.NewBPEMetric(c.Chunk.Encoding)
		if err != nil {
			return opts, err
		}
		opts.Metric = m
	}
	return opts, nil
}

// ChunkerConfig returns the per-document chunker configuration.
func (c *Config) ChunkerConfig() (index.ChunkerConfig, error) {
	opts, err := c.ChunkOptions()
	if err != nil {
		return index.ChunkerConfig{}, err
	}
	return index.ChunkerConfig{
		Options:           opts,
		Template:          index.Template(c.Index.Template),
		Expand:            c.Index.Expand,
		FallbackPlaintext: c.Index.FallbackPlaintext,
		Repo: index.RepoInfo{
			Repo:       c.Index.Repo,
			InstanceID: c.Index.InstanceID,
		},
	}, nil
}

// PipelineConfig returns the file pipeline configuration.
func (c *Config) PipelineConfig() index.PipelineConfig {
	return index.PipelineConfig{
		Workers:       c.Index.Workers,
		BatchSize:     c.Index.BatchSize,
		FailFast:      c.Index.FailFast,
		SkipUnchanged: c.Index.Incremental,
		IncludeHidden: c.Index.IncludeHidden,
	}
}

// OutputOptions returns the sink options.
func (c *Config) OutputOptions() store.Options {
	return store.Options{
		Format:      store.Format(strings.ToLower(c.Output.Format)),
		Path:        c.Output.Path,
		CodeWindows: c.Output.CodeWindows,
	}
}

// Registry returns the built-in profiles plus any in ProfilesDir.
func (c *Config) Registry() (*profile.Registry, error) {
	reg := profile.NewRegistry()
	if c.Index.ProfilesDir == "" {
		return reg, nil
	}
	if _, err := reg.LoadDir(c.Index.ProfilesDir); err != nil {
		return nil, err
	}
	return reg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Log.Level, "debug")
}
