package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ricesearch/rice-chunk/internal/chunk"
	"github.com/ricesearch/rice-chunk/internal/index"
	"github.com/ricesearch/rice-chunk/internal/store"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RICE_CHUNK_BUDGET", "40")
	t.Setenv("RICE_CHUNK_UNIT", "lines")
	t.Setenv("RICE_CHUNK_LOG_LEVEL", "debug")
	t.Setenv("RICE_CHUNK_EXPAND", "true")
	t.Setenv("RICE_CHUNK_WATCH_DELAY", "2s")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Chunk.Budget != 40 {
		t.Errorf("Chunk.Budget = %d, want 40", cfg.Chunk.Budget)
	}

	if cfg.Chunk.Unit != "lines" {
		t.Errorf("Chunk.Unit = %s, want lines", cfg.Chunk.Unit)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}

	if !cfg.Index.Expand {
		t.Error("Index.Expand = false, want true")
	}

	if cfg.Index.WatchDelay != 2*time.Second {
		t.Errorf("Index.WatchDelay = %v, want 2s", cfg.Index.WatchDelay)
	}

	// untouched defaults survive
	if cfg.Chunk.MaxDepth != chunk.DefaultMaxDepth {
		t.Errorf("Chunk.MaxDepth = %d, want %d", cfg.Chunk.MaxDepth, chunk.DefaultMaxDepth)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
chunk:
  budget: 2000
  overlap: 200
  unit: nws
  style: signature
  count_ancestors: true
index:
  workers: 8
  template: coderagbench-repoeval
  repo: acme/tools
  watch_delay: 250ms
output:
  format: sqlite
  path: out/chunks.db
log:
  level: warn
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Chunk.Budget != 2000 || cfg.Chunk.Overlap != 200 {
		t.Errorf("Chunk = %+v, want budget 2000 overlap 200", cfg.Chunk)
	}

	if cfg.Chunk.Unit != "nws" {
		t.Errorf("Chunk.Unit = %s, want nws", cfg.Chunk.Unit)
	}

	if cfg.Index.Workers != 8 {
		t.Errorf("Index.Workers = %d, want 8", cfg.Index.Workers)
	}

	if cfg.Index.WatchDelay != 250*time.Millisecond {
		t.Errorf("Index.WatchDelay = %v, want 250ms", cfg.Index.WatchDelay)
	}

	if cfg.Output.Format != "sqlite" || cfg.Output.Path != "out/chunks.db" {
		t.Errorf("Output = %+v, want sqlite at out/chunks.db", cfg.Output)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("chunk:\n  budget: 100\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RICE_CHUNK_BUDGET", "300")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Chunk.Budget != 300 {
		t.Errorf("Chunk.Budget = %d, want 300", cfg.Chunk.Budget)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() with missing file: want error")
	}

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("chunk:\n  budget: -1\n  unit: words\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() with invalid values: want error")
	}
	for _, want := range []string{"budget must be positive", "invalid unit: words"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Load() error = %v, want it to mention %q", err, want)
		}
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "zero budget",
			modify: func(c *Config) {
				c.Chunk.Budget = 0
			},
			wantErr: true,
		},
		{
			name: "negative overlap",
			modify: func(c *Config) {
				c.Chunk.Overlap = -1
			},
			wantErr: true,
		},
		{
			name: "negative watch delay",
			modify: func(c *Config) {
				c.Index.WatchDelay = -time.Second
			},
			wantErr: true,
		},
		{
			name: "invalid unit",
			modify: func(c *Config) {
				c.Chunk.Unit = "words"
			},
			wantErr: true,
		},
		{
			name: "unit is case-insensitive",
			modify: func(c *Config) {
				c.Chunk.Unit = "LINES"
			},
			wantErr: false,
		},
		{
			name: "invalid style",
			modify: func(c *Config) {
				c.Chunk.Style = "fancy"
			},
			wantErr: true,
		},
		{
			name: "encoding with lines unit",
			modify: func(c *Config) {
				c.Chunk.Unit = "lines"
				c.Chunk.Encoding = "cl100k_base"
			},
			wantErr: true,
		},
		{
			name: "zero workers",
			modify: func(c *Config) {
				c.Index.Workers = 0
			},
			wantErr: true,
		},
		{
			name: "invalid template",
			modify: func(c *Config) {
				c.Index.Template = "xml"
			},
			wantErr: true,
		},
		{
			name: "invalid output format",
			modify: func(c *Config) {
				c.Output.Format = "parquet"
			},
			wantErr: true,
		},
		{
			name: "sqlite to stdout",
			modify: func(c *Config) {
				c.Output.Format = "sqlite"
			},
			wantErr: true,
		},
		{
			name: "prune without incremental",
			modify: func(c *Config) {
				c.Index.Prune = true
			},
			wantErr: true,
		},
		{
			name: "incremental without state",
			modify: func(c *Config) {
				c.Index.Incremental = true
			},
			wantErr: true,
		},
		{
			name: "incremental with state file",
			modify: func(c *Config) {
				c.Index.Incremental = true
				c.Index.StateFile = ".rice-chunk/state.json"
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "invalid"
			},
			wantErr: true,
		},
		{
			name: "invalid log format",
			modify: func(c *Config) {
				c.Log.Format = "xml"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Chunk.Budget = 0
	cfg.Index.Workers = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	if n := strings.Count(err.Error(), "\n  - "); n != 3 {
		t.Errorf("Validate() reported %d problems, want 3: %v", n, err)
	}
}

func TestChunkerConfig(t *testing.T) {
	cfg := Default()
	cfg.Chunk.Budget = 64
	cfg.Chunk.Unit = "Lines"
	cfg.Chunk.Style = "signature"
	cfg.Index.Template = "coderagbench-swebench-lite"
	cfg.Index.InstanceID = "acme__tools-7"
	cfg.Index.FallbackPlaintext = true

	cc, err := cfg.ChunkerConfig()
	if err != nil {
		t.Fatalf("ChunkerConfig() error = %v", err)
	}

	if cc.Options.Budget != 64 || cc.Options.Unit != chunk.UnitLines || cc.Options.Style != chunk.StyleSignature {
		t.Errorf("Options = %+v", cc.Options)
	}
	if cc.Options.Metric != nil {
		t.Error("Options.Metric set without an encoding")
	}
	if cc.Template != index.TemplateSWEBenchLite {
		t.Errorf("Template = %s, want %s", cc.Template, index.TemplateSWEBenchLite)
	}
	if cc.Repo.InstanceID != "acme__tools-7" || !cc.FallbackPlaintext {
		t.Errorf("ChunkerConfig = %+v", cc)
	}
}

func TestPipelineAndOutput(t *testing.T) {
	cfg := Default()
	cfg.Index.Workers = 2
	cfg.Index.Incremental = true
	cfg.Index.FailFast = true
	cfg.Output.Format = "JSON"
	cfg.Output.Path = "chunks.json"
	cfg.Output.CodeWindows = true

	pc := cfg.PipelineConfig()
	if pc.Workers != 2 || !pc.SkipUnchanged || !pc.FailFast {
		t.Errorf("PipelineConfig() = %+v", pc)
	}

	out := cfg.OutputOptions()
	want := store.Options{Format: store.FormatJSON, Path: "chunks.json", CodeWindows: true}
	if out != want {
		t.Errorf("OutputOptions() = %+v, want %+v", out, want)
	}
}

func TestRegistry(t *testing.T) {
	cfg := Default()
	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	if _, err := reg.Lookup("python"); err != nil {
		t.Errorf("built-in python profile missing: %v", err)
	}

	cfg.Index.ProfilesDir = filepath.Join(t.TempDir(), "missing")
	if _, err := cfg.Registry(); err == nil {
		t.Error("Registry() with missing profiles dir: want error")
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{}

	cfg.Log.Level = "debug"
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true for debug level")
	}

	cfg.Log.Level = "info"
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false for info level")
	}
}
