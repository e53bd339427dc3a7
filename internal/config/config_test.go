package config_test

// Coverage Notes:
// - Uses t.Setenv, so these tests must not call t.Parallel.
// - EnsureDirs is exercised against a real temp directory.

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avern/wikiscribe/internal/config"
)

// clearEnv blanks every variable Load reads so ambient state cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvOpenAIAPIKey, config.EnvWikiBaseURL, config.EnvWikiAPIToken,
		config.EnvWikiBasePath, config.EnvWikiLocale, config.EnvWorkDir,
		config.EnvPort, config.EnvLanguage, config.EnvMaxParallel,
		config.EnvConsolidation, config.EnvLogLevel,
	} {
		t.Setenv(key, "")
	}
}

// ---------------------------------------------------------------------------
// TestLoad
// ---------------------------------------------------------------------------

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.Language != "en" {
		t.Errorf("Language = %q, want %q", cfg.Language, "en")
	}
	if cfg.MaxParallel != 4 {
		t.Errorf("MaxParallel = %d, want 4", cfg.MaxParallel)
	}
	if cfg.Consolidation != config.ConsolidateLLM {
		t.Errorf("Consolidation = %q, want %q", cfg.Consolidation, config.ConsolidateLLM)
	}
	if cfg.WikiBasePath != "transcripts" {
		t.Errorf("WikiBasePath = %q, want %q", cfg.WikiBasePath, "transcripts")
	}
	if cfg.WikiLocale != "en" {
		t.Errorf("WikiLocale = %q, want %q", cfg.WikiLocale, "en")
	}
	if cfg.CallDelay != 2*time.Second {
		t.Errorf("CallDelay = %v, want 2s", cfg.CallDelay)
	}
	if cfg.Dirs.Videos != filepath.Join("work", "videos") {
		t.Errorf("Dirs.Videos = %q, want %q", cfg.Dirs.Videos, filepath.Join("work", "videos"))
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvWorkDir, "/data/scribe")
	t.Setenv(config.EnvPort, "8080")
	t.Setenv(config.EnvLanguage, "fr")
	t.Setenv(config.EnvMaxParallel, "8")
	t.Setenv(config.EnvConsolidation, "concat")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Language != "fr" {
		t.Errorf("Language = %q, want %q", cfg.Language, "fr")
	}
	if cfg.MaxParallel != 8 {
		t.Errorf("MaxParallel = %d, want 8", cfg.MaxParallel)
	}
	if cfg.Consolidation != config.ConsolidateConcat {
		t.Errorf("Consolidation = %q, want %q", cfg.Consolidation, config.ConsolidateConcat)
	}
	if cfg.Dirs.TempChunks != filepath.Join("/data/scribe", "temp_chunks") {
		t.Errorf("Dirs.TempChunks = %q", cfg.Dirs.TempChunks)
	}
}

func TestLoadParallelClamping(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"below minimum", "0", 1},
		{"negative", "-3", 1},
		{"above ceiling", "50", 10},
		{"in range", "6", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(config.EnvMaxParallel, tt.value)

			cfg, err := config.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.MaxParallel != tt.want {
				t.Errorf("MaxParallel = %d, want %d", cfg.MaxParallel, tt.want)
			}
		})
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric port", config.EnvPort, "http"},
		{"non-numeric parallel", config.EnvMaxParallel, "many"},
		{"unknown consolidation mode", config.EnvConsolidation, "merge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := config.Load(); err == nil {
				t.Errorf("Load() error = nil, want error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestEnsureDirs
// ---------------------------------------------------------------------------

func TestEnsureDirsCreatesLayout(t *testing.T) {
	root := t.TempDir()
	dirs := config.DeriveDirs(root)

	if err := dirs.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}

	for _, dir := range []string{
		dirs.Videos, dirs.Audios, dirs.Transcripts, dirs.Transcripted,
		dirs.Errors, dirs.Markdown, dirs.TempChunks,
	} {
		fi, err := os.Stat(dir)
		if err != nil {
			t.Errorf("missing directory %s: %v", dir, err)
			continue
		}
		if !fi.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestEnsureDirsIdempotent(t *testing.T) {
	dirs := config.DeriveDirs(t.TempDir())

	if err := dirs.EnsureDirs(); err != nil {
		t.Fatalf("first EnsureDirs() error = %v", err)
	}
	if err := dirs.EnsureDirs(); err != nil {
		t.Fatalf("second EnsureDirs() error = %v", err)
	}
}

// ---------------------------------------------------------------------------
// TestRequire
// ---------------------------------------------------------------------------

func TestRequireOpenAI(t *testing.T) {
	var cfg config.Config
	if err := cfg.RequireOpenAI(); err == nil {
		t.Error("RequireOpenAI() = nil with empty key, want error")
	}

	cfg.OpenAIAPIKey = "sk-test"
	if err := cfg.RequireOpenAI(); err != nil {
		t.Errorf("RequireOpenAI() error = %v, want nil", err)
	}
}

func TestRequireWiki(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		token   string
		wantErr bool
	}{
		{"both missing", "", "", true},
		{"token missing", "https://wiki.local", "", true},
		{"url missing", "", "tok", true},
		{"both present", "https://wiki.local", "tok", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Config{WikiBaseURL: tt.url, WikiAPIToken: tt.token}
			err := cfg.RequireWiki()
			if (err != nil) != tt.wantErr {
				t.Errorf("RequireWiki() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
