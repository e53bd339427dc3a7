// Package config collects all runtime configuration into an explicit struct
// passed to each component's constructor. Values come from environment
// variables (a .env file is loaded by main before Load runs); directories
// are configuration values derived from one working root, never process-wide
// constants.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvWikiBaseURL   = "WIKI_BASE_URL"
	EnvWikiAPIToken  = "WIKI_API_TOKEN"
	EnvWikiBasePath  = "WIKI_BASE_PATH"
	EnvWikiLocale    = "WIKI_LOCALE"
	EnvWorkDir       = "WORK_DIR"
	EnvPort          = "PORT"
	EnvLanguage      = "TRANSCRIBE_LANGUAGE"
	EnvMaxParallel   = "MAX_PARALLEL"
	EnvConsolidation = "CONSOLIDATION_MODE"
	EnvLogLevel      = "LOG_LEVEL"
)

// Service limits for the transcription API.
const (
	// MaxChunkBytes is the upload size limit of the transcription service.
	MaxChunkBytes = 25 * 1024 * 1024

	// MaxChunkSeconds is the duration cap per uploaded chunk.
	MaxChunkSeconds = 1400
)

// Defaults.
const (
	defaultWorkDir     = "work"
	defaultPort        = 3000
	defaultLanguage    = "en"
	defaultMaxParallel = 4
	maxParallelCeiling = 10
	defaultWikiPath    = "transcripts"
	defaultWikiLocale  = "en"
	defaultCallDelay   = 2 * time.Second
)

// ConsolidationMode selects how multi-chunk generation output is merged.
type ConsolidationMode string

const (
	// ConsolidateLLM merges chunk outputs with a further generation call.
	ConsolidateLLM ConsolidationMode = "llm"

	// ConsolidateConcat joins chunk outputs with separators.
	ConsolidateConcat ConsolidationMode = "concat"
)

// Dirs is the working directory layout. Every stage reads from and writes to
// these paths; nothing else on disk is touched.
type Dirs struct {
	Videos       string // input video files
	Audios       string // extracted audio awaiting transcription
	Transcripts  string // transcript markdown output
	Transcripted string // audio files successfully transcribed
	Errors       string // quarantined inputs with diagnostic logs
	Markdown     string // generated summary markdown
	TempChunks   string // scratch area for audio chunks
}

// Config holds all runtime configuration.
type Config struct {
	OpenAIAPIKey string

	WikiBaseURL  string
	WikiAPIToken string
	WikiBasePath string
	WikiLocale   string

	WorkDir string
	Dirs    Dirs

	Port          int
	Language      string // fixed transcription locale (ISO 639-1)
	MaxParallel   int    // bound on concurrent ffmpeg/API fan-out
	Consolidation ConsolidationMode
	CallDelay     time.Duration // pause between sequential generation/publish calls
	LogLevel      string
}

// Load reads configuration from the environment and derives the directory
// layout. It does not create directories; see EnsureDirs.
func Load() (Config, error) {
	cfg := Config{
		OpenAIAPIKey:  os.Getenv(EnvOpenAIAPIKey),
		WikiBaseURL:   os.Getenv(EnvWikiBaseURL),
		WikiAPIToken:  os.Getenv(EnvWikiAPIToken),
		WikiBasePath:  envOr(EnvWikiBasePath, defaultWikiPath),
		WikiLocale:    envOr(EnvWikiLocale, defaultWikiLocale),
		WorkDir:       envOr(EnvWorkDir, defaultWorkDir),
		Language:      envOr(EnvLanguage, defaultLanguage),
		Consolidation: ConsolidationMode(envOr(EnvConsolidation, string(ConsolidateLLM))),
		CallDelay:     defaultCallDelay,
		LogLevel:      envOr(EnvLogLevel, "info"),
	}

	port, err := envInt(EnvPort, defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.Port = port

	parallel, err := envInt(EnvMaxParallel, defaultMaxParallel)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxParallel = clampParallel(parallel)

	if cfg.Consolidation != ConsolidateLLM && cfg.Consolidation != ConsolidateConcat {
		return Config{}, fmt.Errorf("%s must be %q or %q, got %q",
			EnvConsolidation, ConsolidateLLM, ConsolidateConcat, cfg.Consolidation)
	}

	cfg.Dirs = DeriveDirs(cfg.WorkDir)
	return cfg, nil
}

// DeriveDirs computes the stage directory layout under root.
func DeriveDirs(root string) Dirs {
	return Dirs{
		Videos:       filepath.Join(root, "videos"),
		Audios:       filepath.Join(root, "audios"),
		Transcripts:  filepath.Join(root, "transcription"),
		Transcripted: filepath.Join(root, "transcripted"),
		Errors:       filepath.Join(root, "error"),
		Markdown:     filepath.Join(root, "markdown"),
		TempChunks:   filepath.Join(root, "temp_chunks"),
	}
}

// EnsureDirs creates every stage directory that does not yet exist.
func (d Dirs) EnsureDirs() error {
	for _, dir := range []string{
		d.Videos, d.Audios, d.Transcripts, d.Transcripted,
		d.Errors, d.Markdown, d.TempChunks,
	} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	}
	return nil
}

// RequireOpenAI fails if the transcription/generation API key is absent.
func (c Config) RequireOpenAI() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%s environment variable not set", EnvOpenAIAPIKey)
	}
	return nil
}

// RequireWiki fails if the wiki endpoint or token is absent.
func (c Config) RequireWiki() error {
	if c.WikiBaseURL == "" {
		return fmt.Errorf("%s environment variable not set", EnvWikiBaseURL)
	}
	if c.WikiAPIToken == "" {
		return fmt.Errorf("%s environment variable not set", EnvWikiAPIToken)
	}
	return nil
}

// clampParallel constrains fan-out to the valid range [1, 10].
func clampParallel(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxParallelCeiling {
		return maxParallelCeiling
	}
	return n
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}
