package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Cleanup modes.
const (
	ModeFast   = "fast"
	ModeNeural = "neural"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth. Empty disables bearer-token checks.
	APIKey string `yaml:"api_key"`

	// LLM endpoint (OpenAI-compatible, Ollama by default)
	LLMBaseURL string `yaml:"llm_base_url"`
	LLMModel   string `yaml:"llm_model"`
	LLMAPIKey  string `yaml:"llm_api_key"`
	LLMEnabled bool   `yaml:"llm_enabled"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// Extraction
	TOCPages             int  `yaml:"toc_pages"`
	TOCChars             int  `yaml:"toc_chars"`
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
	StripRunningHeaders  bool `yaml:"strip_running_headers"`

	// Structure recovery
	TOCMissLimit      int `yaml:"toc_miss_limit"`
	TOCMinBodyHeading int `yaml:"toc_min_body_heading"`
	BoundaryFallback  int `yaml:"boundary_fallback"`

	// Cleanup
	CleanupFragmentChars int    `yaml:"cleanup_fragment_chars"`
	DefaultMode          string `yaml:"default_mode"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port: "8090",

		LLMBaseURL: "http://localhost:11434/v1",
		LLMModel:   "qwen2.5:7b",
		LLMAPIKey:  "ollama",
		LLMEnabled: true,

		WorkerCount:  4,
		MaxQueueSize: 100,

		MaxUploadBytes: 104857600, // 100MB

		JobTTL: 1 * time.Hour,

		TOCPages:             20,
		TOCChars:             50000,
		PDFFallbackPdftotext: true,
		StripRunningHeaders:  true,

		TOCMissLimit:      50,
		TOCMinBodyHeading: 10,
		BoundaryFallback:  3000,

		CleanupFragmentChars: 6000,
		DefaultMode:          ModeFast,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if set), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("DOCSTRUCT_API_KEY", cfg.APIKey)

	cfg.LLMBaseURL = envOr("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMModel = envOr("LLM_MODEL", cfg.LLMModel)
	cfg.LLMAPIKey = envOr("LLM_API_KEY", cfg.LLMAPIKey)
	cfg.LLMEnabled = envBool("LLM_ENABLED", cfg.LLMEnabled)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)

	cfg.TOCPages = envInt("TOC_PAGES", cfg.TOCPages)
	cfg.TOCChars = envInt("TOC_CHARS", cfg.TOCChars)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)
	cfg.StripRunningHeaders = envBool("STRIP_RUNNING_HEADERS", cfg.StripRunningHeaders)

	cfg.TOCMissLimit = envInt("TOC_MISS_LIMIT", cfg.TOCMissLimit)
	cfg.TOCMinBodyHeading = envInt("TOC_MIN_BODY_HEADING", cfg.TOCMinBodyHeading)
	cfg.BoundaryFallback = envInt("BOUNDARY_FALLBACK", cfg.BoundaryFallback)

	cfg.CleanupFragmentChars = envInt("CLEANUP_FRAGMENT_CHARS", cfg.CleanupFragmentChars)
	cfg.DefaultMode = envOr("DEFAULT_MODE", cfg.DefaultMode)

	cfg.fillDefaults()
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// fillDefaults replaces non-positive numeric settings with defaults.
func (c *Config) fillDefaults() {
	def := Defaults()
	if c.WorkerCount <= 0 {
		c.WorkerCount = def.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = def.MaxQueueSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = def.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = def.JobTTL
	}
	if c.TOCPages <= 0 {
		c.TOCPages = def.TOCPages
	}
	if c.TOCChars <= 0 {
		c.TOCChars = def.TOCChars
	}
	if c.TOCMissLimit <= 0 {
		c.TOCMissLimit = def.TOCMissLimit
	}
	if c.TOCMinBodyHeading <= 0 {
		c.TOCMinBodyHeading = def.TOCMinBodyHeading
	}
	if c.BoundaryFallback <= 0 {
		c.BoundaryFallback = def.BoundaryFallback
	}
	if c.CleanupFragmentChars <= 0 {
		c.CleanupFragmentChars = def.CleanupFragmentChars
	}
	if c.DefaultMode == "" {
		c.DefaultMode = def.DefaultMode
	}
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.DefaultMode != ModeFast && c.DefaultMode != ModeNeural {
		return fmt.Errorf("DEFAULT_MODE must be %q or %q, got %q", ModeFast, ModeNeural, c.DefaultMode)
	}
	if c.LLMEnabled && (c.LLMBaseURL == "" || c.LLMModel == "") {
		return fmt.Errorf("LLM_BASE_URL and LLM_MODEL are required when LLM_ENABLED is set")
	}
	if c.DefaultMode == ModeNeural && !c.LLMEnabled {
		return fmt.Errorf("DEFAULT_MODE=neural requires LLM_ENABLED")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
