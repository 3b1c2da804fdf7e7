// Package config loads the layout translator configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"layout-translator/internal/document"
	"layout-translator/internal/logger"
)

// EnvPrefix is prepended to every variable name, e.g. LT_PROVIDER_URL
const EnvPrefix = "LT"

// Config is the full application configuration
type Config struct {
	Environment string `split_words:"true" default:"local"`
	LogLevel    string `split_words:"true" default:"info"`
	LogFile     string `split_words:"true" default:""`
	// JobTimeout bounds the translation phase of one document; 0 disables it
	JobTimeout time.Duration `split_words:"true" default:"0s"`

	Provider ProviderConfig
	Dispatch DispatchConfig
	Extract  ExtractConfig
	Detect   DetectConfig
	Redact   RedactConfig
	Fit      FitConfig
	Server   ServerConfig
}

// ProviderConfig selects and parameterizes the translation provider
type ProviderConfig struct {
	// Kind is "http" for a translation endpoint or "llm" for an OpenAI-compatible chat model
	Kind           string        `split_words:"true" default:"http"`
	URL            string        `split_words:"true" default:"http://localhost:8000/api/translate"`
	APIKey         string        `split_words:"true" default:""`
	Model          string        `split_words:"true" default:"gpt-4o-mini"`
	Timeout        time.Duration `split_words:"true" default:"30s"`
	MaxRetries     int           `split_words:"true" default:"3"`
	RetryBaseDelay time.Duration `split_words:"true" default:"500ms"`
	// NLLBCodes sends NLLB-200 codes (zho_Hans) instead of ISO codes
	NLLBCodes bool `split_words:"true" default:"false"`
}

// DispatchConfig controls how spans are sent to the provider
type DispatchConfig struct {
	// Mode is "individual" or "smart"
	Mode           string `split_words:"true" default:"individual"`
	Workers        int    `split_words:"true" default:"10"`
	ShortThreshold int    `split_words:"true" default:"30"`
	MaxGroupItems  int    `split_words:"true" default:"5"`
	MaxGroupChars  int    `split_words:"true" default:"900"`
	CachePath      string `split_words:"true" default:""`
}

// ExtractConfig controls row grouping
type ExtractConfig struct {
	RowTolerance float64 `split_words:"true" default:"0.1"`
}

// DetectConfig controls source language detection
type DetectConfig struct {
	SampleSize      int     `split_words:"true" default:"10"`
	Threshold       float64 `split_words:"true" default:"0.3"`
	DefaultLanguage string  `split_words:"true" default:"en"`
	Statistical     bool    `split_words:"true" default:"false"`
}

// RedactConfig controls glyph removal
type RedactConfig struct {
	MarginLeft   float64        `split_words:"true" default:"1"`
	MarginTop    float64        `split_words:"true" default:"1"`
	MarginRight  float64        `split_words:"true" default:"3"`
	MarginBottom float64        `split_words:"true" default:"1"`
	FillColor    document.Color `split_words:"true" default:"#ffffff"`
}

// FitConfig controls font and size selection
type FitConfig struct {
	MinFontSize   float64   `split_words:"true" default:"7"`
	MaxFontSize   float64   `split_words:"true" default:"18"`
	GapTight      float64   `split_words:"true" default:"15"`
	GapLoose      float64   `split_words:"true" default:"25"`
	HeightCap     float64   `split_words:"true" default:"60"`
	MaxWidthRatio float64   `split_words:"true" default:"0.8"`
	MaxWidth      float64   `split_words:"true" default:"500"`
	LineHeight    float64   `split_words:"true" default:"1.2"`
	Scales        []float64 `split_words:"true" default:"0.8,0.7,0.6,0.5"`
	LatinFonts    []string  `split_words:"true" default:"Helvetica,Times-Roman,Courier"`
	CJKFonts      []string  `split_words:"true" default:""`
	CJKFontPaths  []string  `split_words:"true" default:"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc,/usr/share/fonts/truetype/wqy/wqy-microhei.ttc,/usr/share/fonts/truetype/droid/DroidSansFallbackFull.ttf"`
}

// ServerConfig controls the HTTP job server
type ServerConfig struct {
	Addr        string `split_words:"true" default:":8080"`
	ResultsDir  string `split_words:"true" default:"results"`
	MaxUploadMB int64  `split_words:"true" default:"100"`
}

// Load reads an optional env file and then the process environment.
// A missing env file is not an error; values already set in the
// environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, document.NewErrorWithDetails(document.ErrConfig, "failed to load env file", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, document.NewError(document.ErrConfig, "failed to parse environment", err)
	}
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, document.NewError(document.ErrConfig, "configuration validation failed", err)
	}

	logger.Debug("configuration loaded",
		logger.String("provider", cfg.Provider.Kind),
		logger.String("mode", cfg.Dispatch.Mode),
		logger.Int("workers", cfg.Dispatch.Workers))
	return &cfg, nil
}

// Default returns the configuration with every default applied and no
// environment lookups.
func Default() *Config {
	var cfg Config
	// envconfig applies defaults for variables that are absent; use a prefix
	// nothing in the environment can match.
	if err := envconfig.Process("LT_DEFAULTS_ONLY", &cfg); err != nil {
		panic(fmt.Sprintf("config defaults are invalid: %v", err))
	}
	return &cfg
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case "http", "llm":
	default:
		return fmt.Errorf("%s_PROVIDER_KIND must be http or llm, got %q", EnvPrefix, c.Provider.Kind)
	}
	if strings.TrimSpace(c.Provider.URL) == "" && c.Provider.Kind == "http" {
		return fmt.Errorf("%s_PROVIDER_URL is required for the http provider", EnvPrefix)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("%s_PROVIDER_TIMEOUT must be > 0", EnvPrefix)
	}
	if c.JobTimeout < 0 {
		return fmt.Errorf("%s_JOB_TIMEOUT must be >= 0", EnvPrefix)
	}
	if c.Provider.MaxRetries < 1 {
		return fmt.Errorf("%s_PROVIDER_MAX_RETRIES must be >= 1", EnvPrefix)
	}
	switch c.Dispatch.Mode {
	case "individual", "smart":
	default:
		return fmt.Errorf("%s_DISPATCH_MODE must be individual or smart, got %q", EnvPrefix, c.Dispatch.Mode)
	}
	if c.Dispatch.Workers < 1 {
		return fmt.Errorf("%s_DISPATCH_WORKERS must be >= 1", EnvPrefix)
	}
	if c.Dispatch.MaxGroupItems < 1 || c.Dispatch.MaxGroupChars < 1 {
		return fmt.Errorf("%s_DISPATCH group limits must be >= 1", EnvPrefix)
	}
	if c.Extract.RowTolerance < 0 {
		return fmt.Errorf("%s_EXTRACT_ROW_TOLERANCE must be >= 0", EnvPrefix)
	}
	if c.Detect.Threshold <= 0 || c.Detect.Threshold > 1 {
		return fmt.Errorf("%s_DETECT_THRESHOLD must be in (0,1]", EnvPrefix)
	}
	if c.Fit.MinFontSize <= 0 || c.Fit.MinFontSize > c.Fit.MaxFontSize {
		return fmt.Errorf("%s_FIT font size clamp [%v,%v] is invalid", EnvPrefix, c.Fit.MinFontSize, c.Fit.MaxFontSize)
	}
	if c.Fit.GapTight > c.Fit.GapLoose {
		return fmt.Errorf("%s_FIT_GAP_TIGHT must not exceed %s_FIT_GAP_LOOSE", EnvPrefix, EnvPrefix)
	}
	for _, s := range c.Fit.Scales {
		if s <= 0 || s > 1 {
			return fmt.Errorf("%s_FIT_SCALES entries must be in (0,1], got %v", EnvPrefix, s)
		}
	}
	if len(c.Fit.LatinFonts) == 0 {
		return fmt.Errorf("%s_FIT_LATIN_FONTS must list at least one font", EnvPrefix)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// LoggerConfig maps the logging settings onto logger.Config
func (c *Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	if level, err := logger.ParseLevel(c.LogLevel); err == nil {
		lc.Level = level
	}
	lc.LogFilePath = c.LogFile
	lc.Pretty = strings.EqualFold(strings.TrimSpace(c.Environment), "local")
	return lc
}
