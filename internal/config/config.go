package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinTokenLength is the shortest accepted static access token.
const MinTokenLength = 8

// Config is the complete runtime configuration of the service.
type Config struct {
	Server struct {
		Host         string        `yaml:"host"`
		Port         string        `yaml:"port"`
		Prefork      bool          `yaml:"prefork"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Limits struct {
		MaxHTMLBytes   int `yaml:"max_html_bytes"`
		MaxPDFBytes    int `yaml:"max_pdf_bytes"`
		MaxUploadBytes int `yaml:"max_upload_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		PDFCacheEnabled bool          `yaml:"pdf_cache_enabled"`
		PDFCacheTTL     time.Duration `yaml:"pdf_cache_ttl"`
		RedisHost       string        `yaml:"redis_host"`
		RateLimitDB     int           `yaml:"redis_rate_db"`
		PDFCacheDB      int           `yaml:"redis_pdf_db"`
	} `yaml:"cache"`

	PDF PDFConfig `yaml:"pdf"`

	Auth struct {
		// AccessTokens is a comma separated list of static bearer tokens.
		AccessTokens        string         `yaml:"access_tokens"`
		PostgresDSN         string         `yaml:"postgres_dsn"`
		Postgres            PostgresConfig `yaml:"postgres"`
		TokenReloadInterval time.Duration  `yaml:"token_reload_interval"`
		DefaultRateLimit    int            `yaml:"default_rate_limit"`
	} `yaml:"auth"`

	RateLimiter struct {
		Interval               time.Duration `yaml:"interval"`
		EnableTokenRateLimiter bool          `yaml:"enable_token_rate_limiter"`
		EnableUserLimiter      bool          `yaml:"enable_user_limiter"`
		UserLimit              int           `yaml:"user_limit"`
	} `yaml:"rate_limiter"`
}

// PDFConfig groups the rendering engine and document pipeline settings.
type PDFConfig struct {
	TimeoutSecs      int           `yaml:"timeout_secs"`
	ChromePath       string        `yaml:"chrome_path"`
	ChromeNoSandbox  bool          `yaml:"chrome_no_sandbox"`
	ChromePoolSize   int           `yaml:"chrome_pool_size"`
	UserDataDir      string        `yaml:"user_data_dir"`
	HeaderImageMaxPx int           `yaml:"header_image_max_px"`
	ImageConcurrency int           `yaml:"image_concurrency"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
}

// PostgresConfig describes the token database field by field. Host may also hold a complete
// postgres:// URL.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Default returns the built-in configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.Server.Port = ":3000"
	cfg.Server.ReadTimeout = 60 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second

	cfg.Limits.MaxHTMLBytes = 5 << 20
	cfg.Limits.MaxPDFBytes = 50 << 20
	cfg.Limits.MaxUploadBytes = 50 << 20

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 7

	cfg.Cache.PDFCacheTTL = 10 * time.Minute
	cfg.Cache.PDFCacheDB = 1

	cfg.PDF.TimeoutSecs = 30
	cfg.PDF.ChromeNoSandbox = true
	cfg.PDF.ChromePoolSize = 2
	cfg.PDF.HeaderImageMaxPx = 600
	cfg.PDF.ImageConcurrency = 4
	cfg.PDF.FetchTimeout = 10 * time.Second

	cfg.Auth.TokenReloadInterval = time.Minute
	cfg.Auth.DefaultRateLimit = 60

	cfg.RateLimiter.Interval = time.Minute
	cfg.RateLimiter.EnableTokenRateLimiter = true
	return cfg
}

// Load reads the file named by CONFIG_PATH, or ./config.yaml when present, and falls back to
// defaults plus environment overrides otherwise.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path == "" {
		cfg := Default()
		applyEnv(&cfg)
		mustValidate(cfg)
		return cfg
	}
	return LoadFrom(path)
}

// LoadFrom reads the YAML file at path on top of the defaults. It panics when the file cannot
// be read or holds invalid values.
func LoadFrom(path string) Config {
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		panic(fmt.Sprintf("config: parse %s: %v", path, err))
	}
	applyEnv(&cfg)
	mustValidate(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if !strings.HasPrefix(v, ":") {
			v = ":" + v
		}
		cfg.Server.Port = v
	}
	if v := os.Getenv("ACCESS_TOKEN"); v != "" {
		cfg.Auth.AccessTokens = v
	}
	if v := os.Getenv("CHROME_BIN"); v != "" && cfg.PDF.ChromePath == "" {
		cfg.PDF.ChromePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Cache.RedisHost = v
	}
}

func mustValidate(cfg Config) {
	if err := cfg.Validate(); err != nil {
		panic("config: " + err.Error())
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.PDF.TimeoutSecs <= 0:
		return errors.New("pdf.timeout_secs must be positive")
	case c.PDF.ChromePoolSize < 0:
		return errors.New("pdf.chrome_pool_size must not be negative")
	case c.PDF.HeaderImageMaxPx <= 0:
		return errors.New("pdf.header_image_max_px must be positive")
	case c.PDF.ImageConcurrency <= 0:
		return errors.New("pdf.image_concurrency must be positive")
	case c.PDF.FetchTimeout <= 0:
		return errors.New("pdf.fetch_timeout must be positive")
	case c.Limits.MaxHTMLBytes < 0, c.Limits.MaxPDFBytes < 0, c.Limits.MaxUploadBytes < 0:
		return errors.New("limits must not be negative")
	case c.Cache.PDFCacheEnabled && c.Cache.PDFCacheTTL <= 0:
		return errors.New("cache.pdf_cache_ttl must be positive when the cache is enabled")
	case c.RateLimiter.Interval <= 0:
		return errors.New("rate_limiter.interval must be positive")
	case c.RateLimiter.UserLimit < 0:
		return errors.New("rate_limiter.user_limit must not be negative")
	case c.TokenStoreConfigured() && c.Auth.TokenReloadInterval <= 0:
		return errors.New("auth.token_reload_interval must be positive")
	case c.Auth.DefaultRateLimit < 0:
		return errors.New("auth.default_rate_limit must not be negative")
	}
	for _, tok := range c.StaticTokens() {
		if len(tok) < MinTokenLength {
			return fmt.Errorf("access token %q is shorter than %d characters", tok, MinTokenLength)
		}
	}
	return nil
}

// StaticTokens splits the configured access token list, dropping empty entries.
func (c Config) StaticTokens() []string {
	var out []string
	for _, tok := range strings.Split(c.Auth.AccessTokens, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// AuthEnabled reports whether any token source is configured.
func (c Config) AuthEnabled() bool {
	return c.Auth.AccessTokens != "" || c.TokenStoreConfigured()
}

// TokenStoreConfigured reports whether tokens are also loaded from Postgres.
func (c Config) TokenStoreConfigured() bool {
	return c.Auth.PostgresDSN != "" || c.Auth.Postgres.Host != ""
}

// RenderTimeout is the per-render deadline.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.PDF.TimeoutSecs) * time.Second
}
