package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PaperSize holds page dimensions in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PostgresConfig describes the token database. Host may also carry a full
// postgres:// URL, in which case the other fields are ignored.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Config is the full service configuration.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Auth struct {
		Enabled             bool           `yaml:"enabled"`
		StaticTokens        map[string]int `yaml:"static_tokens"`
		TokenReloadInterval time.Duration  `yaml:"token_reload_interval"`
		Postgres            PostgresConfig `yaml:"postgres"`
	} `yaml:"auth"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
		UserLimit         int           `yaml:"user_limit"`
	} `yaml:"rate_limiter"`

	Cache struct {
		Enabled     bool          `yaml:"enabled"`
		TTL         time.Duration `yaml:"ttl"`
		RedisHost   string        `yaml:"redis_host"`
		ResultDB    int           `yaml:"redis_result_db"`
		RateLimitDB int           `yaml:"redis_rate_db"`
	} `yaml:"cache"`

	Notebooks struct {
		Dir string `yaml:"dir"`
	} `yaml:"notebooks"`

	Conversion struct {
		BundleResources bool  `yaml:"bundle_resources"`
		MaxBodyBytes    int   `yaml:"max_body_bytes"`
		MaxOutputBytes  int64 `yaml:"max_output_bytes"`
	} `yaml:"conversion"`

	PDF struct {
		Paper           PaperSize `yaml:"paper"`
		Margin          float64   `yaml:"margin"`
		TimeoutSecs     int       `yaml:"timeout_secs"`
		ChromePath      string    `yaml:"chrome_path"`
		ChromeNoSandbox bool      `yaml:"chrome_no_sandbox"`
		ChromePoolSize  int       `yaml:"chrome_pool_size"`
		UserDataDir     string    `yaml:"user_data_dir"`
	} `yaml:"pdf"`
}

// Load reads the file named by CONFIG_PATH, or config.yaml when unset.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the configuration at path. Invalid or
// unreadable configuration is a startup error and panics.
func LoadFrom(path string) Config {
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("failed to read config %s: %v", path, err))
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse config %s: %v", path, err))
	}

	if v := os.Getenv("NOTEBOOK_DIR"); v != "" {
		cfg.Notebooks.Dir = v
	}
	if cfg.PDF.ChromePath == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.PDF.ChromePath = v
		}
	}

	ApplyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		panic(err.Error())
	}
	return cfg
}

// ApplyDefaults fills zero values with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8888"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Auth.TokenReloadInterval == 0 {
		cfg.Auth.TokenReloadInterval = time.Minute
	}
	if cfg.RateLimiter.Interval == 0 {
		cfg.RateLimiter.Interval = time.Minute
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 10 * time.Minute
	}
	if cfg.Conversion.MaxBodyBytes == 0 {
		cfg.Conversion.MaxBodyBytes = 16 * 1024 * 1024
	}
	if cfg.Conversion.MaxOutputBytes == 0 {
		cfg.Conversion.MaxOutputBytes = 64 * 1024 * 1024
	}
	if cfg.PDF.Paper.Width == 0 || cfg.PDF.Paper.Height == 0 {
		cfg.PDF.Paper = PaperSize{Width: 8.27, Height: 11.69}
	}
	if cfg.PDF.Margin == 0 {
		cfg.PDF.Margin = 0.4
	}
	if cfg.PDF.TimeoutSecs == 0 {
		cfg.PDF.TimeoutSecs = 30
	}
}

// Validate reports the first invalid setting.
func Validate(cfg Config) error {
	switch {
	case cfg.Notebooks.Dir == "":
		return fmt.Errorf("notebooks.dir must be set")
	case cfg.Auth.TokenReloadInterval <= 0:
		return fmt.Errorf("auth.token_reload_interval must be positive")
	case cfg.RateLimiter.Interval <= 0:
		return fmt.Errorf("rate_limiter.interval must be positive")
	case cfg.RateLimiter.UserLimit < 0:
		return fmt.Errorf("rate_limiter.user_limit must not be negative")
	case cfg.Cache.TTL < 0:
		return fmt.Errorf("cache.ttl must not be negative")
	case cfg.Conversion.MaxBodyBytes < 0 || cfg.Conversion.MaxOutputBytes < 0:
		return fmt.Errorf("conversion limits must not be negative")
	case cfg.PDF.TimeoutSecs < 0:
		return fmt.Errorf("pdf.timeout_secs must not be negative")
	case cfg.PDF.ChromePoolSize < 0:
		return fmt.Errorf("pdf.chrome_pool_size must not be negative")
	}
	return nil
}
