// server/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         int    `validate:"min=1,max=65535"`
	DatabaseURL  string `validate:"omitempty,url"`
	Password     string
	PasswordHash string
	LogLevel     string `validate:"oneof=trace debug info warn error"`
	LogFormat    string `validate:"oneof=console json"`
	ExportDir    string `validate:"required"`

	TitleDelay   time.Duration `validate:"gt=0"`
	ContentDelay time.Duration `validate:"gt=0"`
	SummaryDelay time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
}

func Default() Config {
	return Config{
		Port:         8080,
		Password:     "dev",
		LogLevel:     "info",
		LogFormat:    "console",
		ExportDir:    "./export",
		TitleDelay:   1000 * time.Millisecond,
		ContentDelay: 1500 * time.Millisecond,
		SummaryDelay: 1000 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
}

// Load reads .env files (if present) and then LUMI_* environment variables
// over the defaults.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, which is normally os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	if v, ok := lookup("LUMI_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LUMI_PORT: %w", err))
		} else {
			cfg.Port = port
		}
	}
	str("LUMI_DATABASE_URL", &cfg.DatabaseURL)
	str("LUMI_PASSWORD", &cfg.Password)
	str("LUMI_PASSWORD_HASH", &cfg.PasswordHash)
	str("LUMI_LOG_LEVEL", &cfg.LogLevel)
	str("LUMI_LOG_FORMAT", &cfg.LogFormat)
	str("LUMI_EXPORT_DIR", &cfg.ExportDir)
	dur("LUMI_TITLE_DELAY", &cfg.TitleDelay)
	dur("LUMI_CONTENT_DELAY", &cfg.ContentDelay)
	dur("LUMI_SUMMARY_DELAY", &cfg.SummaryDelay)
	dur("LUMI_WRITE_TIMEOUT", &cfg.WriteTimeout)

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// UsesDatabase reports whether a Postgres URL was configured; without one the
// server keeps notes in memory.
func (c Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}
