/*
config.go - Runtime configuration

PURPOSE:
  Reads the server's settings from the environment. A .env file in the
  working directory is loaded first when present; real environment
  variables always win over it.

KEYS:
  APP_ADDR              listen address                 (":8080")
  APP_READ_TIMEOUT      http.Server read timeout       ("15s")
  APP_WRITE_TIMEOUT     http.Server write timeout      ("15s")
  APP_SHUTDOWN_TIMEOUT  graceful shutdown deadline     ("30s")
  DB_PATH               SQLite file, or ":memory:"     ("waybills.db")
  LOG_FORMAT            "text" or "json"               ("text")
  LOG_LEVEL             debug, info, warn, error       ("info")
  REVIEW_MODE           "driver" or "central"          ("driver")
  CORS_ORIGINS          comma separated origins
  AUDIT_INTERVAL        background audit period, 0 disables ("0")
  SEASON_SUMMER_DAY / SEASON_SUMMER_MONTH   (1 / 4)
  SEASON_WINTER_DAY / SEASON_WINTER_MONTH   (1 / 11)

SEE ALSO:
  - logger.go: Builds the slog logger from LOG_FORMAT / LOG_LEVEL
  - cmd/server/main.go: The only caller of Load
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

// Config holds runtime configuration for the server.
type Config struct {
	AppAddr            string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout     time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout    time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"30s"`

	DBPath string `envconfig:"DB_PATH" default:"waybills.db"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	ReviewMode  string   `envconfig:"REVIEW_MODE" default:"driver"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`

	AuditInterval time.Duration `envconfig:"AUDIT_INTERVAL" default:"0"`

	SeasonSummerDay   int `envconfig:"SEASON_SUMMER_DAY" default:"1"`
	SeasonSummerMonth int `envconfig:"SEASON_SUMMER_MONTH" default:"4"`
	SeasonWinterDay   int `envconfig:"SEASON_WINTER_DAY" default:"1"`
	SeasonWinterMonth int `envconfig:"SEASON_WINTER_MONTH" default:"11"`
}

// Load reads .env (if any) and then the environment.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are skipped.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Mode(); err != nil {
		return nil, err
	}
	if err := cfg.Season().Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Mode returns the configured review mode.
func (c *Config) Mode() (waybill.ReviewMode, error) {
	return waybill.ParseReviewMode(c.ReviewMode)
}

// Season returns the recurring season defaults.
func (c *Config) Season() generic.RecurringSeason {
	return generic.RecurringSeason{
		SummerDay:   c.SeasonSummerDay,
		SummerMonth: time.Month(c.SeasonSummerMonth),
		WinterDay:   c.SeasonWinterDay,
		WinterMonth: time.Month(c.SeasonWinterMonth),
	}
}
