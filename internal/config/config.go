package config

import (
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port             int    `envconfig:"PORT" default:"8080"`
	DatabaseURL      string `envconfig:"DATABASE_URL" default:"sqlite://./data/plantrace.db"`
	JWTSecret        string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	AssetDir         string `envconfig:"ASSET_DIR" default:"./data/assets"`
	AllowedOrigins   string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	SaveRequiresAuth bool   `envconfig:"SAVE_REQUIRES_AUTH" default:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins splits AllowedOrigins on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// OriginPatterns strips the scheme from each origin, the form the
// websocket accept options expect.
func (c *Config) OriginPatterns() []string {
	origins := c.Origins()
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		out = append(out, o)
	}
	return out
}

// Level maps LOG_LEVEL to a slog level. Unknown values mean info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Driver reports which store backend DatabaseURL selects: "pgx" for
// postgres URLs, "sqlite" otherwise.
func (c *Config) Driver() string {
	if strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return "pgx"
	}
	return "sqlite"
}

// SQLitePath returns the database file for the sqlite backend.
func (c *Config) SQLitePath() string {
	return strings.TrimPrefix(c.DatabaseURL, "sqlite://")
}
