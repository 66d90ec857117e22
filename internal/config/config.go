package config

import (
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/sonargate/internal/diagnostics"
	"github.com/davidbz/sonargate/internal/provider/perplexity"
)

// Config represents the server configuration.
type Config struct {
	Server      ServerConfig
	CORS        CORSConfig
	Perplexity  perplexity.Config
	Diagnostics DiagnosticsConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"60"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"false"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// DiagnosticsConfig controls the diagnostic trail.
type DiagnosticsConfig struct {
	Debug     bool   `env:"DIAGNOSTICS_DEBUG"     envDefault:"false"`
	LogPath   string `env:"DIAGNOSTICS_LOG_PATH"`
	Home      string `env:"HOME"`
	RedisAddr string `env:"DIAGNOSTICS_REDIS_ADDR"`
	RedisKey  string `env:"DIAGNOSTICS_REDIS_KEY" envDefault:"sonargate:diagnostics"`
}

// ResolveLogPath returns the explicit log path or the platform default.
func (d DiagnosticsConfig) ResolveLogPath() string {
	if d.LogPath != "" {
		return d.LogPath
	}
	return diagnostics.DefaultLogPath(d.Home, runtime.GOOS)
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*perplexity.Config
	*DiagnosticsConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Perplexity,
		&cfg.Diagnostics,
	}
}
