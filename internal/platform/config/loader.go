package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "vpntrack-server-go/internal/platform/errors"
)

const defaultPath = "config.yaml"

// Loader reads the yaml configuration file and applies environment
// overrides on top of the defaults.
type Loader struct {
	useDotEnv bool
	path      string
}

func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file location (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load resolves configuration from defaults, the yaml file (if present)
// and environment variables, in that order.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// A missing .env file is fine; the process environment wins anyway.
		_ = godotenv.Load()
	}

	path := l.path
	if path == "" {
		path = os.Getenv("VPNTRACK_CONFIG")
	}
	if path == "" {
		path = defaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(
				platformerrors.KindConfig, "load", "parse "+path, err)
		}
	case os.IsNotExist(err):
		// Run on defaults plus environment.
	default:
		return nil, platformerrors.Wrap(
			platformerrors.KindConfig, "load", "read "+path, err)
	}

	applyEnv(cfg)

	if cfg.Redis.Addr == "" {
		return nil, platformerrors.New(
			platformerrors.KindConfig, "load", "redis address required")
	}

	return &Result{Config: cfg, Path: path}, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}
