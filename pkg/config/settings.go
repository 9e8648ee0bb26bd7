// Package config provides the Verve settings object, the explicit
// constructor options, and the merger that resolves them into the immutable
// configuration record the application is built from.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/verve-web/verve/pkg/common"
	"github.com/verve-web/verve/pkg/errs"
	"github.com/verve-web/verve/pkg/middleware"
	"github.com/verve-web/verve/pkg/routing"
	"github.com/verve-web/verve/pkg/scheduler"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// BaseConfigFile is the settings file name looked up by Load.
	BaseConfigFile = "verve.toml"

	// OverlayConfigPattern is the file name pattern for environment-specific
	// overlays.
	OverlayConfigPattern = "verve.%s.toml"

	// EnvAppEnv names the environment variable selecting the overlay.
	EnvAppEnv = "VERVE_ENV"
)

// LoggingSettings controls the default logger built for the application.
type LoggingSettings struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `toml:"level"`

	// Development switches to zap's development config.
	Development bool `toml:"development"`
}

// Settings is the defaults record consumed by the merger. Every field an
// application can be constructed with has a populated default here; explicit
// Options take precedence field by field. Settings is read-only from the
// application's perspective.
type Settings struct {
	Debug           bool     `toml:"debug"`
	AppName         string   `toml:"app_name"`
	Title           string   `toml:"title"`
	Version         string   `toml:"version"`
	Summary         string   `toml:"summary"`
	Description     string   `toml:"description"`
	SecretKey       string   `toml:"secret_key"`
	RootPath        string   `toml:"root_path"`
	RedirectSlashes bool     `toml:"redirect_slashes"`
	AllowedHosts    []string `toml:"allowed_hosts"`
	AllowOrigins    []string `toml:"allow_origins"`
	Timezone        string   `toml:"timezone"`
	EnableScheduler bool     `toml:"enable_scheduler"`
	EnableTraceID   bool     `toml:"enable_trace_id"`

	Logging LoggingSettings `toml:"logging"`

	// Collaborator defaults that cannot come from a file.
	CORS          *middleware.CORSConfig      `toml:"-"`
	CSRF          *middleware.CSRFConfig      `toml:"-"`
	Session       *middleware.SessionConfig   `toml:"-"`
	RateLimit     *middleware.RateLimitConfig `toml:"-"`
	Metrics       *middleware.MetricsConfig   `toml:"-"`
	IP            *middleware.IPConfig        `toml:"-"`
	Scheduler     *scheduler.Config           `toml:"-"`
	Middleware    []common.Middleware         `toml:"-"`
	ErrorHandlers errs.Handlers               `toml:"-"`
	OnStartup     []routing.Hook              `toml:"-"`
	OnShutdown    []routing.Hook              `toml:"-"`
	Lifespan      routing.Lifespan            `toml:"-"`
	Logger        *zap.Logger                 `toml:"-"`
}

// DefaultSettings returns the framework defaults.
func DefaultSettings() *Settings {
	return &Settings{
		AppName:         "verve",
		Title:           "Verve",
		Version:         "0.1.0",
		RedirectSlashes: true,
		Timezone:        "UTC",
		Logging: LoggingSettings{
			Level: "info",
		},
	}
}

// Load reads settings from dir: framework defaults, overridden by
// verve.toml when present, overridden by verve.<env>.toml when VERVE_ENV is
// set. A missing base file leaves the defaults untouched; a missing overlay
// for a selected environment is an error.
func Load(dir string) (*Settings, error) {
	settings := DefaultSettings()

	base := filepath.Join(dir, BaseConfigFile)
	if err := decodeInto(base, settings); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if env := os.Getenv(EnvAppEnv); env != "" {
		overlay := filepath.Join(dir, fmt.Sprintf(OverlayConfigPattern, env))
		if err := decodeInto(overlay, settings); err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
	}
	return settings, nil
}

func decodeInto(path string, settings *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, settings); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// BuildLogger constructs the application logger from the logging settings,
// falling back to a no-op logger if construction fails.
func (s *Settings) BuildLogger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}

	cfg := zap.NewProductionConfig()
	if s.Logging.Development || s.Debug {
		cfg = zap.NewDevelopmentConfig()
	}
	if s.Logging.Level != "" {
		if level, err := zapcore.ParseLevel(s.Logging.Level); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(level)
		}
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
