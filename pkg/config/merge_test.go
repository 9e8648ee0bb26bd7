package config

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/verve-web/verve/pkg/common"
	"github.com/verve-web/verve/pkg/errs"
	"github.com/verve-web/verve/pkg/middleware"
	"github.com/verve-web/verve/pkg/routing"
	"go.uber.org/zap"
)

func TestMergeExplicitWinsOverDefault(t *testing.T) {
	settings := DefaultSettings()
	settings.Title = "Default Title"
	settings.Version = "9.9.9"
	settings.Logger = zap.NewNop()

	cfg, err := Merge(Options{Title: "Explicit Title"}, settings)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if cfg.Title != "Explicit Title" {
		t.Errorf("Expected the explicit title, got %q", cfg.Title)
	}
	if cfg.Version != "9.9.9" {
		t.Errorf("Expected the default version to fill the gap, got %q", cfg.Version)
	}
}

func TestMergeNilSettingsMeansFrameworkDefaults(t *testing.T) {
	cfg, err := Merge(Options{Logger: zap.NewNop()}, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if cfg.AppName != "verve" {
		t.Errorf("Expected the framework default app name, got %q", cfg.AppName)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Expected UTC, got %q", cfg.Timezone)
	}
	if !cfg.RedirectSlashes {
		t.Error("Expected redirect slashes by default")
	}
}

func TestMergeBoolsAreOrCombined(t *testing.T) {
	settings := DefaultSettings()
	settings.Debug = true
	settings.Logger = zap.NewNop()

	cfg, err := Merge(Options{}, settings)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !cfg.Debug {
		t.Error("Expected debug from settings to survive a zero option")
	}
}

func TestMergeCollaboratorPointers(t *testing.T) {
	settings := DefaultSettings()
	settings.CORS = &middleware.CORSConfig{AllowOrigins: []string{"https://default.example"}}
	settings.Logger = zap.NewNop()

	explicit := &middleware.CORSConfig{AllowOrigins: []string{"https://explicit.example"}}
	cfg, err := Merge(Options{CORS: explicit}, settings)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if cfg.CORS != explicit {
		t.Error("Expected the explicit CORS config to win")
	}

	cfg, err = Merge(Options{}, settings)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if cfg.CORS != settings.CORS {
		t.Error("Expected the settings CORS config as fallback")
	}
}

func TestMergeSlicesAreCopied(t *testing.T) {
	hosts := []string{"example.com"}
	cfg, err := Merge(Options{AllowedHosts: hosts, Logger: zap.NewNop()}, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	hosts[0] = "mutated.example"
	if cfg.AllowedHosts[0] != "example.com" {
		t.Error("Expected the snapshot not to alias caller-owned storage")
	}
}

func TestMergeRejectsAllowOriginsWithCORS(t *testing.T) {
	_, err := Merge(Options{
		AllowOrigins: []string{"https://a.example"},
		CORS:         &middleware.CORSConfig{AllowOrigins: []string{"https://b.example"}},
		Logger:       zap.NewNop(),
	}, nil)
	if err == nil {
		t.Fatal("Expected an error for AllowOrigins combined with CORS")
	}
	var ice *errs.ImproperlyConfiguredError
	if !errors.As(err, &ice) {
		t.Errorf("Expected ImproperlyConfiguredError, got %T", err)
	}
}

func TestMergeRejectsLifespanWithHooks(t *testing.T) {
	_, err := Merge(Options{
		Lifespan: func(ctx context.Context) (func(context.Context) error, error) {
			return nil, nil
		},
		OnStartup: []routing.Hook{func(ctx context.Context) error { return nil }},
		Logger:    zap.NewNop(),
	}, nil)
	if err == nil {
		t.Fatal("Expected an error for Lifespan combined with OnStartup")
	}
	var ice *errs.ImproperlyConfiguredError
	if !errors.As(err, &ice) {
		t.Errorf("Expected ImproperlyConfiguredError, got %T", err)
	}
}

func TestMergeErrorHandlersAreCopied(t *testing.T) {
	kind := errs.KindOf(&errs.ValidationError{})
	handlers := errs.Handlers{kind: func(w http.ResponseWriter, r *http.Request, err error) {}}

	cfg, err := Merge(Options{ErrorHandlers: handlers, Logger: zap.NewNop()}, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	delete(handlers, kind)
	if _, ok := cfg.ErrorHandlers[kind]; !ok {
		t.Error("Expected the snapshot not to alias the caller's handler map")
	}
}

func TestMergeMiddlewareFallsBackToSettings(t *testing.T) {
	settings := DefaultSettings()
	settings.Middleware = []common.Middleware{func(next http.Handler) http.Handler { return next }}
	settings.Logger = zap.NewNop()

	cfg, err := Merge(Options{}, settings)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(cfg.Middleware) != 1 {
		t.Errorf("Expected the settings middleware list, got %d entries", len(cfg.Middleware))
	}
}
