package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	settings, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.AppName != "verve" {
		t.Errorf("Expected the default app name, got %q", settings.AppName)
	}
}

func TestLoadBaseFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, BaseConfigFile, `
app_name = "payments"
debug = true
allowed_hosts = ["payments.example.com"]

[logging]
level = "debug"
`)

	settings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.AppName != "payments" {
		t.Errorf("Expected app name from file, got %q", settings.AppName)
	}
	if !settings.Debug {
		t.Error("Expected debug from file")
	}
	if len(settings.AllowedHosts) != 1 || settings.AllowedHosts[0] != "payments.example.com" {
		t.Errorf("Expected allowed hosts from file, got %v", settings.AllowedHosts)
	}
	if settings.Logging.Level != "debug" {
		t.Errorf("Expected logging level from file, got %q", settings.Logging.Level)
	}
	// Fields the file does not mention keep their defaults.
	if settings.Timezone != "UTC" {
		t.Errorf("Expected the default timezone, got %q", settings.Timezone)
	}
}

func TestLoadEnvironmentOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, BaseConfigFile, `
app_name = "payments"
version = "1.0.0"
`)
	writeConfigFile(t, dir, "verve.staging.toml", `
version = "1.0.0-rc1"
debug = true
`)
	t.Setenv(EnvAppEnv, "staging")

	settings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Version != "1.0.0-rc1" {
		t.Errorf("Expected the overlay version, got %q", settings.Version)
	}
	if settings.AppName != "payments" {
		t.Errorf("Expected the base app name to survive the overlay, got %q", settings.AppName)
	}
	if !settings.Debug {
		t.Error("Expected debug from the overlay")
	}
}

func TestLoadMissingOverlayIsAnError(t *testing.T) {
	t.Setenv(EnvAppEnv, "production")
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Expected an error for a selected but missing overlay")
	}
}

func TestLoadMalformedFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, BaseConfigFile, `app_name = [not toml`)
	if _, err := Load(dir); err == nil {
		t.Error("Expected a parse error")
	}
}

func TestBuildLoggerNeverReturnsNil(t *testing.T) {
	settings := DefaultSettings()
	if settings.BuildLogger() == nil {
		t.Error("Expected a logger")
	}

	settings.Logging.Level = "not-a-level"
	if settings.BuildLogger() == nil {
		t.Error("Expected a logger even with an invalid level")
	}
}
