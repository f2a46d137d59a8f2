//go:build !darwin

package config

import (
	"path/filepath"
	"testing"
)

func newTestBackend(t *testing.T) *fileBackend {
	t.Helper()
	b := &fileBackend{
		path: filepath.Join(t.TempDir(), "config.json"),
		data: make(map[string]any),
	}
	return b
}

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(newTestBackend(t))
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}

	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Server.TemplatesDir != "data/tables" {
		t.Errorf("Server.TemplatesDir = %q", cfg.Server.TemplatesDir)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
}

func TestBackendValuesOverrideDefaults(t *testing.T) {
	b := newTestBackend(t)
	if err := b.SetString("backend.base_url", "http://profile.internal:9000"); err != nil {
		t.Fatal(err)
	}
	if err := b.SetInt("server.port", 9000); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}
	if cfg.Backend.BaseURL != "http://profile.internal:9000" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	b := newTestBackend(t)
	if err := b.SetString("backend.base_url", "http://from-file:1"); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OFFICEWORK_BACKEND_BASE_URL", "http://from-env:2")
	t.Setenv("OFFICEWORK_LOG_LEVEL", "debug")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}
	if cfg.Backend.BaseURL != "http://from-env:2" {
		t.Errorf("Backend.BaseURL = %q, want env value", cfg.Backend.BaseURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestEnvBadIntegerKeepsDefault(t *testing.T) {
	t.Setenv("OFFICEWORK_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(newTestBackend(t))
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want default 8000", cfg.Server.Port)
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	if err := b.SetString("log.level", "debug"); err != nil {
		t.Fatal(err)
	}

	v, ok, err := b.GetString("log.level")
	if err != nil || !ok {
		t.Fatalf("GetString() = %v, %v, %v", v, ok, err)
	}
	if v != "debug" {
		t.Errorf("log.level = %q", v)
	}
}

func TestFileBackendGetIntFromFloat(t *testing.T) {
	b := newTestBackend(t)
	b.data["server.port"] = float64(8080)

	v, ok, err := b.GetInt("server.port")
	if err != nil || !ok {
		t.Fatalf("GetInt() = %v, %v, %v", v, ok, err)
	}
	if v != 8080 {
		t.Errorf("server.port = %d", v)
	}
}

func TestShowAllListsEveryKey(t *testing.T) {
	cfg := defaults()
	infos := ShowAll(cfg)
	if len(infos) != len(specs) {
		t.Fatalf("ShowAll() returned %d keys, want %d", len(infos), len(specs))
	}
	for _, ki := range infos {
		if ki.Key == "" || ki.EnvVar == "" {
			t.Errorf("incomplete key info: %+v", ki)
		}
	}
}
