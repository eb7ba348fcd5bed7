package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFilesDefaults(t *testing.T) {
	cfg, err := LoadFiles(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %q", cfg.Env)
	}
	if cfg.LLMAgentMaxSteps != 25 {
		t.Fatalf("expected agent max steps 25, got %d", cfg.LLMAgentMaxSteps)
	}
	if cfg.ObjectStoreType != "local" {
		t.Fatalf("expected local object store, got %q", cfg.ObjectStoreType)
	}
	if !cfg.IsDevLike() {
		t.Fatalf("expected dev-like config")
	}
}

func TestLoadFilesReadsDotenvAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	contents := "PORT=9090\nREPOSITORY_INGEST_API_URL=http://ingest.local/\nLOG_LEVEL=WARN\nOBJECT_STORE=S3\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("ENV", "prod")

	cfg, err := LoadFiles(path)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("expected env override port 7070, got %q", cfg.Port)
	}
	if cfg.RepositoryIngestURL != "http://ingest.local" {
		t.Fatalf("expected trimmed ingest url, got %q", cfg.RepositoryIngestURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log level warn, got %q", cfg.LogLevel)
	}
	if cfg.ObjectStoreType != "s3" {
		t.Fatalf("expected s3 object store, got %q", cfg.ObjectStoreType)
	}
	if cfg.Env != "production" || cfg.IsDevLike() {
		t.Fatalf("expected production env, got %q", cfg.Env)
	}
}

func TestLoadFilesAPIKeyFallback(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := LoadFiles()
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if cfg.LLMAPIKey != "sk-ant-test" {
		t.Fatalf("expected fallback api key, got %q", cfg.LLMAPIKey)
	}
}

func TestDebugForcesDebugLevel(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadFiles()
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.LogLevel)
	}
}
