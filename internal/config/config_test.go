package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "gsk-test")
	for _, key := range []string{"LLM_PROVIDER", "EMBEDDING_PROVIDER", "FETCH_MODE", "MAX_PAGES", "BATCH_SIZE", "CORS_ALLOWED_ORIGINS", "DATABASE_URL", "GMAIL_CREDENTIALS_FILE", "GMAIL_SENDER", "AUTH_REQUIRED"} {
		unsetIfSet(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.MaxPages != 20 || cfg.BatchSize != 5 || cfg.TaskMaxPages != 15 {
		t.Fatalf("unexpected page limits: max=%d batch=%d task=%d", cfg.MaxPages, cfg.BatchSize, cfg.TaskMaxPages)
	}
	if cfg.MinScoreThreshold != 7 || cfg.ConfidenceThreshold != 8 {
		t.Fatalf("unexpected thresholds: min=%v confidence=%v", cfg.MinScoreThreshold, cfg.ConfidenceThreshold)
	}
	if cfg.LLMModel != "openai/gpt-oss-20b" || cfg.LLMBaseURL != "https://api.groq.com/openai/v1" {
		t.Fatalf("unexpected llm defaults: %s %s", cfg.LLMModel, cfg.LLMBaseURL)
	}
	if cfg.FetchMode != "browser" || cfg.FetchTimeout != 30*time.Second {
		t.Fatalf("unexpected fetch defaults: %s %v", cfg.FetchMode, cfg.FetchTimeout)
	}
	if cfg.EmbeddingProvider != "lexical" {
		t.Fatalf("unexpected embedding provider: %s", cfg.EmbeddingProvider)
	}
	if cfg.DatabaseURL != "file:sitescout.db" {
		t.Fatalf("unexpected database url: %s", cfg.DatabaseURL)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("unexpected allowed origins: %v", cfg.AllowedOrigins)
	}
	if cfg.EmailEnabled() {
		t.Fatal("email should be disabled without gmail credentials")
	}
	if cfg.ListenAddress() != ":8080" {
		t.Fatalf("unexpected listen address: %s", cfg.ListenAddress())
	}
}

func TestLoadRequiresProviderKey(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when LLM_API_KEY is missing")
	}

	t.Setenv("LLM_PROVIDER", "openrouter")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	if _, err := Load(); err != nil {
		t.Fatalf("expected openrouter provider to load: %v", err)
	}
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_API_KEY", "gsk-test")

	t.Setenv("FETCH_MODE", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown FETCH_MODE")
	}

	t.Setenv("FETCH_MODE", "http")
	t.Setenv("EMBEDDING_PROVIDER", "genai")
	t.Setenv("GENAI_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for genai embeddings without a key")
	}
}

func TestLoadRequiresGmailPair(t *testing.T) {
	t.Setenv("LLM_API_KEY", "gsk-test")
	t.Setenv("GMAIL_CREDENTIALS_FILE", "/etc/sitescout/gmail.json")
	t.Setenv("GMAIL_SENDER", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when only the credentials file is set")
	}

	t.Setenv("GMAIL_SENDER", "bot@example.com")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.EmailEnabled() {
		t.Fatal("expected email to be enabled")
	}
}

func TestLoadScoreThresholds(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_API_KEY", "gsk-test")
	t.Setenv("FETCH_MODE", "http")
	t.Setenv("EMBEDDING_PROVIDER", "lexical")

	t.Setenv("MIN_SCORE_THRESHOLD", "0")
	t.Setenv("CONFIDENCE_THRESHOLD", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MinScoreThreshold != 0 || cfg.ConfidenceThreshold != 0 {
		t.Fatalf("expected explicit zero thresholds to be kept, got min=%v confidence=%v", cfg.MinScoreThreshold, cfg.ConfidenceThreshold)
	}

	for _, raw := range []string{"-1", "11"} {
		t.Setenv("MIN_SCORE_THRESHOLD", raw)
		if _, err := Load(); err == nil {
			t.Fatalf("expected MIN_SCORE_THRESHOLD=%s to be rejected", raw)
		}
	}
	t.Setenv("MIN_SCORE_THRESHOLD", "7")
	t.Setenv("CONFIDENCE_THRESHOLD", "12.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected CONFIDENCE_THRESHOLD above 10 to be rejected")
	}
}

func TestLoadRequiresGoogleClientIDWhenAuthRequired(t *testing.T) {
	t.Setenv("LLM_API_KEY", "gsk-test")
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("GOOGLE_CLIENT_ID", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when GOOGLE_CLIENT_ID is missing")
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	for _, key := range []string{"BATCH_SIZE", "LLM_PROVIDER", "LLM_API_KEY"} {
		unsetIfSet(t, key)
	}
	path := filepath.Join(t.TempDir(), "sitescout.yaml")
	contents := "llm_api_key: from-file\nmax_pages: 12\nbatch_size: 3\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("MAX_PAGES", "9")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load config file: %v", err)
	}
	if cfg.LLMAPIKey != "from-file" || cfg.BatchSize != 3 {
		t.Fatalf("expected file values, got key=%q batch=%d", cfg.LLMAPIKey, cfg.BatchSize)
	}
	if cfg.MaxPages != 9 {
		t.Fatalf("expected environment to win over file, got %d", cfg.MaxPages)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func unsetIfSet(t *testing.T, key string) {
	t.Helper()
	if value, ok := os.LookupEnv(key); ok {
		t.Setenv(key, value)
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}
