package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "DEEPSEEK_API_KEY", "OLLAMA_HOST"} {
		t.Setenv(k, "")
	}
}

func TestConfigUsesEnvAPIKeys(t *testing.T) {
	t.Setenv(DirEnv, t.TempDir())
	clearKeys(t)
	t.Setenv("ANTHROPIC_API_KEY", "env-ant")
	t.Setenv("DEEPSEEK_API_KEY", "env-deepseek")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "env-ant" || cfg.DeepSeekAPIKey != "env-deepseek" {
		t.Fatalf("expected env API keys to be used")
	}
	if !cfg.HasAdapter("anthropic") || cfg.HasAdapter("openai") || !cfg.HasAdapter("ollama") {
		t.Fatalf("unexpected HasAdapter results")
	}
	if cfg.RoutingConfig == nil || len(cfg.RoutingConfig.Backends) != 3 {
		t.Fatalf("expected default routing config")
	}
}

func TestConfigLoadsDotEnvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)
	clearKeys(t)
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("GOOGLE_API_KEY")
	t.Setenv("GOOGLE_API_KEY", "from-env")

	data := []byte("OPENAI_API_KEY=from-dotenv\nGOOGLE_API_KEY=from-dotenv\n")
	if err := os.WriteFile(filepath.Join(dir, ".env"), data, 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("OPENAI_API_KEY") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OpenAIAPIKey != "from-dotenv" {
		t.Fatalf("expected .env key, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.GoogleAPIKey != "from-env" {
		t.Fatalf("expected environment to win over .env, got %q", cfg.GoogleAPIKey)
	}
}

func TestConfigLoadsRoutingFromDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)
	clearKeys(t)

	data := []byte("mode: llm-preferred\nbackends:\n  - adapter: mock\n    model: mock-1\n")
	if err := os.WriteFile(filepath.Join(dir, "routing.yaml"), data, 0o600); err != nil {
		t.Fatalf("write routing: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RoutingConfig.Mode != "llm_preferred" {
		t.Fatalf("mode = %q", cfg.RoutingConfig.Mode)
	}
	if cfg.RoutingPath != filepath.Join(dir, "routing.yaml") {
		t.Fatalf("routing path = %q", cfg.RoutingPath)
	}
}
