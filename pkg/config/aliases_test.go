package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	aliases := &ModelAliases{
		Aliases: map[string]string{
			"tiny":  "phi3:mini",
			"haiku": "claude-3-5-haiku-latest",
		},
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "resolve known alias", input: "tiny", expected: "phi3:mini"},
		{name: "resolve another alias", input: "haiku", expected: "claude-3-5-haiku-latest"},
		{name: "unknown alias returns input unchanged", input: "qwen2.5:7b", expected: "qwen2.5:7b"},
		{name: "canonical model returns unchanged", input: "phi3:mini", expected: "phi3:mini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := aliases.Resolve(tt.input); got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolve_NilAliases(t *testing.T) {
	var aliases *ModelAliases
	if got := aliases.Resolve("tiny"); got != "tiny" {
		t.Errorf("Resolve on nil should return input, got %q", got)
	}
	if aliases.IsAlias("tiny") {
		t.Error("IsAlias on nil should be false")
	}
}

func TestValidateModel(t *testing.T) {
	aliases := DefaultAliases()

	if err := aliases.ValidateModel("anthropic", "claude-3-5-haiku-latest"); err != nil {
		t.Errorf("expected valid model, got %v", err)
	}
	if err := aliases.ValidateModel("anthropic", "gpt-4o"); err == nil {
		t.Error("expected error for model from another provider")
	}
	if err := aliases.ValidateModel("ollama", "anything:latest"); err != nil {
		t.Errorf("local adapters accept any model, got %v", err)
	}
}

func TestResolveBackends(t *testing.T) {
	cfg := &RoutingConfig{Backends: []BackendConfig{
		{Name: "a", Adapter: "ollama", Model: "tiny"},
		{Name: "b", Adapter: "anthropic", Model: "haiku"},
		{Name: "c", Adapter: "openai", Model: "gpt-1"},
	}}

	errs := DefaultAliases().ResolveBackends(cfg)
	if cfg.Backends[0].Model != "phi3:mini" || cfg.Backends[1].Model != "claude-3-5-haiku-latest" {
		t.Fatalf("aliases not resolved: %+v", cfg.Backends)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 validation error, got %v", errs)
	}
}

func TestLoadAliasesFromDir(t *testing.T) {
	dir := t.TempDir()

	aliases, err := LoadAliasesFromDir(dir)
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if !aliases.IsAlias("tiny") {
		t.Fatal("expected default aliases when models.yaml is missing")
	}

	data := []byte("aliases:\n  fast: qwen2.5:1.5b\n")
	if err := os.WriteFile(filepath.Join(dir, "models.yaml"), data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	aliases, err = LoadAliasesFromDir(dir)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if aliases.Resolve("fast") != "qwen2.5:1.5b" || aliases.IsAlias("tiny") {
		t.Fatalf("unexpected aliases: %+v", aliases.Aliases)
	}
	if aliases.Providers == nil {
		t.Fatal("providers map should be initialized")
	}
	if got := aliases.ListProviders(); len(got) != 0 {
		t.Fatalf("expected no providers, got %v", got)
	}
}

func TestLoadAliasesInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(path, []byte("aliases: [unterminated"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadAliases(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestListProviders(t *testing.T) {
	got := DefaultAliases().ListProviders()
	want := []string{"anthropic", "deepseek", "google", "openai"}
	if len(got) != len(want) {
		t.Fatalf("ListProviders() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListProviders() = %v, want %v", got, want)
		}
	}
}
