package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_LoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "riftguard.yaml")

	yamlContent := `
server:
  log_level: debug
  fail_mode: closed

policies:
  - name: budget-limit
    condition: "ctx.cost > 10.0"
    effect: deny
    priority: 100
    message: "Over budget"

budget:
  default_tier: enterprise
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	cfg := loader.Get()
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("Server.LogLevel = %q, want \"debug\"", cfg.Server.LogLevel)
	}
	if cfg.Server.FailMode != "closed" {
		t.Errorf("Server.FailMode = %q, want \"closed\"", cfg.Server.FailMode)
	}
	if len(cfg.Policies) != 1 {
		t.Fatalf("Policies length = %d, want 1", len(cfg.Policies))
	}
	if cfg.Policies[0].Name != "budget-limit" {
		t.Errorf("Policies[0].Name = %q, want \"budget-limit\"", cfg.Policies[0].Name)
	}
	if cfg.Policies[0].Effect != "deny" {
		t.Errorf("Policies[0].Effect = %q, want \"deny\"", cfg.Policies[0].Effect)
	}
	if cfg.Budget.DefaultTier != "enterprise" {
		t.Errorf("Budget.DefaultTier = %q, want \"enterprise\"", cfg.Budget.DefaultTier)
	}
}

func TestLoader_DefaultConfig(t *testing.T) {
	loader := NewLoader()
	cfg := loader.Get()

	if cfg.Server.FailMode != "closed" {
		t.Errorf("default Server.FailMode = %q, want \"closed\"", cfg.Server.FailMode)
	}
	if cfg.Budget.Tiers["default"].MaxTokens != 100_000 {
		t.Errorf("default budget tokens = %d, want 100000", cfg.Budget.Tiers["default"].MaxTokens)
	}
	if cfg.Bulkhead.Tiers["default"].MaxConcurrent != 10 {
		t.Errorf("default bulkhead concurrency = %d, want 10", cfg.Bulkhead.Tiers["default"].MaxConcurrent)
	}
}

func TestLoader_LoadNonExistentFile(t *testing.T) {
	loader := NewLoader()
	err := loader.Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Error("Load() with nonexistent file should return error")
	}
}

func TestLoader_LoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")

	if err := os.WriteFile(configPath, []byte(`{{{invalid yaml`), 0644); err != nil {
		t.Fatalf("failed to write bad config: %v", err)
	}

	loader := NewLoader()
	err := loader.Load(configPath)
	if err == nil {
		t.Error("Load() with invalid YAML should return error")
	}
}

func TestLoader_FilePath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "riftguard.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  log_level: debug\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	if loader.FilePath() != "" {
		t.Errorf("FilePath() before Load() = %q, want empty", loader.FilePath())
	}

	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loader.FilePath() != configPath {
		t.Errorf("FilePath() = %q, want %q", loader.FilePath(), configPath)
	}
}

func TestLoader_Reload(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "riftguard.yaml")

	if err := os.WriteFile(configPath, []byte("server:\n  log_level: info\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loader.Get().Server.LogLevel != "info" {
		t.Errorf("initial log_level = %q, want info", loader.Get().Server.LogLevel)
	}

	if err := os.WriteFile(configPath, []byte("server:\n  log_level: debug\n"), 0644); err != nil {
		t.Fatalf("failed to overwrite config: %v", err)
	}

	if err := loader.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if loader.Get().Server.LogLevel != "debug" {
		t.Errorf("reloaded log_level = %q, want debug", loader.Get().Server.LogLevel)
	}
}

func TestLoader_ReloadWithoutLoad(t *testing.T) {
	loader := NewLoader()
	err := loader.Reload()
	if err == nil {
		t.Error("Reload() without prior Load() should return error")
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("TEST_RG_PORT", "9999")
	os.Setenv("TEST_RG_SECRET", "my-secret")
	defer os.Unsetenv("TEST_RG_PORT")
	defer os.Unsetenv("TEST_RG_SECRET")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple substitution", "port: ${TEST_RG_PORT}", "port: 9999"},
		{"multiple substitutions", "port: ${TEST_RG_PORT}\nsecret: ${TEST_RG_SECRET}", "port: 9999\nsecret: my-secret"},
		{"undefined variable", "value: ${UNDEFINED_TEST_VAR_XYZ}", "value: "},
		{"default value syntax", "value: ${UNDEFINED_TEST_VAR_XYZ:-default-val}", "value: default-val"},
		{"default value not used when env var set", "port: ${TEST_RG_PORT:-1234}", "port: 9999"},
		{"no env vars", "port: 8080", "port: 8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "riftguard.yaml")

	if err := GenerateDefault(configPath); err != nil {
		t.Fatalf("GenerateDefault() error: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read generated config: %v", err)
	}
	if len(data) == 0 {
		t.Error("generated config is empty")
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("generated config is not valid YAML: %v", err)
	}
	if loader.Get().Server.FailMode != "closed" {
		t.Errorf("generated config fail_mode = %q, want closed", loader.Get().Server.FailMode)
	}
}
