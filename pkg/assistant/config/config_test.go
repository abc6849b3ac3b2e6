package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_TOKEN", "secret123")
	os.Unsetenv("TEST_ABSENT")

	cases := []struct{ in, want string }{
		{"token: ${TEST_TOKEN}", "token: secret123"},
		{"token: ${TEST_ABSENT}", "token: "},
		{"token: ${TEST_ABSENT:-fallback}", "token: fallback"},
		{"token: ${TEST_TOKEN:-fallback}", "token: secret123"},
		{"no refs here", "no refs here"},
	}
	for _, c := range cases {
		if got := expandEnv(c.in); got != c.want {
			t.Errorf("expandEnv(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_TG_TOKEN", "123:abc")
	path := writeConfig(t, `
llm:
  model: gpt-4o-mini
  temperature: 0.3
tenants:
  - id: salon
    name: Салон красоты
    token: tok-salon
    language: kz
    disabled_modules: [birthday]
channels:
  telegram:
    enabled: true
    token: ${TEST_TG_TOKEN}
    default_tenant: salon
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}

	// Defaults survive a partial file.
	if cfg.Server.Listen != "127.0.0.1:8080" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Scheduler.TraceRetentionDays != 30 {
		t.Errorf("retention = %d", cfg.Scheduler.TraceRetentionDays)
	}
	if cfg.LLM.Temperature != 0.3 {
		t.Errorf("temperature = %v", cfg.LLM.Temperature)
	}
	if cfg.Channels.Telegram.Token != "123:abc" {
		t.Errorf("telegram token = %q", cfg.Channels.Telegram.Token)
	}

	tenant, ok := cfg.TenantByToken("tok-salon")
	if !ok {
		t.Fatal("tenant not found by token")
	}
	if tenant.ID != "salon" || tenant.Language != "kz" {
		t.Errorf("tenant = %+v", tenant)
	}
	if len(tenant.DisabledModules) != 1 || tenant.DisabledModules[0] != "birthday" {
		t.Errorf("disabled = %v", tenant.DisabledModules)
	}

	if _, ok := cfg.TenantByToken(""); ok {
		t.Error("empty token must not match")
	}
	if _, ok := cfg.TenantByID("salon"); !ok {
		t.Error("tenant not found by id")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	os.Unsetenv("TEST_DOTENV_KEY")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TEST_DOTENV_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  model: gpt-4o-mini\n  api_key: ${TEST_DOTENV_KEY}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TEST_DOTENV_KEY") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if cfg.LLM.APIKey != "from-dotenv" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: gpt-4o-mini
tenants:
  - id: salon
    token: a
  - id: salon
    token: b
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "duplicate tenant") {
		t.Errorf("duplicate tenants must fail, got %v", err)
	}

	path = writeConfig(t, "llm:\n  model: \"\"\n")
	if _, err := Load(path); err == nil {
		t.Error("empty model must fail")
	}
}
