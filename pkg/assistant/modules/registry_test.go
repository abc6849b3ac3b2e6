package modules

import (
	"log/slog"
	"os"
	"reflect"
	"strings"
	"testing"
)

type stubModule struct {
	id    string
	tools []Tool
}

func (m *stubModule) Info() Info {
	return Info{
		ID:   m.id,
		Icon: "📦",
		Name: map[string]string{"ru": "Русское имя " + m.id, "kz": "Қазақша аты " + m.id},
	}
}

func (m *stubModule) Instructions(lang string) string { return "инструкции " + m.id }
func (m *stubModule) Tools() []Tool                   { return m.tools }
func (m *stubModule) Keywords() []string              { return nil }

func newTestRegistry(t *testing.T, ids ...string) *Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	r := NewRegistry(logger)
	for _, id := range ids {
		if err := r.Register(&stubModule{id: id}); err != nil {
			t.Fatalf("registering %s: %v", id, err)
		}
	}
	return r
}

func TestRegistryOrder(t *testing.T) {
	r := newTestRegistry(t, "finance", "task", DefaultModuleID)

	if got := r.IDs(); !reflect.DeepEqual(got, []string{"finance", "task", DefaultModuleID}) {
		t.Errorf("ids = %v", got)
	}

	// Re-registering replaces in place and keeps the position.
	replacement := &stubModule{id: "finance", tools: []Tool{{Name: "get_balance"}}}
	if err := r.Register(replacement); err != nil {
		t.Fatalf("re-registering: %v", err)
	}
	if got := r.IDs(); !reflect.DeepEqual(got, []string{"finance", "task", DefaultModuleID}) {
		t.Errorf("ids after replace = %v", got)
	}
	if m, _ := r.Get("finance"); len(m.Tools()) != 1 {
		t.Error("replacement not applied")
	}
	if err := r.Register(&stubModule{id: ""}); err == nil {
		t.Error("empty id must fail")
	}

	if _, ok := r.Get("task"); !ok {
		t.Error("task not found")
	}
	if _, ok := r.Get("ghost"); ok {
		t.Error("ghost found")
	}
}

func TestRegistryEnabled(t *testing.T) {
	r := newTestRegistry(t, "finance", "task", DefaultModuleID)

	enabled := r.Enabled(map[string]bool{"task": true})
	ids := make([]string, len(enabled))
	for i, m := range enabled {
		ids[i] = m.Info().ID
	}
	if !reflect.DeepEqual(ids, []string{"finance", DefaultModuleID}) {
		t.Errorf("enabled = %v", ids)
	}

	// The default module survives even an explicit disable.
	enabled = r.Enabled(map[string]bool{DefaultModuleID: true, "finance": true, "task": true})
	if len(enabled) != 1 || enabled[0].Info().ID != DefaultModuleID {
		t.Errorf("default module must stay enabled, got %d modules", len(enabled))
	}
}

func TestBuildPrompt(t *testing.T) {
	r := newTestRegistry(t, "finance", "task")

	prompt := r.BuildPrompt("ru", map[string]bool{"task": true})
	if !strings.Contains(prompt, "(intent: finance)") {
		t.Errorf("prompt missing finance header:\n%s", prompt)
	}
	if !strings.Contains(prompt, "инструкции finance") {
		t.Errorf("prompt missing instructions:\n%s", prompt)
	}
	if strings.Contains(prompt, "task") {
		t.Errorf("disabled module leaked into the prompt:\n%s", prompt)
	}
}

func TestDisplayName(t *testing.T) {
	info := Info{ID: "finance", Name: map[string]string{"ru": "Финансы", "kz": "Қаржы"}}
	if got := info.DisplayName("kz"); got != "Қаржы" {
		t.Errorf("kz name = %q", got)
	}
	if got := info.DisplayName("ru"); got != "Финансы" {
		t.Errorf("ru name = %q", got)
	}
	// Unknown language falls back to Russian, then to the id.
	if got := info.DisplayName("en"); got != "Финансы" {
		t.Errorf("fallback name = %q", got)
	}
	bare := Info{ID: "finance"}
	if got := bare.DisplayName("ru"); got != "finance" {
		t.Errorf("bare name = %q", got)
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"amount":   float64(5000),
		"text":     "обед",
		"asString": "42.5",
		"bad":      []any{1},
	}

	if got := stringArg(args, "text"); got != "обед" {
		t.Errorf("stringArg = %q", got)
	}
	if got := stringArg(args, "missing"); got != "" {
		t.Errorf("missing stringArg = %q", got)
	}

	if got, err := floatArg(args, "amount"); err != nil || got != 5000 {
		t.Errorf("floatArg = %v, %v", got, err)
	}
	if got, err := floatArg(args, "asString"); err != nil || got != 42.5 {
		t.Errorf("string floatArg = %v, %v", got, err)
	}
	if _, err := floatArg(args, "missing"); err == nil {
		t.Error("missing floatArg must error")
	}
	if _, err := floatArg(args, "bad"); err == nil {
		t.Error("wrong-typed floatArg must error")
	}

	if got, err := intArg(args, "amount"); err != nil || got != 5000 {
		t.Errorf("intArg = %v, %v", got, err)
	}
}
