package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/config"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/llm"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/modules"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/router"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/trace"
)

// fixedModel answers every call with the same text. The first call is the
// classification, so the canned reply must be a valid classifier payload
// naming the default module; module runs then echo it as plain text.
type fixedModel struct{ content string }

func (m *fixedModel) CompleteWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Response, error) {
	return &llm.Response{Content: m.content, FinishReason: "stop"}, nil
}

type chatModule struct{}

func (m *chatModule) Info() modules.Info {
	return modules.Info{ID: modules.DefaultModuleID, Icon: "💬", Name: map[string]string{"ru": "Ассистент"}}
}
func (m *chatModule) Instructions(lang string) string { return "общие вопросы" }
func (m *chatModule) Tools() []modules.Tool           { return nil }
func (m *chatModule) Keywords() []string              { return nil }

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	traces, err := trace.NewSQLiteStore(st.DB(), logger)
	if err != nil {
		t.Fatalf("opening trace store: %v", err)
	}

	registry := modules.NewRegistry(logger)
	if err := registry.Register(&chatModule{}); err != nil {
		t.Fatal(err)
	}

	model := &fixedModel{content: `{"intents": [{"intent": "assistant", "confidence": 1}]}`}
	rt := router.New(model, registry, st, traces, logger)

	cfg := &config.Config{
		Tenants: []config.TenantConfig{
			{ID: "salon", Name: "Салон", Token: "tok-salon", Language: "ru"},
		},
	}
	srv := New(cfg, rt, registry, st, traces, logger)
	ts := httptest.NewServer(srv.httpSrv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ts *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	ts := testServer(t)
	resp := get(t, ts, "/healthz", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestAuth(t *testing.T) {
	ts := testServer(t)

	resp := get(t, ts, "/api/v1/modules", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d", resp.StatusCode)
	}

	resp = get(t, ts, "/api/v1/modules", "wrong")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", resp.StatusCode)
	}

	resp = get(t, ts, "/api/v1/modules", "tok-salon")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("good token status = %d", resp.StatusCode)
	}
	var body struct {
		Modules []struct {
			ID      string `json:"id"`
			Enabled bool   `json:"enabled"`
		} `json:"modules"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(body.Modules) != 1 || body.Modules[0].ID != "assistant" || !body.Modules[0].Enabled {
		t.Errorf("modules = %+v", body.Modules)
	}
}

func TestChatStream(t *testing.T) {
	ts := testServer(t)

	body := strings.NewReader(`{"message": "привет", "user_id": "u1"}`)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/chat", body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer tok-salon")
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	var events []router.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev router.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading stream: %v", err)
	}

	if len(events) == 0 {
		t.Fatal("no events")
	}
	last := events[len(events)-1]
	if last.Type != router.EventResult {
		t.Errorf("last event = %+v", last)
	}
	if last.Content == "" {
		t.Error("empty result content")
	}
}

func TestChatValidation(t *testing.T) {
	ts := testServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/chat", strings.NewReader(`{"message": "  "}`))
	req.Header.Set("Authorization", "Bearer tok-salon")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank message status = %d", resp.StatusCode)
	}
}

func TestTraceNotFound(t *testing.T) {
	ts := testServer(t)
	resp := get(t, ts, "/api/v1/traces/nonexistent", "tok-salon")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
