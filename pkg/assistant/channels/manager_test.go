package channels

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/llm"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/modules"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/router"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/trace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// cannedModel returns scripted responses in order. Implements llm.Completer.
type cannedModel struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (m *cannedModel) CompleteWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls >= len(m.responses) {
		return nil, fmt.Errorf("canned model exhausted after %d calls", m.calls)
	}
	resp := m.responses[m.calls]
	m.calls++
	return &llm.Response{Content: resp, FinishReason: "stop"}, nil
}

func (m *cannedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// echoModule is a tool-less capability for routing tests.
type echoModule struct{}

func (echoModule) Info() modules.Info {
	return modules.Info{ID: "echo", Icon: "📦", Name: map[string]string{"ru": "Эхо"}}
}
func (echoModule) Instructions(lang string) string { return "handles everything" }
func (echoModule) Tools() []modules.Tool           { return nil }
func (echoModule) Keywords() []string              { return nil }

type sentReply struct {
	to  string
	msg *OutgoingMessage
}

// fakeChannel feeds scripted incoming messages and records sends.
type fakeChannel struct {
	name      string
	incoming  chan *IncomingMessage
	sent      chan sentReply
	connected bool
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{
		name:     name,
		incoming: make(chan *IncomingMessage, 8),
		sent:     make(chan sentReply, 8),
	}
}

func (f *fakeChannel) Name() string                    { return f.name }
func (f *fakeChannel) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeChannel) Disconnect() error               { f.connected = false; return nil }
func (f *fakeChannel) Receive() <-chan *IncomingMessage { return f.incoming }
func (f *fakeChannel) IsConnected() bool               { return f.connected }
func (f *fakeChannel) Health() HealthStatus            { return HealthStatus{Connected: f.connected} }

func (f *fakeChannel) Send(ctx context.Context, to string, msg *OutgoingMessage) error {
	f.sent <- sentReply{to: to, msg: msg}
	return nil
}

func testManager(t *testing.T, model llm.Completer, resolve TenantResolver) *Manager {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	traces, err := trace.NewSQLiteStore(st.DB(), testLogger())
	if err != nil {
		t.Fatalf("opening trace store: %v", err)
	}
	registry := modules.NewRegistry(testLogger())
	if err := registry.Register(echoModule{}); err != nil {
		t.Fatalf("registering module: %v", err)
	}
	rt := router.New(model, registry, st, traces, testLogger())
	return NewManager(rt, resolve, testLogger())
}

func TestManagerDeliversReply(t *testing.T) {
	model := &cannedModel{responses: []string{
		`{"intents": [{"intent": "echo", "confidence": 0.9}]}`,
		"Готово.",
	}}
	manager := testManager(t, model, func(msg *IncomingMessage) (string, string) {
		return "t1", "ru"
	})
	fc := newFakeChannel("test")
	manager.Add(fc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("starting manager: %v", err)
	}

	fc.incoming <- &IncomingMessage{
		ID:      "m1",
		Channel: "test",
		From:    "u1",
		ChatID:  "chat1",
		Content: "привет",
	}

	select {
	case reply := <-fc.sent:
		if reply.to != "chat1" {
			t.Errorf("reply to = %q", reply.to)
		}
		if reply.msg.Content != "Готово." || reply.msg.ReplyTo != "m1" {
			t.Errorf("reply = %+v", reply.msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}

	cancel()
	manager.Stop()
}

func TestManagerIgnoresUnmappedChat(t *testing.T) {
	model := &cannedModel{}
	manager := testManager(t, model, func(msg *IncomingMessage) (string, string) {
		return "", ""
	})
	fc := newFakeChannel("test")
	manager.Add(fc)

	ctx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("starting manager: %v", err)
	}

	fc.incoming <- &IncomingMessage{ID: "m1", ChatID: "chat1", Content: "привет"}

	// The message is dropped before classification, so nothing is sent and
	// the model is never called.
	time.Sleep(200 * time.Millisecond)
	cancel()
	manager.Stop()

	select {
	case reply := <-fc.sent:
		t.Errorf("unexpected reply: %+v", reply)
	default:
	}
	if model.callCount() != 0 {
		t.Errorf("model calls = %d", model.callCount())
	}
}

func TestManagerHealth(t *testing.T) {
	manager := testManager(t, &cannedModel{}, func(msg *IncomingMessage) (string, string) {
		return "t1", "ru"
	})
	a := newFakeChannel("a")
	b := newFakeChannel("b")
	manager.Add(a)
	manager.Add(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("starting manager: %v", err)
	}
	// Cancel before Stop: receive loops exit only on context cancellation,
	// so Stop's wg.Wait would otherwise block forever.
	defer manager.Stop()
	defer cancel()

	health := manager.Health()
	if len(health) != 2 || !health["a"].Connected || !health["b"].Connected {
		t.Errorf("health = %+v", health)
	}

	if _, ok := manager.Get("a"); !ok {
		t.Error("channel a not found")
	}
	if _, ok := manager.Get("missing"); ok {
		t.Error("unexpected channel found")
	}
}
