package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/router"
)

// TenantResolver maps an incoming message to a tenant id and language.
// Empty tenant id rejects the message.
type TenantResolver func(msg *IncomingMessage) (tenantID, language string)

// Manager fans in messages from all connected channels, routes each through
// the assistant, and sends the reply back on the originating channel.
type Manager struct {
	router   *router.Router
	resolve  TenantResolver
	logger   *slog.Logger
	mu       sync.Mutex
	channels map[string]Channel
	wg       sync.WaitGroup
}

// NewManager creates a channel manager.
func NewManager(rt *router.Router, resolve TenantResolver, logger *slog.Logger) *Manager {
	return &Manager{
		router:   rt,
		resolve:  resolve,
		logger:   logger.With("component", "channels"),
		channels: make(map[string]Channel),
	}
}

// Add registers a channel. Call before Start.
func (m *Manager) Add(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// Get returns a registered channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Start connects all channels and begins processing incoming messages.
// It returns after launching the receive loops; Stop waits for them.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, ch := range m.channels {
		if err := ch.Connect(ctx); err != nil {
			return fmt.Errorf("connecting %s: %w", name, err)
		}
		m.logger.Info("channel connected", "channel", name)

		m.wg.Add(1)
		go m.receiveLoop(ctx, ch)
	}
	return nil
}

// Stop disconnects all channels and waits for in-flight processing.
func (m *Manager) Stop() {
	m.mu.Lock()
	for name, ch := range m.channels {
		if err := ch.Disconnect(); err != nil {
			m.logger.Warn("channel disconnect failed", "channel", name, "error", err)
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Health reports every channel's health keyed by name.
func (m *Manager) Health() map[string]HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]HealthStatus, len(m.channels))
	for name, ch := range m.channels {
		out[name] = ch.Health()
	}
	return out
}

func (m *Manager) receiveLoop(ctx context.Context, ch Channel) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-ch.Receive():
			if !open {
				return
			}
			if msg == nil || msg.Content == "" {
				continue
			}
			// One goroutine per message: a long module run on one chat must
			// not stall other chats on the same channel.
			m.wg.Add(1)
			go func(msg *IncomingMessage) {
				defer m.wg.Done()
				m.handleMessage(ctx, ch, msg)
			}(msg)
		}
	}
}

func (m *Manager) handleMessage(ctx context.Context, ch Channel, msg *IncomingMessage) {
	logger := m.logger.With("channel", ch.Name(), "chat", msg.ChatID)

	tenantID, language := m.resolve(msg)
	if tenantID == "" {
		logger.Debug("message from unmapped chat ignored", "from", msg.From)
		return
	}

	// Live status events have no consumer on messaging channels; the
	// emitter still runs so processing stays identical to the web path.
	emitter := router.NewStatusEmitter(m.logger)
	go func() {
		for range emitter.Events() {
		}
	}()

	reply, err := m.router.ProcessMessage(ctx, router.Request{
		TenantID: tenantID,
		UserID:   msg.From,
		Message:  msg.Content,
		Source:   ch.Name(),
		Language: language,
	}, emitter)
	if err != nil {
		logger.Error("processing channel message failed", "error", err)
		return
	}

	if err := ch.Send(ctx, msg.ChatID, &OutgoingMessage{Content: reply.Text, ReplyTo: msg.ID}); err != nil {
		logger.Error("sending reply failed", "error", err)
	}
}
