// Package channels defines the interface for messaging channel
// integrations. Each channel (Telegram, WhatsApp, Discord) implements
// Channel to receive user messages and deliver assistant replies in a
// unified way.
package channels

import (
	"context"
	"fmt"
	"time"
)

// Channel is the contract every messaging integration implements.
type Channel interface {
	// Name returns the channel identifier (e.g. "telegram", "whatsapp").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send delivers a message to the specified recipient.
	Send(ctx context.Context, to string, message *OutgoingMessage) error

	// Receive returns a Go channel that emits incoming messages.
	Receive() <-chan *IncomingMessage

	// IsConnected reports whether the channel is connected.
	IsConnected() bool

	// Health returns the channel health status.
	Health() HealthStatus
}

// IncomingMessage is a user message received from any channel.
type IncomingMessage struct {
	// ID is the message identifier in the source channel.
	ID string

	// Channel identifies the source channel.
	Channel string

	// From is the sender identifier on the platform.
	From string

	// FromName is the sender display name, when available.
	FromName string

	// ChatID is the conversation identifier used for replies.
	ChatID string

	// IsGroup indicates a group chat origin.
	IsGroup bool

	// Content is the message text.
	Content string

	// Timestamp is when the message was sent.
	Timestamp time.Time
}

// OutgoingMessage is a reply to deliver through a channel.
type OutgoingMessage struct {
	// Content is the message text.
	Content string

	// ReplyTo is the ID of the message being replied to, when supported.
	ReplyTo string
}

// HealthStatus is the health state of a channel.
type HealthStatus struct {
	Connected     bool
	LastMessageAt time.Time
	ErrorCount    int
	Details       map[string]any
}

// Errors.
var (
	ErrChannelDisconnected = fmt.Errorf("channel is not connected")
	ErrConnectionFailed    = fmt.Errorf("failed to connect to channel")
)
