package whatsapp

import (
	"log/slog"
	"os"
	"testing"
	"time"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func textEvent(text string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:   types.NewJID("77015550101", types.DefaultUserServer),
				Sender: types.NewJID("77015550101", types.DefaultUserServer),
			},
			ID:        "MSG1",
			PushName:  "Арман",
			Timestamp: time.Now(),
		},
		Message: &waE2E.Message{Conversation: proto.String(text)},
	}
}

func TestHandleMessageAfterDisconnect(t *testing.T) {
	w := New(Config{StorePath: "ignored.db"}, testLogger())
	if err := w.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	// A late event from the client after Disconnect must not panic;
	// the message is buffered or dropped, never sent on a closed channel.
	w.handleMessage(textEvent("привет"))

	select {
	case msg := <-w.messages:
		if msg.Content != "привет" || msg.Channel != "whatsapp" {
			t.Errorf("message = %+v", msg)
		}
	default:
		t.Error("expected buffered message")
	}
}

func TestHandleMessageFilters(t *testing.T) {
	w := New(Config{}, testLogger())

	t.Run("own message ignored", func(t *testing.T) {
		evt := textEvent("привет")
		evt.Info.IsFromMe = true
		w.handleMessage(evt)
		if len(w.messages) != 0 {
			t.Error("own message was queued")
		}
	})

	t.Run("group ignored without RespondToGroups", func(t *testing.T) {
		evt := textEvent("привет")
		evt.Info.IsGroup = true
		w.handleMessage(evt)
		if len(w.messages) != 0 {
			t.Error("group message was queued")
		}
	})

	t.Run("empty content ignored", func(t *testing.T) {
		evt := textEvent("")
		evt.Message = &waE2E.Message{}
		w.handleMessage(evt)
		if len(w.messages) != 0 {
			t.Error("empty message was queued")
		}
	})
}

func TestParseJID(t *testing.T) {
	t.Run("full JID", func(t *testing.T) {
		jid, err := parseJID("77015550101@s.whatsapp.net")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if jid.User != "77015550101" {
			t.Errorf("user = %q", jid.User)
		}
	})

	t.Run("bare phone with formatting", func(t *testing.T) {
		jid, err := parseJID("+7 (701) 555-01-01")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if jid.User != "77015550101" || jid.Server != types.DefaultUserServer {
			t.Errorf("jid = %v", jid)
		}
	})

	t.Run("too short rejected", func(t *testing.T) {
		if _, err := parseJID("12345"); err == nil {
			t.Error("expected error for short number")
		}
	})

	t.Run("empty rejected", func(t *testing.T) {
		if _, err := parseJID("  "); err == nil {
			t.Error("expected error for empty input")
		}
	})
}

func TestExtractText(t *testing.T) {
	if got := extractText(nil); got != "" {
		t.Errorf("nil message text = %q", got)
	}
	if got := extractText(&waE2E.Message{Conversation: proto.String("привет")}); got != "привет" {
		t.Errorf("conversation text = %q", got)
	}
	ext := &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("ссылка")},
	}
	if got := extractText(ext); got != "ссылка" {
		t.Errorf("extended text = %q", got)
	}
}
