package modules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/i18n"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
)

// ContactsModule stores and finds people.
type ContactsModule struct {
	store *store.Store
}

// NewContactsModule creates the contacts capability.
func NewContactsModule(s *store.Store) *ContactsModule {
	return &ContactsModule{store: s}
}

func (m *ContactsModule) Info() Info {
	return Info{
		ID:   "contacts",
		Icon: "📇",
		Name: map[string]string{
			"ru": "Контакты",
			"kz": "Контактілер",
		},
		Description: map[string]string{
			"ru": "Записная книжка контактов",
			"kz": "Контактілер кітапшасы",
		},
	}
}

func (m *ContactsModule) Instructions(lang string) string {
	if lang == "kz" {
		return "Қолданушы контакт, телефон нөмірі туралы жазғанда осы модульді таңда."
	}
	return "Выбирай этот модуль, когда пользователь хочет сохранить или найти контакт. " +
		"Примеры: «сохрани номер Армана +7 701 555 0101», «какой телефон у Армана»."
}

func (m *ContactsModule) Keywords() []string {
	return []string{"контакт", "телефон", "номер", "почта", "email", "нөмір"}
}

func (m *ContactsModule) Tools() []Tool {
	return []Tool{
		{
			Name:        "save_contact",
			Description: "Save a contact with phone, email or note",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Contact name"},
					"phone": {"type": "string", "description": "Phone number"},
					"email": {"type": "string", "description": "Email address"},
					"note": {"type": "string", "description": "Free-form note"}
				},
				"required": ["name"]
			}`),
			Handler: m.saveContact,
		},
		{
			Name:        "find_contact",
			Description: "Find contacts by name",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Name or part of it"}
				},
				"required": ["query"]
			}`),
			Handler: m.findContact,
		},
	}
}

func (m *ContactsModule) saveContact(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	name := strings.TrimSpace(stringArg(args, "name"))
	if name == "" {
		return "", fmt.Errorf("missing required argument %q", "name")
	}
	_, err := m.store.AddContact(scope.TenantID, name,
		stringArg(args, "phone"), stringArg(args, "email"), stringArg(args, "note"))
	if err != nil {
		return "", err
	}
	return i18n.Tf(scope.Language, "contacts.saved", name), nil
}

func (m *ContactsModule) findContact(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return "", fmt.Errorf("missing required argument %q", "query")
	}
	contacts, err := m.store.FindContacts(scope.TenantID, query, 5)
	if err != nil {
		return "", err
	}
	if len(contacts) == 0 {
		return i18n.Tf(scope.Language, "contacts.not_found", query), nil
	}

	var b strings.Builder
	for i, c := range contacts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("📇 " + c.Name)
		if c.Phone != "" {
			b.WriteString(" · " + c.Phone)
		}
		if c.Email != "" {
			b.WriteString(" · " + c.Email)
		}
	}
	return b.String(), nil
}
