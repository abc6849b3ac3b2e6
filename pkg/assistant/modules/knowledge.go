package modules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/i18n"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
)

// KnowledgeModule keeps a searchable note base per tenant.
type KnowledgeModule struct {
	store *store.Store
}

// NewKnowledgeModule creates the knowledge base capability.
func NewKnowledgeModule(s *store.Store) *KnowledgeModule {
	return &KnowledgeModule{store: s}
}

func (m *KnowledgeModule) Info() Info {
	return Info{
		ID:   "knowledge",
		Icon: "📚",
		Name: map[string]string{
			"ru": "База знаний",
			"kz": "Білім базасы",
		},
		Description: map[string]string{
			"ru": "Заметки и поиск по ним",
			"kz": "Жазбалар және олар бойынша іздеу",
		},
	}
}

func (m *KnowledgeModule) Instructions(lang string) string {
	if lang == "kz" {
		return "Қолданушы жазба сақтағысы немесе бұрын сақталғанды тапқысы келгенде осы модульді таңда."
	}
	return "Выбирай этот модуль, когда пользователь хочет сохранить заметку или найти что-то " +
		"из ранее сохранённого. Примеры: «запомни: пароль от wifi в офисе qwerty123», " +
		"«что я записывал про поставщика»."
}

func (m *KnowledgeModule) Keywords() []string {
	return []string{"запомни", "заметка", "найди", "что я записывал", "жазба", "есте сақта"}
}

func (m *KnowledgeModule) Tools() []Tool {
	return []Tool{
		{
			Name:        "save_note",
			Description: "Save a note to the knowledge base",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"title": {"type": "string", "description": "Short note title"},
					"body": {"type": "string", "description": "Note content"}
				},
				"required": ["body"]
			}`),
			Handler: m.saveNote,
		},
		{
			Name:        "search_notes",
			Description: "Search saved notes by text",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search text"}
				},
				"required": ["query"]
			}`),
			Handler: m.searchNotes,
		},
	}
}

func (m *KnowledgeModule) saveNote(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	body := strings.TrimSpace(stringArg(args, "body"))
	if body == "" {
		return "", fmt.Errorf("missing required argument %q", "body")
	}
	if _, err := m.store.AddNote(scope.TenantID, stringArg(args, "title"), body); err != nil {
		return "", err
	}
	return i18n.T(scope.Language, "knowledge.saved"), nil
}

func (m *KnowledgeModule) searchNotes(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return "", fmt.Errorf("missing required argument %q", "query")
	}
	notes, err := m.store.SearchNotes(scope.TenantID, query, 5)
	if err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return i18n.T(scope.Language, "knowledge.not_found"), nil
	}

	var b strings.Builder
	for i, n := range notes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if n.Title != "" {
			b.WriteString("📝 " + n.Title + "\n")
		}
		b.WriteString(n.Body)
	}
	return b.String(), nil
}
