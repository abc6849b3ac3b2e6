package modules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/i18n"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
)

// IdeasModule captures and lists free-form ideas.
type IdeasModule struct {
	store *store.Store
}

// NewIdeasModule creates the ideas capability.
func NewIdeasModule(s *store.Store) *IdeasModule {
	return &IdeasModule{store: s}
}

func (m *IdeasModule) Info() Info {
	return Info{
		ID:   "ideas",
		Icon: "💡",
		Name: map[string]string{
			"ru": "Идеи",
			"kz": "Идеялар",
		},
		Description: map[string]string{
			"ru": "Копилка идей и мыслей",
			"kz": "Идеялар мен ойлар жинағы",
		},
	}
}

func (m *IdeasModule) Instructions(lang string) string {
	if lang == "kz" {
		return "Қолданушы идея, ой жазып қойғысы келгенде осы модульді таңда."
	}
	return "Выбирай этот модуль, когда пользователь хочет записать идею или мысль на будущее. " +
		"Примеры: «запиши идею: доставка по подписке», «какие у меня были идеи»."
}

func (m *IdeasModule) Keywords() []string {
	return []string{"идея", "идеи", "мысль", "придумал", "придумала", "идеялар", "ой"}
}

func (m *IdeasModule) Tools() []Tool {
	return []Tool{
		{
			Name:        "save_idea",
			Description: "Save an idea, optionally with comma-separated tags",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"text": {"type": "string", "description": "The idea text"},
					"tags": {"type": "string", "description": "Comma-separated tags"}
				},
				"required": ["text"]
			}`),
			Handler: m.saveIdea,
		},
		{
			Name:        "list_ideas",
			Description: "List recently saved ideas",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
			Handler:     m.listIdeas,
		},
	}
}

func (m *IdeasModule) saveIdea(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	text := strings.TrimSpace(stringArg(args, "text"))
	if text == "" {
		return "", fmt.Errorf("missing required argument %q", "text")
	}
	if _, err := m.store.AddIdea(scope.TenantID, text, stringArg(args, "tags")); err != nil {
		return "", err
	}
	return i18n.Tf(scope.Language, "ideas.saved", text), nil
}

func (m *IdeasModule) listIdeas(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	ideas, err := m.store.RecentIdeas(scope.TenantID, 10)
	if err != nil {
		return "", err
	}
	if len(ideas) == 0 {
		return i18n.T(scope.Language, "ideas.empty"), nil
	}

	var b strings.Builder
	for i, idea := range ideas {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("💡 " + idea.Text)
		if idea.Tags != "" {
			b.WriteString(" [" + idea.Tags + "]")
		}
	}
	return b.String(), nil
}
