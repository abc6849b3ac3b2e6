package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/llm"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/modules"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
)

// Intent is one classified capability match with extracted context.
type Intent struct {
	// ID is the capability module id.
	ID string `json:"intent"`
	// Confidence is the model's self-reported score. Recorded for traces
	// only; it never decides whether a module runs.
	Confidence float64 `json:"confidence"`
	// Data holds fields the classifier extracted from the message.
	Data map[string]any `json:"data,omitempty"`
}

// Classification is the classifier's ordered verdict for one message.
type Classification struct {
	Reasoning string
	Intents   []Intent
	// Fallback is true when the model call or parse failed and keyword
	// matching produced the intents instead.
	Fallback bool
}

// historyWindow is how many recent turns the classifier sees.
const historyWindow = 5

// Classifier maps a user message to an ordered list of capability intents
// with a single model call.
type Classifier struct {
	llm      llm.Completer
	registry *modules.Registry
	logger   *slog.Logger
}

// NewClassifier creates a classifier over the module registry.
func NewClassifier(client llm.Completer, registry *modules.Registry, logger *slog.Logger) *Classifier {
	return &Classifier{
		llm:      client,
		registry: registry,
		logger:   logger.With("component", "classifier"),
	}
}

// Classify determines which modules should handle the message and in what
// order. The returned intent order is the model's emission order and is
// preserved downstream. On model or parse failure it falls back to keyword
// matching; an empty result maps to the default module.
func (c *Classifier) Classify(ctx context.Context, scope modules.Scope, message string, history []store.ChatMessage, disabled map[string]bool) (*Classification, error) {
	prompt := c.buildPrompt(scope.Language, disabled)
	messages := make([]llm.Message, 0, historyWindow+2)
	messages = append(messages, llm.Message{Role: "system", Content: prompt})
	start := len(history) - historyWindow
	if start < 0 {
		start = 0
	}
	for _, h := range history[start:] {
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: message})

	resp, err := c.llm.CompleteWithTools(ctx, messages, nil)
	if err != nil {
		c.logger.Warn("classification model call failed, using keyword fallback", "error", err)
		return c.keywordFallback(message, disabled), nil
	}

	parsed, err := parseClassification(resp.Content)
	if err != nil {
		c.logger.Warn("classification response unparseable, using keyword fallback",
			"error", err, "response_prefix", prefix(resp.Content, 120))
		return c.keywordFallback(message, disabled), nil
	}

	result := &Classification{Reasoning: parsed.Reasoning}
	for _, in := range parsed.Intents {
		id := strings.TrimSpace(in.ID)
		if id == "" || id == "unknown" {
			continue
		}
		if _, known := c.registry.Get(id); !known {
			c.logger.Warn("classifier produced unknown intent, dropping", "intent", id)
			continue
		}
		if disabled[id] && id != modules.DefaultModuleID {
			c.logger.Debug("intent targets disabled module, dropping", "intent", id)
			continue
		}
		result.Intents = append(result.Intents, in)
	}

	if len(result.Intents) == 0 {
		result.Intents = []Intent{{ID: modules.DefaultModuleID, Confidence: 1.0}}
	}
	return result, nil
}

// buildPrompt renders the classification system prompt with the module
// catalog.
func (c *Classifier) buildPrompt(lang string, disabled map[string]bool) string {
	catalog := c.registry.BuildPrompt(lang, disabled)
	ids := strings.Join(c.registry.IDs(), ", ")
	now := time.Now().Format("2006-01-02 15:04 Monday")

	if lang == "kz" {
		return fmt.Sprintf(`Сен бизнес-ассистенттің сұрауларды жіктеушісісің. Қолданушының хабарламасын талдап, қай модульдер өңдеуі керектігін анықта.

Қолжетімді модульдер:

%s

ТЕК JSON форматында жауап бер, басқа мәтінсіз:
{"reasoning": "қысқа түсіндірме", "intents": [{"intent": "<модуль id>", "confidence": 0.0-1.0, "data": {}}]}

Ережелер:
- intent мәні тек осы тізімнен: %s
- Хабарламада бірнеше сұрау болса, бірнеше intent қайтар, хабарламадағы ретпен
- Ешқайсысы сәйкес келмесе "assistant" қайтар
- data ішіне хабарламадан алынған мәндерді сал

Қазіргі уақыт: %s`, catalog, ids, now)
	}

	return fmt.Sprintf(`Ты классификатор запросов бизнес-ассистента. Разбери сообщение пользователя и определи, какие модули должны его обработать.

Доступные модули:

%s

Отвечай ТОЛЬКО в формате JSON без какого-либо другого текста:
{"reasoning": "краткое объяснение", "intents": [{"intent": "<id модуля>", "confidence": 0.0-1.0, "data": {}}]}

Правила:
- intent только из этого списка: %s
- Если в сообщении несколько запросов, верни несколько intent в порядке появления в сообщении
- Если ничего не подходит, верни "assistant"
- В data клади значения, извлечённые из сообщения

Текущее время: %s`, catalog, ids, now)
}

// keywordFallback matches the lowercased message against module keyword
// lists, in registry order. Used only when the model path fails.
func (c *Classifier) keywordFallback(message string, disabled map[string]bool) *Classification {
	lower := strings.ToLower(message)
	result := &Classification{Fallback: true}
	for _, m := range c.registry.Enabled(disabled) {
		for _, kw := range m.Keywords() {
			if strings.Contains(lower, kw) {
				result.Intents = append(result.Intents, Intent{ID: m.Info().ID, Confidence: 0.5})
				break
			}
		}
	}
	if len(result.Intents) == 0 {
		result.Intents = []Intent{{ID: modules.DefaultModuleID, Confidence: 0.5}}
	}
	return result
}

// rawClassification mirrors the model's expected JSON shape.
type rawClassification struct {
	Reasoning string   `json:"reasoning"`
	Intents   []Intent `json:"intents"`
}

// parseClassification extracts the classification JSON from a model reply,
// tolerating markdown fences and surrounding prose.
func parseClassification(content string) (*rawClassification, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	text = stripCodeFence(text)

	// Models sometimes wrap the JSON in prose. Take the outermost braces.
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		} else {
			text = text[start:]
		}
	}

	var parsed rawClassification
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		// Truncated output: close any unclosed brackets and retry once.
		repaired := repairBrackets(text)
		if repaired == text {
			return nil, fmt.Errorf("decoding classification: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
			return nil, fmt.Errorf("decoding classification: %w", err)
		}
	}
	return &parsed, nil
}

// repairBrackets appends closing brackets for any left unclosed, ignoring
// bracket characters inside string literals.
func repairBrackets(text string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			stack = append(stack, '}')
		case ch == '[':
			stack = append(stack, ']')
		case ch == '}' || ch == ']':
			if len(stack) > 0 && stack[len(stack)-1] == ch {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 && !inString {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	trimmed := strings.TrimPrefix(text, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
