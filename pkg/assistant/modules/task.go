package modules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/i18n"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
)

// TaskModule manages the tenant's to-do list.
type TaskModule struct {
	store *store.Store
}

// NewTaskModule creates the task capability.
func NewTaskModule(s *store.Store) *TaskModule {
	return &TaskModule{store: s}
}

func (m *TaskModule) Info() Info {
	return Info{
		ID:   "task",
		Icon: "📋",
		Name: map[string]string{
			"ru": "Задачи",
			"kz": "Тапсырмалар",
		},
		Description: map[string]string{
			"ru": "Список дел и напоминания",
			"kz": "Істер тізімі және еске салулар",
		},
	}
}

func (m *TaskModule) Instructions(lang string) string {
	if lang == "kz" {
		return "Қолданушы тапсырма, іс, еске салу туралы жазғанда осы модульді таңда. " +
			"Мерзімді ISO 8601 форматында бер (мысалы 2026-09-01T10:00:00)."
	}
	return "Выбирай этот модуль, когда пользователь просит добавить задачу, напомнить о чём-то, " +
		"показать или завершить дела. Срок передавай в формате ISO 8601 (например 2026-09-01T10:00:00). " +
		"Примеры: «напомни позвонить клиенту завтра в 10», «что у меня по задачам», «задача 3 сделана»."
}

func (m *TaskModule) Keywords() []string {
	return []string{
		"задача", "задачи", "напомни", "напоминание", "сделать", "дела",
		"выполнил", "выполнила", "сделал", "сделала",
		"тапсырма", "еске сал", "істер",
	}
}

func (m *TaskModule) Tools() []Tool {
	return []Tool{
		{
			Name:        "add_task",
			Description: "Create a to-do task, optionally with a due datetime",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"title": {"type": "string", "description": "Task title"},
					"due_at": {"type": "string", "description": "Due datetime in ISO 8601, omit if none"}
				},
				"required": ["title"]
			}`),
			Handler: m.addTask,
		},
		{
			Name:        "list_tasks",
			Description: "List open tasks",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
			Handler:     m.listTasks,
		},
		{
			Name:        "complete_task",
			Description: "Mark a task as done by its id",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {"type": "integer", "description": "Task id"}
				},
				"required": ["id"]
			}`),
			Handler: m.completeTask,
		},
	}
}

func (m *TaskModule) addTask(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	title := strings.TrimSpace(stringArg(args, "title"))
	if title == "" {
		return "", fmt.Errorf("missing required argument %q", "title")
	}

	var dueAt *time.Time
	if raw := stringArg(args, "due_at"); raw != "" {
		t, err := parseDue(raw)
		if err != nil {
			return "", fmt.Errorf("invalid due_at %q: %w", raw, err)
		}
		dueAt = &t
	}

	if _, err := m.store.AddTask(scope.TenantID, title, dueAt); err != nil {
		return "", err
	}
	return i18n.Tf(scope.Language, "task.created", title), nil
}

func (m *TaskModule) listTasks(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	tasks, err := m.store.OpenTasks(scope.TenantID, 20)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return i18n.T(scope.Language, "task.empty"), nil
	}

	var b strings.Builder
	for i, t := range tasks {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(fmt.Sprintf("%d. %s", t.ID, t.Title))
		if t.DueAt != nil {
			b.WriteString(" (" + t.DueAt.Format("02.01 15:04") + ")")
		}
	}
	return b.String(), nil
}

func (m *TaskModule) completeTask(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	id, err := intArg(args, "id")
	if err != nil {
		return "", err
	}
	if err := m.store.CompleteTask(scope.TenantID, int64(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return i18n.Tf(scope.Language, "task.not_found", fmt.Sprintf("#%d", id)), nil
		}
		return "", err
	}
	return i18n.Tf(scope.Language, "task.completed", fmt.Sprintf("#%d", id)), nil
}

// parseDue accepts the common ISO 8601 shapes models produce.
func parseDue(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime format")
}
