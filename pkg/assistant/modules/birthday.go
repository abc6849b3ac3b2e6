package modules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/i18n"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
)

// BirthdayModule remembers birthdays and shows upcoming ones.
type BirthdayModule struct {
	store *store.Store
}

// NewBirthdayModule creates the birthday capability.
func NewBirthdayModule(s *store.Store) *BirthdayModule {
	return &BirthdayModule{store: s}
}

func (m *BirthdayModule) Info() Info {
	return Info{
		ID:   "birthday",
		Icon: "🎂",
		Name: map[string]string{
			"ru": "Дни рождения",
			"kz": "Туған күндер",
		},
		Description: map[string]string{
			"ru": "Напоминания о днях рождения",
			"kz": "Туған күндер туралы еске салулар",
		},
	}
}

func (m *BirthdayModule) Instructions(lang string) string {
	if lang == "kz" {
		return "Қолданушы туған күн туралы жазғанда осы модульді таңда. Айды санмен бер (1-12)."
	}
	return "Выбирай этот модуль, когда пользователь просит запомнить чей-то день рождения или " +
		"спрашивает про ближайшие. Месяц передавай числом (1-12). " +
		"Примеры: «у Айгуль день рождения 15 марта», «у кого скоро день рождения»."
}

func (m *BirthdayModule) Keywords() []string {
	return []string{"день рождения", "др ", "родился", "родилась", "туған күн"}
}

func (m *BirthdayModule) Tools() []Tool {
	return []Tool{
		{
			Name:        "save_birthday",
			Description: "Remember a person's birthday",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"person": {"type": "string", "description": "Person's name"},
					"month": {"type": "integer", "description": "Month number 1-12"},
					"day": {"type": "integer", "description": "Day of month 1-31"},
					"note": {"type": "string", "description": "Optional note, e.g. relation"}
				},
				"required": ["person", "month", "day"]
			}`),
			Handler: m.saveBirthday,
		},
		{
			Name:        "upcoming_birthdays",
			Description: "List birthdays in the next 30 days",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
			Handler:     m.upcoming,
		},
	}
}

func (m *BirthdayModule) saveBirthday(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	person := strings.TrimSpace(stringArg(args, "person"))
	if person == "" {
		return "", fmt.Errorf("missing required argument %q", "person")
	}
	month, err := intArg(args, "month")
	if err != nil {
		return "", err
	}
	day, err := intArg(args, "day")
	if err != nil {
		return "", err
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", fmt.Errorf("invalid date: month %d day %d", month, day)
	}

	if _, err := m.store.AddBirthday(scope.TenantID, person, month, day, stringArg(args, "note")); err != nil {
		return "", err
	}
	return i18n.Tf(scope.Language, "birthday.saved", person, fmt.Sprintf("%02d.%02d", day, month)), nil
}

func (m *BirthdayModule) upcoming(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	all, err := m.store.ListBirthdays(scope.TenantID)
	if err != nil {
		return "", err
	}

	now := time.Now()
	horizon := now.AddDate(0, 0, 30)
	var lines []string
	for _, b := range all {
		next := time.Date(now.Year(), time.Month(b.Month), b.Day, 0, 0, 0, 0, time.Local)
		if next.Before(now.AddDate(0, 0, -1)) {
			next = next.AddDate(1, 0, 0)
		}
		if next.After(horizon) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s — %02d.%02d", b.Person, b.Day, b.Month))
	}
	if len(lines) == 0 {
		return i18n.T(scope.Language, "birthday.empty"), nil
	}
	return i18n.T(scope.Language, "birthday.upcoming") + "\n" + strings.Join(lines, "\n"), nil
}
