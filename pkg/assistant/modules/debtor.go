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

// DebtorModule tracks money owed to the tenant: who owes what and until when.
type DebtorModule struct {
	store *store.Store
}

// NewDebtorModule creates the debtor capability.
func NewDebtorModule(s *store.Store) *DebtorModule {
	return &DebtorModule{store: s}
}

func (m *DebtorModule) Info() Info {
	return Info{
		ID:   "debtor",
		Icon: "🧾",
		Name: map[string]string{
			"ru": "Дебиторка",
			"kz": "Дебиторлық қарыз",
		},
		Description: map[string]string{
			"ru": "Учёт долгов и выставление счетов",
			"kz": "Қарыздарды есепке алу",
		},
	}
}

func (m *DebtorModule) Instructions(lang string) string {
	if lang == "kz" {
		return "Қолданушы қарыз, борышкер немесе шот туралы жазғанда осы модульді таңда. " +
			"Борышкердің атын, соманы және мерзімді хабарламадан алып, тиісті құралды шақыр."
	}
	return "Выбирай этот модуль, когда пользователь пишет про долги и счета: кто должен, сколько и до когда. " +
		"Извлеки имя должника, сумму и срок из сообщения и вызови нужный инструмент. " +
		"Примеры: «запиши долг 5000 Арман за обед», «Саша вернул 2000», «кто мне должен»."
}

func (m *DebtorModule) Keywords() []string {
	return []string{
		"долг", "должен", "должна", "дебиторка", "вернуть", "вернул",
		"счет", "счёт", "invoice", "debt", "қарыз", "борышкер",
	}
}

func (m *DebtorModule) Tools() []Tool {
	return []Tool{
		{
			Name:        "add_debt",
			Description: "Record a debt owed by a person or company, with amount and due term",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"debtor_name": {"type": "string", "description": "Who owes: person or company name"},
					"amount": {"type": "number", "description": "Debt amount"},
					"currency": {"type": "string", "description": "Currency code, default KZT"},
					"description": {"type": "string", "description": "What the debt is for"},
					"due_in_days": {"type": "integer", "description": "Days until due, default 7"}
				},
				"required": ["debtor_name", "amount"]
			}`),
			Handler: m.addDebt,
		},
		{
			Name:        "list_debts",
			Description: "List open debts ordered by due date",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
			Handler:     m.listDebts,
		},
		{
			Name:        "mark_paid",
			Description: "Close the oldest open debt of the named debtor as paid",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"debtor_name": {"type": "string", "description": "Debtor name"}
				},
				"required": ["debtor_name"]
			}`),
			Handler: m.markPaid,
		},
	}
}

func (m *DebtorModule) addDebt(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	name := strings.TrimSpace(stringArg(args, "debtor_name"))
	if name == "" {
		return "", fmt.Errorf("missing required argument %q", "debtor_name")
	}
	amount, err := floatArg(args, "amount")
	if err != nil {
		return "", err
	}

	days := 7
	if d, err := intArg(args, "due_in_days"); err == nil && d > 0 {
		days = d
	}
	dueAt := time.Now().AddDate(0, 0, days)

	// A known contact wins over the model's spelling of the name.
	if contacts, err := m.store.FindContacts(scope.TenantID, name, 1); err == nil && len(contacts) > 0 {
		name = contacts[0].Name
	}

	currency := stringArg(args, "currency")
	if currency == "" {
		currency = "KZT"
	}
	if _, err := m.store.AddDebt(scope.TenantID, name, amount, currency, stringArg(args, "description"), dueAt); err != nil {
		return "", err
	}
	return i18n.Tf(scope.Language, "debtor.saved",
		name, formatAmount(amount), currency, dueAt.Format("02.01.2006")), nil
}

func (m *DebtorModule) listDebts(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	debts, err := m.store.OpenDebts(scope.TenantID, 20)
	if err != nil {
		return "", err
	}
	if len(debts) == 0 {
		return i18n.T(scope.Language, "debtor.empty"), nil
	}

	var b strings.Builder
	b.WriteString(i18n.T(scope.Language, "debtor.open_header"))
	for _, d := range debts {
		b.WriteString(fmt.Sprintf("\n👤 %s — %s %s", d.Debtor, formatAmount(d.Amount), d.Currency))
		if d.Description != "" {
			b.WriteString(" · " + d.Description)
		}
		b.WriteString(" · " + d.DueAt.Format("02.01"))
	}
	return b.String(), nil
}

func (m *DebtorModule) markPaid(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	name := strings.TrimSpace(stringArg(args, "debtor_name"))
	if name == "" {
		return "", fmt.Errorf("missing required argument %q", "debtor_name")
	}
	debt, err := m.store.MarkDebtPaid(scope.TenantID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return i18n.Tf(scope.Language, "debtor.not_found", name), nil
	}
	if err != nil {
		return "", err
	}
	return i18n.Tf(scope.Language, "debtor.paid",
		debt.Debtor, formatAmount(debt.Amount), debt.Currency), nil
}
