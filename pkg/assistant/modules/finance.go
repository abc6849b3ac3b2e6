package modules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/i18n"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
)

// FinanceModule tracks expenses, income and balance.
type FinanceModule struct {
	store *store.Store
}

// NewFinanceModule creates the finance capability.
func NewFinanceModule(s *store.Store) *FinanceModule {
	return &FinanceModule{store: s}
}

func (m *FinanceModule) Info() Info {
	return Info{
		ID:   "finance",
		Icon: "💰",
		Name: map[string]string{
			"ru": "Финансы",
			"kz": "Қаржы",
		},
		Description: map[string]string{
			"ru": "Учёт расходов, доходов и баланса",
			"kz": "Шығыстар, кірістер және баланс есебі",
		},
	}
}

func (m *FinanceModule) Instructions(lang string) string {
	if lang == "kz" {
		return "Қолданушы ақша, шығыс, кіріс, баланс туралы жазғанда осы модульді таңда. " +
			"Сома мен санатты хабарламадан алып, тиісті құралды шақыр."
	}
	return "Выбирай этот модуль, когда пользователь пишет про деньги: траты, доходы, баланс. " +
		"Извлеки сумму и категорию из сообщения и вызови нужный инструмент. " +
		"Примеры: «потратил 5000 на обед», «пришло 100000 зарплата», «какой у меня баланс»."
}

func (m *FinanceModule) Keywords() []string {
	return []string{
		"потратил", "потратила", "трата", "расход", "купил", "купила",
		"доход", "заработал", "пришло", "баланс", "деньги", "тенге",
		"жұмсадым", "шығыс", "кіріс", "ақша",
	}
}

func (m *FinanceModule) Tools() []Tool {
	return []Tool{
		{
			Name:        "add_expense",
			Description: "Record an expense with amount, category and optional description",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"amount": {"type": "number", "description": "Expense amount"},
					"category": {"type": "string", "description": "Spending category, e.g. food, transport"},
					"description": {"type": "string", "description": "Free-form note"}
				},
				"required": ["amount"]
			}`),
			Handler: m.addExpense,
		},
		{
			Name:        "add_income",
			Description: "Record an income with amount, category and optional description",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"amount": {"type": "number", "description": "Income amount"},
					"category": {"type": "string", "description": "Income source, e.g. salary"},
					"description": {"type": "string", "description": "Free-form note"}
				},
				"required": ["amount"]
			}`),
			Handler: m.addIncome,
		},
		{
			Name:        "get_balance",
			Description: "Return current balance and recent transactions",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
			Handler:     m.getBalance,
		},
	}
}

func (m *FinanceModule) addExpense(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	amount, err := floatArg(args, "amount")
	if err != nil {
		return "", err
	}
	category := stringArg(args, "category")
	if _, err := m.store.AddTransaction(scope.TenantID, "expense", amount, category, stringArg(args, "description")); err != nil {
		return "", err
	}
	return i18n.Tf(scope.Language, "finance.expense_saved", formatAmount(amount), category), nil
}

func (m *FinanceModule) addIncome(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	amount, err := floatArg(args, "amount")
	if err != nil {
		return "", err
	}
	category := stringArg(args, "category")
	if _, err := m.store.AddTransaction(scope.TenantID, "income", amount, category, stringArg(args, "description")); err != nil {
		return "", err
	}
	return i18n.Tf(scope.Language, "finance.income_saved", formatAmount(amount), category), nil
}

func (m *FinanceModule) getBalance(ctx context.Context, scope Scope, args map[string]any) (string, error) {
	income, expense, err := m.store.Totals(scope.TenantID)
	if err != nil {
		return "", err
	}
	txs, err := m.store.RecentTransactions(scope.TenantID, 5)
	if err != nil {
		return "", err
	}
	if len(txs) == 0 {
		return i18n.T(scope.Language, "finance.no_transactions"), nil
	}

	var b strings.Builder
	b.WriteString(i18n.Tf(scope.Language, "finance.balance",
		formatAmount(income-expense), formatAmount(income), formatAmount(expense)))
	for _, tx := range txs {
		sign := "-"
		if tx.Kind == "income" {
			sign = "+"
		}
		b.WriteString(fmt.Sprintf("\n%s%s", sign, formatAmount(tx.Amount)))
		if tx.Category != "" {
			b.WriteString(" · " + tx.Category)
		}
	}
	return b.String(), nil
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
