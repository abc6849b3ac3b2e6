package store

import (
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestChatMessages(t *testing.T) {
	st := testStore(t)

	messages := []struct{ role, content string }{
		{"user", "привет"},
		{"assistant", "Привет!"},
		{"user", "сколько потратил"},
	}
	for _, m := range messages {
		if err := st.SaveChatMessage("t1", "u1", m.role, m.content, "web"); err != nil {
			t.Fatalf("saving message: %v", err)
		}
	}
	if err := st.SaveChatMessage("other", "u2", "user", "чужое", "web"); err != nil {
		t.Fatalf("saving message: %v", err)
	}

	history, err := st.RecentMessages("t1", 10)
	if err != nil {
		t.Fatalf("loading history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	// Chronological order, oldest first.
	if history[0].Content != "привет" || history[2].Content != "сколько потратил" {
		t.Errorf("unexpected order: %q .. %q", history[0].Content, history[2].Content)
	}

	limited, err := st.RecentMessages("t1", 2)
	if err != nil {
		t.Fatalf("loading limited history: %v", err)
	}
	if len(limited) != 2 || limited[0].Content != "Привет!" {
		t.Errorf("limit must keep the newest messages, got %+v", limited)
	}
}

func TestModuleSettings(t *testing.T) {
	st := testStore(t)

	disabled, err := st.DisabledModules("t1")
	if err != nil {
		t.Fatalf("loading settings: %v", err)
	}
	if len(disabled) != 0 {
		t.Errorf("fresh tenant has disabled modules: %v", disabled)
	}

	if err := st.SetModuleEnabled("t1", "finance", false); err != nil {
		t.Fatalf("disabling: %v", err)
	}
	disabled, err = st.DisabledModules("t1")
	if err != nil {
		t.Fatalf("loading settings: %v", err)
	}
	if !disabled["finance"] {
		t.Error("finance should be disabled")
	}

	// Re-enable through the same upsert path.
	if err := st.SetModuleEnabled("t1", "finance", true); err != nil {
		t.Fatalf("enabling: %v", err)
	}
	disabled, err = st.DisabledModules("t1")
	if err != nil {
		t.Fatalf("loading settings: %v", err)
	}
	if disabled["finance"] {
		t.Error("finance should be enabled again")
	}

	// Settings are per tenant.
	if err := st.SetModuleEnabled("t2", "task", false); err != nil {
		t.Fatalf("disabling for t2: %v", err)
	}
	disabled, _ = st.DisabledModules("t1")
	if disabled["task"] {
		t.Error("t2 settings leaked into t1")
	}
}

func TestTransactions(t *testing.T) {
	st := testStore(t)

	if _, err := st.AddTransaction("t1", "expense", 5000, "еда", "обед"); err != nil {
		t.Fatalf("adding expense: %v", err)
	}
	if _, err := st.AddTransaction("t1", "income", 300000, "зарплата", ""); err != nil {
		t.Fatalf("adding income: %v", err)
	}
	if _, err := st.AddTransaction("t2", "expense", 999, "", ""); err != nil {
		t.Fatalf("adding foreign expense: %v", err)
	}

	income, expense, err := st.Totals("t1")
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if income != 300000 || expense != 5000 {
		t.Errorf("totals = %v / %v", income, expense)
	}

	recent, err := st.RecentTransactions("t1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent length = %d", len(recent))
	}
	// Newest first.
	if recent[0].Kind != "income" {
		t.Errorf("first transaction = %+v", recent[0])
	}
}

func TestTasks(t *testing.T) {
	st := testStore(t)

	due := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	withDue, err := st.AddTask("t1", "позвонить маме", &due)
	if err != nil {
		t.Fatalf("adding task: %v", err)
	}
	if _, err := st.AddTask("t1", "купить хлеб", nil); err != nil {
		t.Fatalf("adding undated task: %v", err)
	}

	open, err := st.OpenTasks("t1", 10)
	if err != nil {
		t.Fatalf("open tasks: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("open length = %d", len(open))
	}
	// Dated tasks sort before undated ones.
	if open[0].ID != withDue || open[0].DueAt == nil {
		t.Errorf("first open task = %+v", open[0])
	}

	if err := st.CompleteTask("t1", withDue); err != nil {
		t.Fatalf("completing: %v", err)
	}
	open, _ = st.OpenTasks("t1", 10)
	if len(open) != 1 || open[0].Title != "купить хлеб" {
		t.Errorf("open after complete = %+v", open)
	}

	// Completing twice, or a foreign task, reports not found.
	if err := st.CompleteTask("t1", withDue); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("double complete err = %v", err)
	}
	if err := st.CompleteTask("t2", open[0].ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("cross-tenant complete err = %v", err)
	}
}

func TestTasksDueBetween(t *testing.T) {
	st := testStore(t)

	now := time.Now().Truncate(time.Second)
	soon := now.Add(10 * time.Minute)
	later := now.Add(3 * time.Hour)
	if _, err := st.AddTask("t1", "скоро", &soon); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddTask("t1", "потом", &later); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddTask("t1", "без срока", nil); err != nil {
		t.Fatal(err)
	}

	due, err := st.TasksDueBetween(now.Add(-time.Minute), now.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("due between: %v", err)
	}
	if len(due) != 1 || due[0].Title != "скоро" {
		t.Errorf("due = %+v", due)
	}
}

func TestBirthdays(t *testing.T) {
	st := testStore(t)

	if _, err := st.AddBirthday("t1", "Аружан", 3, 8, "коллега"); err != nil {
		t.Fatalf("adding birthday: %v", err)
	}
	if _, err := st.AddBirthday("t1", "Данияр", 11, 20, ""); err != nil {
		t.Fatalf("adding birthday: %v", err)
	}

	today, err := st.BirthdaysOn("t1", 3, 8)
	if err != nil {
		t.Fatalf("birthdays on: %v", err)
	}
	if len(today) != 1 || today[0].Person != "Аружан" {
		t.Errorf("birthdays on 8.03 = %+v", today)
	}

	all, err := st.ListBirthdays("t1")
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all birthdays = %+v", all)
	}
	// Calendar order.
	if all[0].Month != 3 || all[1].Month != 11 {
		t.Errorf("order = %+v", all)
	}
}

func TestContacts(t *testing.T) {
	st := testStore(t)

	if _, err := st.AddContact("t1", "Айгерим Сакенова", "+77011234567", "aigerim@example.kz", "бухгалтер"); err != nil {
		t.Fatalf("adding contact: %v", err)
	}
	if _, err := st.AddContact("t1", "Борис", "", "", ""); err != nil {
		t.Fatalf("adding contact: %v", err)
	}

	found, err := st.FindContacts("t1", "Айгерим", 10)
	if err != nil {
		t.Fatalf("finding: %v", err)
	}
	if len(found) != 1 || found[0].Phone != "+77011234567" {
		t.Errorf("found = %+v", found)
	}

	none, err := st.FindContacts("t1", "несуществующий", 10)
	if err != nil {
		t.Fatalf("finding: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("phantom contacts: %+v", none)
	}
}

func TestNotes(t *testing.T) {
	st := testStore(t)

	if _, err := st.AddNote("t1", "Тарифы", "базовый тариф 15000 тг в месяц"); err != nil {
		t.Fatalf("adding note: %v", err)
	}
	if _, err := st.AddNote("t1", "Реквизиты", "БИН 123456789012"); err != nil {
		t.Fatalf("adding note: %v", err)
	}

	// Matches in the body as well as the title.
	found, err := st.SearchNotes("t1", "тариф", 10)
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	if len(found) != 1 || found[0].Title != "Тарифы" {
		t.Errorf("found = %+v", found)
	}
}

func TestIdeas(t *testing.T) {
	st := testStore(t)

	if _, err := st.AddIdea("t1", "запустить рассылку в вотсапе", "маркетинг"); err != nil {
		t.Fatalf("adding idea: %v", err)
	}
	ideas, err := st.RecentIdeas("t1", 10)
	if err != nil {
		t.Fatalf("listing ideas: %v", err)
	}
	if len(ideas) != 1 || ideas[0].Tags != "маркетинг" {
		t.Errorf("ideas = %+v", ideas)
	}
}

func TestDebts(t *testing.T) {
	st := testStore(t)

	soon := time.Now().AddDate(0, 0, 1)
	later := time.Now().AddDate(0, 0, 30)
	if _, err := st.AddDebt("t1", "ТОО СтройГрупп", 150000, "", "услуги", later); err != nil {
		t.Fatalf("adding debt: %v", err)
	}
	if _, err := st.AddDebt("t1", "Арман", 5000, "KZT", "обед", soon); err != nil {
		t.Fatalf("adding debt: %v", err)
	}
	if _, err := st.AddDebt("t2", "Чужой", 999, "USD", "", soon); err != nil {
		t.Fatalf("adding debt: %v", err)
	}

	// Soonest due first, tenant-scoped, empty currency defaults to KZT.
	debts, err := st.OpenDebts("t1", 10)
	if err != nil {
		t.Fatalf("listing debts: %v", err)
	}
	if len(debts) != 2 || debts[0].Debtor != "Арман" || debts[1].Currency != "KZT" {
		t.Errorf("debts = %+v", debts)
	}

	paid, err := st.MarkDebtPaid("t1", "Арман")
	if err != nil {
		t.Fatalf("closing debt: %v", err)
	}
	if !paid.Paid || paid.Amount != 5000 {
		t.Errorf("paid = %+v", paid)
	}
	debts, err = st.OpenDebts("t1", 10)
	if err != nil {
		t.Fatalf("listing debts: %v", err)
	}
	if len(debts) != 1 || debts[0].Debtor != "ТОО СтройГрупп" {
		t.Errorf("debts after payment = %+v", debts)
	}

	// Double close and cross-tenant close both miss.
	if _, err := st.MarkDebtPaid("t1", "Арман"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("double close err = %v", err)
	}
	if _, err := st.MarkDebtPaid("t2", "ТОО СтройГрупп"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("cross-tenant close err = %v", err)
	}
}
