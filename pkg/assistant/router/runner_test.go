package router

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/llm"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/modules"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/trace"
)

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:       id,
		Type:     "function",
		Function: llm.FunctionCall{Name: name, Arguments: args},
	}
}

func runModule(t *testing.T, model llm.Completer, mod modules.Module) RunResult {
	t.Helper()
	runner := NewRunner(model, testLogger())
	emitter := NewStatusEmitter(testLogger())
	defer emitter.Close()
	rec := trace.NewRecorder("t1", "web", "msg")
	scope := modules.Scope{TenantID: "t1", Language: "ru"}
	return runner.Run(context.Background(), mod, scope, Intent{ID: mod.Info().ID}, "msg", emitter, rec)
}

func TestRunnerTextAnswer(t *testing.T) {
	model := &scriptedModel{responses: []scriptedResponse{
		{content: "Готово."},
	}}
	mod := &fakeModule{id: "task"}

	res := runModule(t, model, mod)
	if res.Failed {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Text != "Готово." {
		t.Errorf("text = %q", res.Text)
	}
	if res.Turns != 1 {
		t.Errorf("turns = %d", res.Turns)
	}
}

func TestRunnerToolLoop(t *testing.T) {
	var gotArgs map[string]any
	mod := &fakeModule{
		id: "finance",
		tools: []modules.Tool{{
			Name: "add_expense",
			Handler: func(ctx context.Context, scope modules.Scope, args map[string]any) (string, error) {
				gotArgs = args
				return "saved", nil
			},
		}},
	}
	model := &scriptedModel{responses: []scriptedResponse{
		{toolCalls: []llm.ToolCall{toolCall("c1", "add_expense", `{"amount": 5000}`)}},
		{content: "Записал расход 5000."},
	}}

	res := runModule(t, model, mod)
	if res.Failed {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Text != "Записал расход 5000." {
		t.Errorf("text = %q", res.Text)
	}
	if gotArgs == nil || gotArgs["amount"] != float64(5000) {
		t.Errorf("handler args = %v", gotArgs)
	}
	if res.Turns != 2 {
		t.Errorf("turns = %d", res.Turns)
	}
}

func TestRunnerHandlerErrorFedBack(t *testing.T) {
	calls := 0
	mod := &fakeModule{
		id: "finance",
		tools: []modules.Tool{{
			Name: "add_expense",
			Handler: func(ctx context.Context, scope modules.Scope, args map[string]any) (string, error) {
				calls++
				return "", fmt.Errorf("amount must be positive")
			},
		}},
	}
	model := &scriptedModel{responses: []scriptedResponse{
		{toolCalls: []llm.ToolCall{toolCall("c1", "add_expense", `{"amount": -1}`)}},
		{content: "Сумма должна быть положительной."},
	}}

	res := runModule(t, model, mod)
	if res.Failed {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	// The handler ran exactly once: the runner never retries, the model
	// reacts to the error instead.
	if calls != 1 {
		t.Errorf("handler calls = %d", calls)
	}
	if res.Text == "" {
		t.Error("expected model's recovery text")
	}
}

func TestRunnerHandlerPanicConsumesOneCycle(t *testing.T) {
	calls := 0
	mod := &fakeModule{
		id: "finance",
		tools: []modules.Tool{{
			Name: "add_expense",
			Handler: func(ctx context.Context, scope modules.Scope, args map[string]any) (string, error) {
				calls++
				panic("boom")
			},
		}},
	}
	model := &scriptedModel{responses: []scriptedResponse{
		{toolCalls: []llm.ToolCall{toolCall("c1", "add_expense", `{}`)}},
		{content: "Не получилось сохранить."},
	}}

	res := runModule(t, model, mod)
	if res.Failed {
		t.Fatalf("panic must not fail the run: %v", res.Err)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d", calls)
	}
	if res.Turns != 2 {
		t.Errorf("turns = %d", res.Turns)
	}
}

func TestRunnerUnknownToolFedBack(t *testing.T) {
	mod := &fakeModule{
		id: "finance",
		tools: []modules.Tool{{
			Name: "add_expense",
			Handler: func(ctx context.Context, scope modules.Scope, args map[string]any) (string, error) {
				t.Fatal("known tool must not run")
				return "", nil
			},
		}},
	}
	model := &scriptedModel{responses: []scriptedResponse{
		{toolCalls: []llm.ToolCall{toolCall("c1", "delete_database", `{}`)}},
		{content: "Такого действия нет."},
	}}

	res := runModule(t, model, mod)
	if res.Failed {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Text != "Такого действия нет." {
		t.Errorf("text = %q", res.Text)
	}
}

func TestRunnerTurnBudget(t *testing.T) {
	mod := &fakeModule{
		id: "finance",
		tools: []modules.Tool{{
			Name: "get_balance",
			Handler: func(ctx context.Context, scope modules.Scope, args map[string]any) (string, error) {
				return "balance: 100", nil
			},
		}},
	}
	// The model calls a tool on every turn and never answers in text.
	model := &loopingModel{response: &llm.Response{
		ToolCalls: []llm.ToolCall{toolCall("c1", "get_balance", `{}`)},
	}}

	res := runModule(t, model, mod)
	if !res.Failed {
		t.Fatal("expected failure when the model never answers")
	}
	if model.calls != maxTurns {
		t.Errorf("model calls = %d, want %d", model.calls, maxTurns)
	}
}

func TestRunnerTurnBudgetKeepsPartialText(t *testing.T) {
	mod := &fakeModule{
		id: "finance",
		tools: []modules.Tool{{
			Name: "get_balance",
			Handler: func(ctx context.Context, scope modules.Scope, args map[string]any) (string, error) {
				return "balance: 100", nil
			},
		}},
	}
	// Tool call plus commentary every turn: budget runs out, but the last
	// commentary survives as a partial answer.
	model := &loopingModel{response: &llm.Response{
		Content:   "Проверяю баланс...",
		ToolCalls: []llm.ToolCall{toolCall("c1", "get_balance", `{}`)},
	}}

	res := runModule(t, model, mod)
	if res.Failed {
		t.Fatalf("expected partial answer, got failure: %v", res.Err)
	}
	if !strings.Contains(res.Text, "Проверяю баланс...") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestRunnerModelErrorFails(t *testing.T) {
	mod := &fakeModule{id: "finance"}
	model := &scriptedModel{responses: []scriptedResponse{
		{err: fmt.Errorf("provider down")},
	}}

	res := runModule(t, model, mod)
	if !res.Failed {
		t.Fatal("expected failure on model error")
	}
	if res.Err == nil {
		t.Error("expected error to be recorded")
	}
}
