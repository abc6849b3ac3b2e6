package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/i18n"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/llm"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/modules"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/trace"
)

// runnerState tracks where the agent loop is.
type runnerState int

const (
	statePlanning runnerState = iota
	stateActing
	stateDone
	stateFailed
)

// maxTurns bounds model round-trips per module run. Each model call is one
// turn; tool executions happen inside a turn and do not consume extra ones.
const maxTurns = 6

// RunResult is what one module run produced.
type RunResult struct {
	IntentID string
	// Text is the user-facing output. Empty when the run failed silently.
	Text string
	// Failed marks a run that ended without usable output.
	Failed bool
	Err    error
	Turns  int
}

// Runner drives one capability module through a bounded tool-calling loop:
// plan with the model, execute requested tools, feed results back, repeat
// until the model answers in text or the turn budget runs out.
type Runner struct {
	llm    llm.Completer
	logger *slog.Logger
}

// NewRunner creates a module runner.
func NewRunner(client llm.Completer, logger *slog.Logger) *Runner {
	return &Runner{llm: client, logger: logger.With("component", "runner")}
}

// Run executes one intent against its module. Tool handler failures are
// reported back to the model as tool results, never retried by the runner
// itself; the model decides whether to try a different approach. The loop
// always terminates within maxTurns.
func (r *Runner) Run(ctx context.Context, mod modules.Module, scope modules.Scope, in Intent, userMessage string, emitter *StatusEmitter, rec *trace.Recorder) RunResult {
	info := mod.Info()
	logger := r.logger.With("module", info.ID, "tenant", scope.TenantID)

	tools := mod.Tools()
	handlers := make(map[string]modules.Handler, len(tools))
	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		handlers[t.Name] = t.Handler
		defs = append(defs, llm.ToolDefinition{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	messages := []llm.Message{
		{Role: "system", Content: r.systemPrompt(mod, scope, in)},
		{Role: "user", Content: userMessage},
	}

	result := RunResult{IntentID: in.ID}
	state := statePlanning
	var lastText string

	for turn := 0; turn < maxTurns; turn++ {
		result.Turns = turn + 1
		start := time.Now()
		resp, err := r.llm.CompleteWithTools(ctx, messages, defs)
		if err != nil {
			logger.Error("model call failed", "turn", turn, "error", err)
			rec.AddStep("module:"+info.ID, map[string]any{"turn": turn}, err)
			state = stateFailed
			result.Failed = true
			result.Err = err
			break
		}
		logger.Debug("turn complete",
			"turn", turn,
			"duration_ms", time.Since(start).Milliseconds(),
			"tool_calls", len(resp.ToolCalls),
		)

		if len(resp.ToolCalls) == 0 {
			// Model answered in text: done.
			state = stateDone
			result.Text = strings.TrimSpace(resp.Content)
			break
		}

		state = stateActing
		if resp.Content != "" {
			lastText = strings.TrimSpace(resp.Content)
		}
		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			output := r.executeTool(ctx, handlers, scope, call, info.ID, emitter, rec, logger)
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: call.ID,
			})
		}
		state = statePlanning
	}

	if state != stateDone && state != stateFailed {
		// Budget exhausted mid-loop. Return the best partial text rather
		// than failing the whole run.
		logger.Warn("turn budget exhausted", "turns", maxTurns)
		if lastText != "" {
			result.Text = i18n.T(scope.Language, "bot.partial_answer") + "\n" + lastText
		} else {
			result.Failed = true
			result.Err = fmt.Errorf("module %s: turn budget exhausted without answer", info.ID)
		}
	}
	if state == stateDone && result.Text == "" {
		// Model returned an empty answer; treat as silent failure so the
		// aggregator can apologize for it.
		result.Failed = true
		result.Err = fmt.Errorf("module %s: empty model answer", info.ID)
	}

	rec.AddStep("module:"+info.ID, map[string]any{
		"turns":  result.Turns,
		"failed": result.Failed,
	}, result.Err)
	return result
}

// executeTool runs one tool call, converting every failure mode (unknown
// tool, bad arguments, handler error, handler panic) into a textual tool
// result the model can react to.
func (r *Runner) executeTool(ctx context.Context, handlers map[string]modules.Handler, scope modules.Scope, call llm.ToolCall, moduleID string, emitter *StatusEmitter, rec *trace.Recorder, logger *slog.Logger) (output string) {
	name := call.Function.Name
	emitter.StatusFor(moduleID, i18n.Tf(scope.Language, "status.tool_call", name))

	defer func() {
		if p := recover(); p != nil {
			logger.Error("tool handler panicked", "tool", name, "panic", p)
			rec.AddStep("tool:"+name, nil, fmt.Errorf("handler panic: %v", p))
			output = fmt.Sprintf("Error: tool %s crashed: %v", name, p)
		}
	}()

	handler, ok := handlers[name]
	if !ok {
		logger.Warn("model requested unknown tool", "tool", name)
		rec.AddStep("tool:"+name, nil, fmt.Errorf("unknown tool"))
		return fmt.Sprintf("Error: unknown tool %q. Use only the provided tools.", name)
	}

	args, err := llm.ParseToolArgs(call.Function.Arguments)
	if err != nil {
		logger.Warn("tool arguments unparseable", "tool", name, "error", err)
		rec.AddStep("tool:"+name, nil, err)
		return fmt.Sprintf("Error: invalid arguments for %s: %v", name, err)
	}

	start := time.Now()
	out, err := handler(ctx, scope, args)
	if err != nil {
		logger.Warn("tool handler failed", "tool", name, "error", err)
		rec.AddStep("tool:"+name, map[string]any{"duration_ms": time.Since(start).Milliseconds()}, err)
		return fmt.Sprintf("Error: %v", err)
	}

	rec.AddStep("tool:"+name, map[string]any{"duration_ms": time.Since(start).Milliseconds()}, nil)
	return out
}

// systemPrompt builds the module's working prompt, splicing in any context
// the classifier extracted.
func (r *Runner) systemPrompt(mod modules.Module, scope modules.Scope, in Intent) string {
	info := mod.Info()
	var b strings.Builder

	if scope.Language == "kz" {
		b.WriteString("Сен көп салалы бизнес-ассистенттің бір модулісің: ")
		b.WriteString(info.DisplayName(scope.Language))
		b.WriteString(".\nҚазақ тілінде қысқа әрі нақты жауап бер.\n\n")
	} else {
		b.WriteString("Ты один из модулей бизнес-ассистента: ")
		b.WriteString(info.DisplayName(scope.Language))
		b.WriteString(".\nОтвечай по-русски, коротко и по делу.\n\n")
	}
	b.WriteString(mod.Instructions(scope.Language))

	if len(in.Data) > 0 {
		if extracted, err := json.Marshal(in.Data); err == nil {
			b.WriteString("\n\nExtracted context: ")
			b.Write(extracted)
		}
	}
	b.WriteString(fmt.Sprintf("\n\nCurrent datetime: %s", time.Now().Format("2006-01-02 15:04 Monday")))
	return b.String()
}
