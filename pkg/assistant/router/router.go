package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/i18n"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/llm"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/modules"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/trace"
)

// Request is one incoming user message with its tenant scope.
type Request struct {
	TenantID string
	UserID   string
	Message  string
	// Source names the originating channel: web, telegram, whatsapp, discord.
	Source string
	// Language is the reply language code; empty defaults to Russian.
	Language string
}

// Reply is the routed outcome of one request.
type Reply struct {
	Text string
	// Intents lists executed capability ids in classification order.
	Intents []string
	TraceID string
}

// Router wires the classifier, runner and aggregator into the request
// pipeline. One Router serves all tenants; per-request state lives on the
// stack and in the emitter.
type Router struct {
	classifier *Classifier
	runner     *Runner
	registry   *modules.Registry
	store      *store.Store
	traces     *trace.SQLiteStore
	logger     *slog.Logger
}

// New creates a router over the given registry and stores.
func New(client llm.Completer, registry *modules.Registry, st *store.Store, traces *trace.SQLiteStore, logger *slog.Logger) *Router {
	return &Router{
		classifier: NewClassifier(client, registry, logger),
		runner:     NewRunner(client, logger),
		registry:   registry,
		store:      st,
		traces:     traces,
		logger:     logger.With("component", "router"),
	}
}

// ProcessMessage runs one message through classify, execute, aggregate.
// Modules execute sequentially in classification order. The emitter always
// receives a terminal result or error event and is closed before return,
// whether or not anyone is consuming it. Returned errors are reserved for
// total failures; partial module failures surface inside Reply.Text.
func (r *Router) ProcessMessage(ctx context.Context, req Request, emitter *StatusEmitter) (reply *Reply, err error) {
	lang := i18n.Normalize(req.Language)
	scope := modules.Scope{
		TenantID: req.TenantID,
		UserID:   req.UserID,
		Language: lang,
		Source:   req.Source,
	}
	rec := trace.NewRecorder(req.TenantID, req.Source, req.Message)
	logger := r.logger.With("tenant", req.TenantID, "trace", rec.ID())

	defer func() {
		// One recovery point for the whole pipeline: a panic anywhere below
		// becomes exactly one error event and one failed trace.
		if p := recover(); p != nil {
			logger.Error("request processing panicked", "panic", p)
			err = fmt.Errorf("processing panic: %v", p)
			emitter.Emit(Event{Type: EventError, Content: i18n.T(lang, "bot.error")})
			r.saveTrace(rec.Finish("", false, "panic", fmt.Sprint(p)), logger)
			reply = nil
		}
		emitter.Close()
	}()

	if err := r.store.SaveChatMessage(req.TenantID, req.UserID, "user", req.Message, req.Source); err != nil {
		logger.Warn("saving user message failed", "error", err)
	}
	history, err := r.store.RecentMessages(req.TenantID, 20)
	if err != nil {
		logger.Warn("loading history failed", "error", err)
	}
	disabled, err := r.store.DisabledModules(req.TenantID)
	if err != nil {
		logger.Warn("loading module settings failed", "error", err)
		disabled = nil
	}

	emitter.Status(i18n.T(lang, "status.classifying"))
	cls, err := r.classifier.Classify(ctx, scope, req.Message, history, disabled)
	if err != nil {
		// Classify falls back internally; an error here means even the
		// fallback path broke.
		logger.Error("classification failed", "error", err)
		emitter.Emit(Event{Type: EventError, Content: i18n.T(lang, "bot.error")})
		r.saveTrace(rec.Finish("", false, "classification", err.Error()), logger)
		return nil, fmt.Errorf("classifying message: %w", err)
	}

	intentIDs := make([]string, len(cls.Intents))
	for i, in := range cls.Intents {
		intentIDs[i] = in.ID
	}
	rec.SetClassification(intentIDs, cls.Reasoning)
	rec.AddStep("classify", map[string]any{
		"intents":  intentIDs,
		"fallback": cls.Fallback,
	}, nil)
	logger.Info("message classified", "intents", intentIDs, "fallback", cls.Fallback)

	results := make([]RunResult, 0, len(cls.Intents))
	executed := make([]string, 0, len(cls.Intents))
	for _, in := range cls.Intents {
		mod, ok := r.registry.Get(in.ID)
		if !ok {
			// Classifier already filters unknown ids; registry changes
			// between calls are the only way to get here.
			logger.Warn("intent module missing at execution time", "intent", in.ID)
			continue
		}
		name := mod.Info().DisplayName(lang)
		emitter.StatusFor(in.ID, i18n.Tf(lang, "status.module_start", name))

		executed = append(executed, in.ID)
		res := r.runner.Run(ctx, mod, scope, in, req.Message, emitter, rec)
		if res.Failed {
			emitter.StatusFor(in.ID, i18n.Tf(lang, "status.module_failed", name))
		} else {
			emitter.StatusFor(in.ID, i18n.Tf(lang, "status.module_done", name))
		}
		results = append(results, res)
	}

	text := Aggregate(lang, results, r.registry)
	if err := r.store.SaveChatMessage(req.TenantID, req.UserID, "assistant", text, req.Source); err != nil {
		logger.Warn("saving assistant message failed", "error", err)
	}

	allFailed := len(results) > 0
	for _, res := range results {
		if !res.Failed {
			allFailed = false
			break
		}
	}
	if allFailed {
		r.saveTrace(rec.Finish(text, false, "modules", "all modules failed"), logger)
	} else {
		r.saveTrace(rec.Finish(text, true, "", ""), logger)
	}

	emitter.Emit(Event{Type: EventResult, Content: text})
	return &Reply{Text: text, Intents: executed, TraceID: rec.ID()}, nil
}

func (r *Router) saveTrace(t trace.Trace, logger *slog.Logger) {
	if r.traces == nil {
		return
	}
	if err := r.traces.Save(t); err != nil {
		logger.Warn("saving trace failed", "error", err)
	}
}
