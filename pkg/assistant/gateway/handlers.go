package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/router"
)

// chatRequest is the streaming chat endpoint's request body.
type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	// Language overrides the tenant default for this request.
	Language string `json:"language"`
}

// handleChat processes one message and streams progress as SSE. The stream
// carries status events, then exactly one result or error event, then
// closes. A dropped client connection abandons only the relay; the run
// itself completes and the trace is still written.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lang := req.Language
	if lang == "" {
		lang = tenant.Language
	}

	emitter := router.NewStatusEmitter(s.logger)
	routed := router.Request{
		TenantID: tenant.ID,
		UserID:   req.UserID,
		Message:  req.Message,
		Source:   "web",
		Language: lang,
	}

	// The run is detached from the client connection: cancelling the HTTP
	// request must not cancel a half-finished module run.
	go func() {
		if _, err := s.router.ProcessMessage(context.Background(), routed, emitter); err != nil {
			s.logger.Error("chat processing failed", "tenant", tenant.ID, "error", err)
		}
	}()

	clientGone := r.Context().Done()
	for {
		select {
		case <-clientGone:
			s.logger.Debug("client disconnected, abandoning stream", "tenant", tenant.ID)
			return
		case ev, open := <-emitter.Events():
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleHistory returns recent chat turns for the tenant.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	limit := queryInt(r, "limit", 50)

	msgs, err := s.store.RecentMessages(tenant.ID, limit)
	if err != nil {
		s.logger.Error("loading history failed", "tenant", tenant.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	type item struct {
		Role      string `json:"role"`
		Content   string `json:"content"`
		Source    string `json:"source"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]item, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, item{
			Role:      m.Role,
			Content:   m.Content,
			Source:    m.Source,
			CreatedAt: m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// handleModules lists registered modules with the tenant's enabled state.
func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	disabled, err := s.store.DisabledModules(tenant.ID)
	if err != nil {
		s.logger.Error("loading module settings failed", "tenant", tenant.ID, "error", err)
		disabled = nil
	}
	for _, id := range tenant.DisabledModules {
		if disabled == nil {
			disabled = make(map[string]bool)
		}
		disabled[id] = true
	}

	type item struct {
		ID          string            `json:"id"`
		Icon        string            `json:"icon"`
		Name        map[string]string `json:"name"`
		Description map[string]string `json:"description"`
		Enabled     bool              `json:"enabled"`
		Tools       int               `json:"tools"`
	}
	var out []item
	for _, m := range s.registry.All() {
		info := m.Info()
		out = append(out, item{
			ID:          info.ID,
			Icon:        info.Icon,
			Name:        info.Name,
			Description: info.Description,
			Enabled:     !disabled[info.ID],
			Tools:       len(m.Tools()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": out})
}

// handleTraces lists the tenant's recent traces.
func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	limit := queryInt(r, "limit", 20)

	traces, err := s.traces.List(tenant.ID, limit)
	if err != nil {
		s.logger.Error("listing traces failed", "tenant", tenant.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list traces")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"traces": traces})
}

// handleTrace returns one trace by id.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	id := r.PathValue("id")

	t, err := s.traces.Get(tenant.ID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "trace not found")
			return
		}
		s.logger.Error("loading trace failed", "tenant", tenant.ID, "trace", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load trace")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || v > 500 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
