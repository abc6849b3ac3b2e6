package modules

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// DefaultModuleID is the conversational fallback capability. It is always
// registered and always enabled.
const DefaultModuleID = "assistant"

// Registry holds modules in registration order. Registration order defines
// prompt order; it never affects execution order, which follows the
// classifier's output.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	modules map[string]Module
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		modules: make(map[string]Module),
		logger:  logger.With("component", "registry"),
	}
}

// Register adds a module. Re-registering an id replaces the module and
// keeps its original position.
func (r *Registry) Register(m Module) error {
	id := m.Info().ID
	if id == "" {
		return fmt.Errorf("module has empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[id]; !exists {
		r.order = append(r.order, id)
	}
	r.modules[id] = m
	r.logger.Debug("module registered", "module", id, "tools", len(m.Tools()))
	return nil
}

// Get returns a module by id.
func (r *Registry) Get(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

// All returns modules in registration order.
func (r *Registry) All() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}
	return out
}

// IDs returns module ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Enabled returns modules in registration order, skipping ids present in
// disabled. The default module is never skipped.
func (r *Registry) Enabled(disabled map[string]bool) []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.order))
	for _, id := range r.order {
		if disabled[id] && id != DefaultModuleID {
			continue
		}
		out = append(out, r.modules[id])
	}
	return out
}

// BuildPrompt renders the classifier's module catalog: one block per
// enabled module with its icon, name, intent id and instructions.
func (r *Registry) BuildPrompt(lang string, disabled map[string]bool) string {
	blocks := make([]string, 0, len(r.order))
	for _, m := range r.Enabled(disabled) {
		info := m.Info()
		header := fmt.Sprintf("## %s %s (intent: %s)", info.Icon, info.DisplayName(lang), info.ID)
		blocks = append(blocks, header+"\n"+m.Instructions(lang))
	}
	return strings.Join(blocks, "\n\n")
}
