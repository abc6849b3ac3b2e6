// Package modules defines the capability module contract and the ordered
// registry the router classifies against. Each module contributes an intent
// id, localized metadata, classifier instructions, and a set of tools the
// model can call while handling that intent.
package modules

import (
	"context"
	"encoding/json"
)

// Info describes a module for classification prompts and the API surface.
type Info struct {
	// ID is the stable intent id ("finance", "task", ...).
	ID string `json:"id"`
	// Icon is a short emoji used in prompts and summaries.
	Icon string `json:"icon"`
	// Name holds the display name per language code.
	Name map[string]string `json:"name"`
	// Description holds a one-line summary per language code.
	Description map[string]string `json:"description"`
}

// DisplayName returns the module name in the given language, falling back
// to Russian then the id.
func (i Info) DisplayName(lang string) string {
	if n, ok := i.Name[lang]; ok && n != "" {
		return n
	}
	if n, ok := i.Name["ru"]; ok && n != "" {
		return n
	}
	return i.ID
}

// Handler executes one tool call with already-parsed arguments and returns
// a user-facing result string.
type Handler func(ctx context.Context, scope Scope, args map[string]any) (string, error)

// Tool is one model-callable function a module exposes.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON Schema for the arguments object.
	Parameters json.RawMessage
	Handler    Handler
}

// Scope identifies whose data a request operates on.
type Scope struct {
	TenantID string
	UserID   string
	Language string
	Source   string
}

// Module is one capability the assistant can route to.
type Module interface {
	// Info returns static metadata.
	Info() Info
	// Instructions returns the prompt fragment teaching the model when and
	// how to use this module, in the given language.
	Instructions(lang string) string
	// Tools returns the module's callable tools. Order is stable.
	Tools() []Tool
	// Keywords returns lowercase trigger words for the fallback classifier.
	Keywords() []string
}
