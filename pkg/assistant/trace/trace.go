// Package trace records per-request execution traces: classification,
// module runs, tool calls, and the final outcome. Traces are durable and
// written regardless of whether any client is watching the live stream.
package trace

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Step is one recorded stage of request processing.
type Step struct {
	Name       string         `json:"name"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Trace is the full record of one routed request.
type Trace struct {
	ID              string    `json:"trace_id"`
	TenantID        string    `json:"tenant_id"`
	Source          string    `json:"source"`
	UserMessage     string    `json:"user_message"`
	Steps           []Step    `json:"steps"`
	Intents         []string  `json:"classified_intents"`
	Reasoning       string    `json:"ai_reasoning,omitempty"`
	FinalResponse   string    `json:"final_response,omitempty"`
	Success         bool      `json:"success"`
	ErrorType       string    `json:"error_type,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	TotalDurationMS int64     `json:"total_duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewID returns a short opaque trace id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Recorder accumulates steps for one request and finalizes into a Trace.
type Recorder struct {
	mu      sync.Mutex
	trace   Trace
	started time.Time
	stepAt  time.Time
}

// NewRecorder starts a trace for a request.
func NewRecorder(tenantID, source, userMessage string) *Recorder {
	now := time.Now()
	return &Recorder{
		trace: Trace{
			ID:          NewID(),
			TenantID:    tenantID,
			Source:      source,
			UserMessage: userMessage,
			CreatedAt:   now,
		},
		started: now,
		stepAt:  now,
	}
}

// ID returns the trace id.
func (r *Recorder) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace.ID
}

// AddStep records a completed step. Duration is measured from the end of the
// previous step (or recorder start).
func (r *Recorder) AddStep(name string, data map[string]any, stepErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	step := Step{
		Name:       name,
		StartedAt:  r.stepAt,
		DurationMS: now.Sub(r.stepAt).Milliseconds(),
		Data:       data,
	}
	if stepErr != nil {
		step.Error = stepErr.Error()
	}
	r.trace.Steps = append(r.trace.Steps, step)
	r.stepAt = now
}

// SetClassification records the classifier outcome.
func (r *Recorder) SetClassification(intents []string, reasoning string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Intents = append([]string(nil), intents...)
	r.trace.Reasoning = reasoning
}

// Finish closes the trace with the final outcome and returns it.
func (r *Recorder) Finish(finalResponse string, success bool, errorType, errorMessage string) Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.FinalResponse = finalResponse
	r.trace.Success = success
	r.trace.ErrorType = errorType
	r.trace.ErrorMessage = errorMessage
	r.trace.TotalDurationMS = time.Since(r.started).Milliseconds()
	return r.trace
}

// MarshalSteps serializes steps for storage.
func MarshalSteps(steps []Step) (string, error) {
	b, err := json.Marshal(steps)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
