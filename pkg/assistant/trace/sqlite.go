package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// SQLiteStore persists traces in the shared assistant database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates the trace table if missing.
func NewSQLiteStore(db *sql.DB, logger *slog.Logger) (*SQLiteStore, error) {
	schema := `CREATE TABLE IF NOT EXISTS traces (
		trace_id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		source TEXT NOT NULL,
		user_message TEXT NOT NULL,
		steps TEXT NOT NULL DEFAULT '[]',
		classified_intents TEXT NOT NULL DEFAULT '[]',
		ai_reasoning TEXT NOT NULL DEFAULT '',
		final_response TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL DEFAULT 0,
		error_type TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		total_duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_traces_tenant ON traces(tenant_id, created_at);`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating traces table: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger.With("component", "trace_store")}, nil
}

// Save writes a completed trace. Failures are logged, not fatal: tracing
// never blocks a reply.
func (s *SQLiteStore) Save(t Trace) error {
	steps, err := MarshalSteps(t.Steps)
	if err != nil {
		return fmt.Errorf("marshaling steps: %w", err)
	}
	intents, err := json.Marshal(t.Intents)
	if err != nil {
		return fmt.Errorf("marshaling intents: %w", err)
	}

	success := 0
	if t.Success {
		success = 1
	}
	_, err = s.db.Exec(
		`INSERT INTO traces (trace_id, tenant_id, source, user_message, steps,
			classified_intents, ai_reasoning, final_response, success,
			error_type, error_message, total_duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TenantID, t.Source, t.UserMessage, steps,
		string(intents), t.Reasoning, t.FinalResponse, success,
		t.ErrorType, t.ErrorMessage, t.TotalDurationMS, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving trace: %w", err)
	}
	return nil
}

// Get loads one trace by id, tenant-scoped.
func (s *SQLiteStore) Get(tenantID, traceID string) (*Trace, error) {
	row := s.db.QueryRow(
		`SELECT trace_id, tenant_id, source, user_message, steps,
			classified_intents, ai_reasoning, final_response, success,
			error_type, error_message, total_duration_ms, created_at
		 FROM traces WHERE tenant_id = ? AND trace_id = ?`,
		tenantID, traceID,
	)
	return scanTrace(row)
}

// List returns the tenant's most recent traces, newest first.
func (s *SQLiteStore) List(tenantID string, limit int) ([]Trace, error) {
	rows, err := s.db.Query(
		`SELECT trace_id, tenant_id, source, user_message, steps,
			classified_intents, ai_reasoning, final_response, success,
			error_type, error_message, total_duration_ms, created_at
		 FROM traces WHERE tenant_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying traces: %w", err)
	}
	defer rows.Close()

	var traces []Trace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, *t)
	}
	return traces, rows.Err()
}

// Prune deletes traces older than the retention window.
func (s *SQLiteStore) Prune(olderThan time.Duration) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM traces WHERE created_at < ?`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("pruning traces: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrace(row rowScanner) (*Trace, error) {
	var t Trace
	var steps, intents string
	var success int
	err := row.Scan(&t.ID, &t.TenantID, &t.Source, &t.UserMessage, &steps,
		&intents, &t.Reasoning, &t.FinalResponse, &success,
		&t.ErrorType, &t.ErrorMessage, &t.TotalDurationMS, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning trace: %w", err)
	}
	t.Success = success != 0
	if err := json.Unmarshal([]byte(steps), &t.Steps); err != nil {
		return nil, fmt.Errorf("decoding trace steps: %w", err)
	}
	if intents != "" && intents != "null" {
		if err := json.Unmarshal([]byte(intents), &t.Intents); err != nil {
			return nil, fmt.Errorf("decoding trace intents: %w", err)
		}
	}
	return &t, nil
}
