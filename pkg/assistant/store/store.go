// Package store provides tenant-scoped SQLite persistence for the
// assistant's domain data: transactions, tasks, ideas, birthdays, debts,
// contacts, notes, chat history, and per-tenant module settings.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database shared by all modules.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the assistant database at path and runs
// migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent module handlers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger.With("component", "store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for components that manage their own tables
// (trace store, scheduler job storage).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('expense', 'income')),
			amount REAL NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			title TEXT NOT NULL,
			due_at TIMESTAMP,
			done INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_tenant ON tasks(tenant_id, done, due_at)`,

		`CREATE TABLE IF NOT EXISTS ideas (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			text TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ideas_tenant ON ideas(tenant_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS birthdays (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			person TEXT NOT NULL,
			month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
			day INTEGER NOT NULL CHECK (day BETWEEN 1 AND 31),
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_birthdays_tenant ON birthdays(tenant_id, month, day)`,

		`CREATE TABLE IF NOT EXISTS debts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			debtor TEXT NOT NULL,
			amount REAL NOT NULL,
			currency TEXT NOT NULL DEFAULT 'KZT',
			description TEXT NOT NULL DEFAULT '',
			due_at TIMESTAMP NOT NULL,
			paid INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			paid_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_debts_tenant ON debts(tenant_id, paid, due_at)`,

		`CREATE TABLE IF NOT EXISTS contacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_tenant ON contacts(tenant_id, name)`,

		`CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_tenant ON notes(tenant_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			content TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT 'web',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_tenant ON chat_messages(tenant_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS module_settings (
			tenant_id TEXT NOT NULL,
			module_id TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant_id, module_id)
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	ID        int64
	TenantID  string
	UserID    string
	Role      string
	Content   string
	Source    string
	CreatedAt time.Time
}

// SaveChatMessage appends a turn to the tenant's chat history.
func (s *Store) SaveChatMessage(tenantID, userID, role, content, source string) error {
	_, err := s.db.Exec(
		`INSERT INTO chat_messages (tenant_id, user_id, role, content, source) VALUES (?, ?, ?, ?, ?)`,
		tenantID, userID, role, content, source,
	)
	if err != nil {
		return fmt.Errorf("saving chat message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit most recent turns for the tenant,
// oldest first.
func (s *Store) RecentMessages(tenantID string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, tenant_id, user_id, role, content, source, created_at
		 FROM chat_messages WHERE tenant_id = ?
		 ORDER BY id DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.Content, &m.Source, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse to chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SetModuleEnabled records whether a module is enabled for a tenant.
func (s *Store) SetModuleEnabled(tenantID, moduleID string, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO module_settings (tenant_id, module_id, enabled, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(tenant_id, module_id) DO UPDATE SET enabled = excluded.enabled, updated_at = CURRENT_TIMESTAMP`,
		tenantID, moduleID, v,
	)
	if err != nil {
		return fmt.Errorf("saving module setting: %w", err)
	}
	return nil
}

// DisabledModules returns the set of module ids explicitly disabled for a
// tenant. Modules without a row are enabled by default.
func (s *Store) DisabledModules(tenantID string) (map[string]bool, error) {
	rows, err := s.db.Query(
		`SELECT module_id FROM module_settings WHERE tenant_id = ? AND enabled = 0`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying module settings: %w", err)
	}
	defer rows.Close()

	disabled := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning module setting: %w", err)
		}
		disabled[id] = true
	}
	return disabled, rows.Err()
}
