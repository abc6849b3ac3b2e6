package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Task is a tenant to-do item.
type Task struct {
	ID          int64
	TenantID    string
	Title       string
	DueAt       *time.Time
	Done        bool
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// AddTask creates a task, optionally with a due time.
func (s *Store) AddTask(tenantID, title string, dueAt *time.Time) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO tasks (tenant_id, title, due_at) VALUES (?, ?, ?)`,
		tenantID, title, dueAt,
	)
	if err != nil {
		return 0, fmt.Errorf("saving task: %w", err)
	}
	return res.LastInsertId()
}

// CompleteTask marks a task done. Returns sql.ErrNoRows when the task does
// not exist or belongs to another tenant.
func (s *Store) CompleteTask(tenantID string, id int64) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET done = 1, completed_at = CURRENT_TIMESTAMP
		 WHERE tenant_id = ? AND id = ? AND done = 0`,
		tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("completing task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// OpenTasks returns the tenant's pending tasks, due-soonest first, then by
// creation order.
func (s *Store) OpenTasks(tenantID string, limit int) ([]Task, error) {
	rows, err := s.db.Query(
		`SELECT id, tenant_id, title, due_at, done, created_at, completed_at
		 FROM tasks WHERE tenant_id = ? AND done = 0
		 ORDER BY due_at IS NULL, due_at, id LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// TasksDueBetween returns open tasks whose due time falls in [from, to).
// Used by the scheduler for reminder delivery.
func (s *Store) TasksDueBetween(from, to time.Time) ([]Task, error) {
	rows, err := s.db.Query(
		`SELECT id, tenant_id, title, due_at, done, created_at, completed_at
		 FROM tasks WHERE done = 0 AND due_at IS NOT NULL AND due_at >= ? AND due_at < ?
		 ORDER BY due_at`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("querying due tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		var t Task
		var done int
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Title, &t.DueAt, &done, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		t.Done = done != 0
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
