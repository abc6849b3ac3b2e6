package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Idea is a saved free-form idea.
type Idea struct {
	ID        int64
	TenantID  string
	Text      string
	Tags      string
	CreatedAt time.Time
}

// AddIdea saves an idea with optional comma-separated tags.
func (s *Store) AddIdea(tenantID, text, tags string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO ideas (tenant_id, text, tags) VALUES (?, ?, ?)`,
		tenantID, text, tags,
	)
	if err != nil {
		return 0, fmt.Errorf("saving idea: %w", err)
	}
	return res.LastInsertId()
}

// RecentIdeas returns up to limit most recent ideas, newest first.
func (s *Store) RecentIdeas(tenantID string, limit int) ([]Idea, error) {
	rows, err := s.db.Query(
		`SELECT id, tenant_id, text, tags, created_at
		 FROM ideas WHERE tenant_id = ? ORDER BY id DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ideas: %w", err)
	}
	defer rows.Close()

	var ideas []Idea
	for rows.Next() {
		var i Idea
		if err := rows.Scan(&i.ID, &i.TenantID, &i.Text, &i.Tags, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning idea: %w", err)
		}
		ideas = append(ideas, i)
	}
	return ideas, rows.Err()
}

// Birthday is a remembered date for a person.
type Birthday struct {
	ID       int64
	TenantID string
	Person   string
	Month    int
	Day      int
	Note     string
}

// AddBirthday saves a birthday reminder.
func (s *Store) AddBirthday(tenantID, person string, month, day int, note string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO birthdays (tenant_id, person, month, day, note) VALUES (?, ?, ?, ?, ?)`,
		tenantID, person, month, day, note,
	)
	if err != nil {
		return 0, fmt.Errorf("saving birthday: %w", err)
	}
	return res.LastInsertId()
}

// BirthdaysOn returns all tenants' birthdays falling on the given month/day.
// tenantID narrows to one tenant when non-empty.
func (s *Store) BirthdaysOn(tenantID string, month, day int) ([]Birthday, error) {
	query := `SELECT id, tenant_id, person, month, day, note FROM birthdays WHERE month = ? AND day = ?`
	args := []any{month, day}
	if tenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}
	rows, err := s.db.Query(query+` ORDER BY person`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying birthdays: %w", err)
	}
	defer rows.Close()
	return scanBirthdays(rows)
}

// ListBirthdays returns all the tenant's birthdays in calendar order.
func (s *Store) ListBirthdays(tenantID string) ([]Birthday, error) {
	rows, err := s.db.Query(
		`SELECT id, tenant_id, person, month, day, note
		 FROM birthdays WHERE tenant_id = ? ORDER BY month, day, person`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying birthdays: %w", err)
	}
	defer rows.Close()
	return scanBirthdays(rows)
}

func scanBirthdays(rows *sql.Rows) ([]Birthday, error) {
	var bds []Birthday
	for rows.Next() {
		var b Birthday
		if err := rows.Scan(&b.ID, &b.TenantID, &b.Person, &b.Month, &b.Day, &b.Note); err != nil {
			return nil, fmt.Errorf("scanning birthday: %w", err)
		}
		bds = append(bds, b)
	}
	return bds, rows.Err()
}

// Contact is a saved person with reach info.
type Contact struct {
	ID       int64
	TenantID string
	Name     string
	Phone    string
	Email    string
	Note     string
}

// AddContact saves a contact.
func (s *Store) AddContact(tenantID, name, phone, email, note string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO contacts (tenant_id, name, phone, email, note) VALUES (?, ?, ?, ?, ?)`,
		tenantID, name, phone, email, note,
	)
	if err != nil {
		return 0, fmt.Errorf("saving contact: %w", err)
	}
	return res.LastInsertId()
}

// FindContacts searches contacts by name substring, case-insensitive.
func (s *Store) FindContacts(tenantID, query string, limit int) ([]Contact, error) {
	rows, err := s.db.Query(
		`SELECT id, tenant_id, name, phone, email, note
		 FROM contacts WHERE tenant_id = ? AND name LIKE ? COLLATE NOCASE
		 ORDER BY name LIMIT ?`,
		tenantID, "%"+query+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Email, &c.Note); err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// Note is a knowledge base entry.
type Note struct {
	ID        int64
	TenantID  string
	Title     string
	Body      string
	CreatedAt time.Time
}

// AddNote saves a knowledge base note.
func (s *Store) AddNote(tenantID, title, body string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO notes (tenant_id, title, body) VALUES (?, ?, ?)`,
		tenantID, title, body,
	)
	if err != nil {
		return 0, fmt.Errorf("saving note: %w", err)
	}
	return res.LastInsertId()
}

// SearchNotes finds notes whose title or body contains the query,
// case-insensitive, newest first.
func (s *Store) SearchNotes(tenantID, query string, limit int) ([]Note, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(
		`SELECT id, tenant_id, title, body, created_at
		 FROM notes WHERE tenant_id = ? AND (title LIKE ? COLLATE NOCASE OR body LIKE ? COLLATE NOCASE)
		 ORDER BY id DESC LIMIT ?`,
		tenantID, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.TenantID, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
