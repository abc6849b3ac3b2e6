package store

import (
	"fmt"
	"time"
)

// Debt is money someone owes the tenant, with a due date.
type Debt struct {
	ID          int64
	TenantID    string
	Debtor      string
	Amount      float64
	Currency    string
	Description string
	DueAt       time.Time
	Paid        bool
	CreatedAt   time.Time
}

// AddDebt records an open debt. Currency defaults to KZT.
func (s *Store) AddDebt(tenantID, debtor string, amount float64, currency, description string, dueAt time.Time) (int64, error) {
	if currency == "" {
		currency = "KZT"
	}
	res, err := s.db.Exec(
		`INSERT INTO debts (tenant_id, debtor, amount, currency, description, due_at) VALUES (?, ?, ?, ?, ?, ?)`,
		tenantID, debtor, amount, currency, description, dueAt,
	)
	if err != nil {
		return 0, fmt.Errorf("saving debt: %w", err)
	}
	return res.LastInsertId()
}

// OpenDebts returns unpaid debts ordered by due date, soonest first.
func (s *Store) OpenDebts(tenantID string, limit int) ([]Debt, error) {
	rows, err := s.db.Query(
		`SELECT id, tenant_id, debtor, amount, currency, description, due_at, paid, created_at
		 FROM debts WHERE tenant_id = ? AND paid = 0
		 ORDER BY due_at, id LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying debts: %w", err)
	}
	defer rows.Close()

	var debts []Debt
	for rows.Next() {
		var d Debt
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Debtor, &d.Amount, &d.Currency,
			&d.Description, &d.DueAt, &d.Paid, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning debt: %w", err)
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

// MarkDebtPaid closes the oldest open debt matching the debtor name
// (substring, case-insensitive) and returns it. sql.ErrNoRows when no
// open debt matches.
func (s *Store) MarkDebtPaid(tenantID, debtor string) (*Debt, error) {
	var d Debt
	err := s.db.QueryRow(
		`SELECT id, tenant_id, debtor, amount, currency, description, due_at, paid, created_at
		 FROM debts WHERE tenant_id = ? AND paid = 0 AND debtor LIKE ? COLLATE NOCASE
		 ORDER BY id LIMIT 1`,
		tenantID, "%"+debtor+"%",
	).Scan(&d.ID, &d.TenantID, &d.Debtor, &d.Amount, &d.Currency,
		&d.Description, &d.DueAt, &d.Paid, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(
		`UPDATE debts SET paid = 1, paid_at = CURRENT_TIMESTAMP WHERE id = ?`, d.ID,
	); err != nil {
		return nil, fmt.Errorf("closing debt: %w", err)
	}
	d.Paid = true
	return &d, nil
}
