package store

import (
	"fmt"
	"time"
)

// Transaction is one money movement, expense or income.
type Transaction struct {
	ID          int64
	TenantID    string
	Kind        string // "expense" or "income"
	Amount      float64
	Category    string
	Description string
	CreatedAt   time.Time
}

// AddTransaction records an expense or income for the tenant.
func (s *Store) AddTransaction(tenantID, kind string, amount float64, category, description string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO transactions (tenant_id, kind, amount, category, description) VALUES (?, ?, ?, ?, ?)`,
		tenantID, kind, amount, category, description,
	)
	if err != nil {
		return 0, fmt.Errorf("saving transaction: %w", err)
	}
	return res.LastInsertId()
}

// Totals returns the tenant's total income and total expenses.
func (s *Store) Totals(tenantID string) (income, expense float64, err error) {
	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(CASE WHEN kind = 'income' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount ELSE 0 END), 0)
		 FROM transactions WHERE tenant_id = ?`,
		tenantID,
	).Scan(&income, &expense)
	if err != nil {
		return 0, 0, fmt.Errorf("computing totals: %w", err)
	}
	return income, expense, nil
}

// RecentTransactions returns up to limit most recent transactions, newest
// first.
func (s *Store) RecentTransactions(tenantID string, limit int) ([]Transaction, error) {
	rows, err := s.db.Query(
		`SELECT id, tenant_id, kind, amount, category, description, created_at
		 FROM transactions WHERE tenant_id = ?
		 ORDER BY id DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Kind, &t.Amount, &t.Category, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
