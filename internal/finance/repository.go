package finance

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository aggregates the transactions table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SumByType returns credit and debit totals for the period. Empty bounds mean
// an unbounded period.
func (r *Repository) SumByType(ctx context.Context, from, to string) (float64, float64, error) {
	sql := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE type = 'CREDIT'), 0),
		COALESCE(SUM(amount) FILTER (WHERE type = 'DEBIT'), 0)
	FROM transactions WHERE 1=1`
	args := []any{}
	if from != "" {
		args = append(args, from)
		sql += ` AND created_at >= $1`
	}
	if to != "" {
		args = append(args, to)
		if len(args) == 2 {
			sql += ` AND created_at < $2`
		} else {
			sql += ` AND created_at < $1`
		}
	}
	var revenue, cogs float64
	err := r.pool.QueryRow(ctx, sql, args...).Scan(&revenue, &cogs)
	return revenue, cogs, err
}

// PaymentDrift compares each document's pending amount with what the ledger
// says was paid against it.
func (r *Repository) PaymentDrift(ctx context.Context, tolerance float64) ([]DriftRecord, error) {
	const sql = `SELECT d.id, d.kind, d.total - d.pending AS expected, COALESCE(SUM(t.amount), 0) AS actual
		FROM billing_documents d
		LEFT JOIN transactions t ON (t.invoice_id = d.id OR t.bill_id = d.id)
		GROUP BY d.id, d.kind, d.total, d.pending
		HAVING ABS((d.total - d.pending) - COALESCE(SUM(t.amount), 0)) > $1`
	rows, err := r.pool.Query(ctx, sql, tolerance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drift []DriftRecord
	for rows.Next() {
		var d DriftRecord
		if err := rows.Scan(&d.DocumentID, &d.Kind, &d.Expected, &d.Actual); err != nil {
			return nil, err
		}
		drift = append(drift, d)
	}
	return drift, rows.Err()
}
