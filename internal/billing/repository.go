package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeflow-erp/tradeflow/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const documentColumns = `id, kind, number, company_id, sales_order_id, purchase_order_id, total, pending, status, created_at, updated_at`

// GetDocument returns a document by id.
func (r *Repository) GetDocument(ctx context.Context, id int64) (Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM billing_documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return d, nil
}

// ListDocuments returns documents matching the filter and the total count.
func (r *Repository) ListDocuments(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	countSQL := `SELECT COUNT(*) FROM billing_documents WHERE 1=1`
	dataSQL := `SELECT ` + documentColumns + ` FROM billing_documents WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.Kind != "" {
		clause := fmt.Sprintf(` AND kind = $%d`, argNum)
		countSQL += clause
		dataSQL += clause
		args = append(args, string(filter.Kind))
		argNum++
	}
	if filter.CompanyID != 0 {
		clause := fmt.Sprintf(` AND company_id = $%d`, argNum)
		countSQL += clause
		dataSQL += clause
		args = append(args, filter.CompanyID)
		argNum++
	}
	if filter.Status != "" {
		clause := fmt.Sprintf(` AND status = $%d`, argNum)
		countSQL += clause
		dataSQL += clause
		args = append(args, string(filter.Status))
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CreateDocument inserts a document and returns its id.
func (r *Repository) CreateDocument(ctx context.Context, d Document) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO billing_documents (kind, number, company_id, sales_order_id, purchase_order_id, total, pending, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		string(d.Kind), d.Number, d.CompanyID, d.SalesOrderID, d.PurchaseOrderID, d.Total, d.Pending, string(d.Status)).Scan(&id)
	return id, err
}

// PaidTotalForOrder sums collected money across the order's invoices.
func (r *Repository) PaidTotalForOrder(ctx context.Context, salesOrderID int64) (float64, error) {
	var paid float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total - pending), 0) FROM billing_documents WHERE kind = 'INVOICE' AND sales_order_id = $1`,
		salesOrderID).Scan(&paid)
	return paid, err
}

// ListTransactions returns ledger entries matching the filter.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	sql := `SELECT id, reference, type, amount, category, sales_order_id, invoice_id, bill_id, note, created_at FROM transactions WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.Type != "" {
		sql += fmt.Sprintf(` AND type = $%d`, argNum)
		args = append(args, string(filter.Type))
		argNum++
	}
	if filter.From != "" {
		sql += fmt.Sprintf(` AND created_at >= $%d`, argNum)
		args = append(args, filter.From)
		argNum++
	}
	if filter.To != "" {
		sql += fmt.Sprintf(` AND created_at < $%d`, argNum)
		args = append(args, filter.To)
		argNum++
	}
	sql += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		sql += fmt.Sprintf(` LIMIT $%d`, argNum)
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Reference, &t.Type, &t.Amount, &t.Category, &t.SalesOrderID, &t.InvoiceID, &t.BillID, &t.Note, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) UpdateDocumentPending(ctx context.Context, id int64, pending float64, status DocStatus) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE billing_documents SET pending = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		pending, string(status), id)
	return err
}

func (t *txRepository) InsertTransaction(ctx context.Context, entry Transaction) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO transactions (reference, type, amount, category, sales_order_id, invoice_id, bill_id, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		entry.Reference, string(entry.Type), entry.Amount, entry.Category, entry.SalesOrderID, entry.InvoiceID, entry.BillID, entry.Note).Scan(&id)
	return id, err
}

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Kind, &d.Number, &d.CompanyID, &d.SalesOrderID, &d.PurchaseOrderID, &d.Total, &d.Pending, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}
