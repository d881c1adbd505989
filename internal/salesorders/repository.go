package salesorders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, company_id, opportunity_id, number, status, total_amount, fulfillment_notes, created_at, updated_at`

// Get returns a sales order by id.
func (r *Repository) Get(ctx context.Context, id int64) (SalesOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE id = $1`, id)
	return scanOrderOrNotFound(row)
}

// GetByOpportunity returns the order converted from an opportunity.
func (r *Repository) GetByOpportunity(ctx context.Context, opportunityID int64) (SalesOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE opportunity_id = $1`, opportunityID)
	return scanOrderOrNotFound(row)
}

// List returns orders matching the filter and the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]SalesOrder, int, error) {
	countSQL := `SELECT COUNT(*) FROM sales_orders WHERE 1=1`
	dataSQL := `SELECT ` + orderColumns + ` FROM sales_orders WHERE 1=1`
	args := []any{}
	argNum := 1

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

	dataSQL += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []SalesOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Create inserts a sales order and returns its id.
func (r *Repository) Create(ctx context.Context, o SalesOrder) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sales_orders (company_id, opportunity_id, number, status, total_amount, fulfillment_notes)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		o.CompanyID, o.OpportunityID, o.Number, string(o.Status), o.TotalAmount, o.FulfillmentNotes).Scan(&id)
	return id, err
}

// UpdateStatus moves the order and rewrites fulfillment notes together.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status, notes string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sales_orders SET status = $1, fulfillment_notes = $2, updated_at = NOW() WHERE id = $3`,
		string(status), notes, id)
	return err
}

func scanOrder(row pgx.Row) (SalesOrder, error) {
	var o SalesOrder
	err := row.Scan(&o.ID, &o.CompanyID, &o.OpportunityID, &o.Number, &o.Status, &o.TotalAmount, &o.FulfillmentNotes, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanOrderOrNotFound(row pgx.Row) (SalesOrder, error) {
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SalesOrder{}, ErrNotFound
		}
		return SalesOrder{}, err
	}
	return o, nil
}
