package companies

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

// Get returns a company by id.
func (r *Repository) Get(ctx context.Context, id int64) (Company, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, type, trust_level, country, note, created_at, updated_at FROM companies WHERE id = $1`, id)
	var c Company
	if err := row.Scan(&c.ID, &c.Name, &c.Type, &c.TrustLevel, &c.Country, &c.Note, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}

// List returns companies matching the filter and the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Company, int, error) {
	countSQL := `SELECT COUNT(*) FROM companies WHERE 1=1`
	dataSQL := `SELECT id, name, type, trust_level, country, note, created_at, updated_at FROM companies WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.Type != "" {
		clause := fmt.Sprintf(` AND type = $%d`, argNum)
		countSQL += clause
		dataSQL += clause
		args = append(args, string(filter.Type))
		argNum++
	}
	if filter.Search != "" {
		clause := fmt.Sprintf(` AND name ILIKE $%d`, argNum)
		countSQL += clause
		dataSQL += clause
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL += fmt.Sprintf(` ORDER BY name ASC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.TrustLevel, &c.Country, &c.Note, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Create inserts a company and returns its id.
func (r *Repository) Create(ctx context.Context, c Company) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO companies (name, type, trust_level, country, note) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		c.Name, string(c.Type), string(c.TrustLevel), c.Country, c.Note).Scan(&id)
	return id, err
}

// Update persists changed fields.
func (r *Repository) Update(ctx context.Context, c Company) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE companies SET name = $1, type = $2, trust_level = $3, country = $4, note = $5, updated_at = NOW() WHERE id = $6`,
		c.Name, string(c.Type), string(c.TrustLevel), c.Country, c.Note, c.ID)
	return err
}

// CountReferences counts downstream records pointing at the company.
func (r *Repository) CountReferences(ctx context.Context, id int64) (References, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM sales_opportunities WHERE company_id = $1),
		(SELECT COUNT(*) FROM project_vendors WHERE vendor_id = $1),
		(SELECT COUNT(*) FROM purchase_orders WHERE vendor_id = $1),
		(SELECT COUNT(*) FROM sales_orders WHERE company_id = $1)`
	var refs References
	err := r.pool.QueryRow(ctx, query, id).Scan(&refs.Opportunities, &refs.Projects, &refs.PurchaseOrders, &refs.SalesOrders)
	return refs, err
}

// Delete removes the company row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	return err
}
