package opportunities

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

const opportunityColumns = `id, company_id, commodity_id, project_id, title, quantity, procurement_quantity, target_price, price_type, type, status, note, created_at, updated_at`

// Get returns an opportunity by id.
func (r *Repository) Get(ctx context.Context, id int64) (Opportunity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+opportunityColumns+` FROM sales_opportunities WHERE id = $1`, id)
	o, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Opportunity{}, ErrNotFound
		}
		return Opportunity{}, err
	}
	return o, nil
}

// List returns opportunities matching the filter and the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Opportunity, int, error) {
	countSQL := `SELECT COUNT(*) FROM sales_opportunities WHERE 1=1`
	dataSQL := `SELECT ` + opportunityColumns + ` FROM sales_opportunities WHERE 1=1`
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
	if filter.Search != "" {
		clause := fmt.Sprintf(` AND title ILIKE $%d`, argNum)
		countSQL += clause
		dataSQL += clause
		args = append(args, "%"+filter.Search+"%")
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

	var items []Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
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

// ListByProject returns opportunities linked to a procurement project.
func (r *Repository) ListByProject(ctx context.Context, projectID int64) ([]Opportunity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+opportunityColumns+` FROM sales_opportunities WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// Create inserts an opportunity and returns its id.
func (r *Repository) Create(ctx context.Context, o Opportunity) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sales_opportunities (company_id, commodity_id, project_id, title, quantity, procurement_quantity, target_price, price_type, type, status, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		o.CompanyID, o.CommodityID, o.ProjectID, o.Title, o.Quantity, o.ProcurementQuantity, o.TargetPrice,
		string(o.PriceType), string(o.Type), string(o.Status), o.Note).Scan(&id)
	return id, err
}

// Update persists changed fields.
func (r *Repository) Update(ctx context.Context, o Opportunity) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sales_opportunities SET company_id = $1, commodity_id = $2, project_id = $3, title = $4, quantity = $5,
		 procurement_quantity = $6, target_price = $7, price_type = $8, type = $9, note = $10, updated_at = NOW() WHERE id = $11`,
		o.CompanyID, o.CommodityID, o.ProjectID, o.Title, o.Quantity, o.ProcurementQuantity, o.TargetPrice,
		string(o.PriceType), string(o.Type), o.Note, o.ID)
	return err
}

// UpdateStatus moves the opportunity to another pipeline column.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.pool.Exec(ctx, `UPDATE sales_opportunities SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	return err
}

// SetProcurementQuantity records a manual sourcing quantity.
func (r *Repository) SetProcurementQuantity(ctx context.Context, id int64, qty float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE sales_opportunities SET procurement_quantity = $1, updated_at = NOW() WHERE id = $2`, qty, id)
	return err
}

// SetProject links the opportunity to a procurement project.
func (r *Repository) SetProject(ctx context.Context, id, projectID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE sales_opportunities SET project_id = $1, updated_at = NOW() WHERE id = $2`, projectID, id)
	return err
}

// GetCommodity returns a commodity by id.
func (r *Repository) GetCommodity(ctx context.Context, id int64) (Commodity, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, yield_percentage, created_at, updated_at FROM commodities WHERE id = $1`, id)
	var c Commodity
	if err := row.Scan(&c.ID, &c.Name, &c.YieldPercentage, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Commodity{}, ErrNotFound
		}
		return Commodity{}, err
	}
	return c, nil
}

// ListCommodities returns all commodities.
func (r *Repository) ListCommodities(ctx context.Context) ([]Commodity, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, yield_percentage, created_at, updated_at FROM commodities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Commodity
	for rows.Next() {
		var c Commodity
		if err := rows.Scan(&c.ID, &c.Name, &c.YieldPercentage, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// CreateCommodity inserts a commodity and returns its id.
func (r *Repository) CreateCommodity(ctx context.Context, c Commodity) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO commodities (name, yield_percentage) VALUES ($1, $2) RETURNING id`,
		c.Name, c.YieldPercentage).Scan(&id)
	return id, err
}

func scanOpportunity(row pgx.Row) (Opportunity, error) {
	var o Opportunity
	err := row.Scan(&o.ID, &o.CompanyID, &o.CommodityID, &o.ProjectID, &o.Title, &o.Quantity, &o.ProcurementQuantity,
		&o.TargetPrice, &o.PriceType, &o.Type, &o.Status, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
