package procurement

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

// GetProject returns a project by id.
func (r *Repository) GetProject(ctx context.Context, id int64) (Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, type, status, note, created_at, updated_at FROM procurement_projects WHERE id = $1`, id)
	var p Project
	if err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Status, &p.Note, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	return p, nil
}

// ListProjects returns projects matching the filter and the total count.
func (r *Repository) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, int, error) {
	countSQL := `SELECT COUNT(*) FROM procurement_projects WHERE 1=1`
	dataSQL := `SELECT id, name, type, status, note, created_at, updated_at FROM procurement_projects WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.Type != "" {
		clause := fmt.Sprintf(` AND type = $%d`, argNum)
		countSQL += clause
		dataSQL += clause
		args = append(args, string(filter.Type))
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

	dataSQL += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.Status, &p.Note, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CreateProject inserts a project and returns its id.
func (r *Repository) CreateProject(ctx context.Context, p Project) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO procurement_projects (name, type, status, note) VALUES ($1, $2, $3, $4) RETURNING id`,
		p.Name, string(p.Type), string(p.Status), p.Note).Scan(&id)
	return id, err
}

// UpdateProjectStatus moves the project lifecycle state.
func (r *Repository) UpdateProjectStatus(ctx context.Context, id int64, status ProjectStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE procurement_projects SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	return err
}

// AddVendor puts a vendor on the project shortlist. Re-adding is a no-op.
func (r *Repository) AddVendor(ctx context.Context, projectID, vendorID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO project_vendors (project_id, vendor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		projectID, vendorID)
	return err
}

// ListVendors returns shortlisted vendor ids.
func (r *Repository) ListVendors(ctx context.Context, projectID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT vendor_id FROM project_vendors WHERE project_id = $1 ORDER BY vendor_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const poColumns = `id, project_id, vendor_id, sample_id, number, quantity, total_amount, status, pdf_url, created_at, updated_at`

// GetPO returns a purchase order by id.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, id)
	po, err := scanPO(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

// ListPOsByProject returns every purchase order on the project.
func (r *Repository) ListPOsByProject(ctx context.Context, projectID int64) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, po)
	}
	return items, rows.Err()
}

// CreatePO inserts a purchase order and returns its id.
func (r *Repository) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO purchase_orders (project_id, vendor_id, sample_id, number, quantity, total_amount, status, pdf_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		po.ProjectID, po.VendorID, po.SampleID, po.Number, po.Quantity, po.TotalAmount, string(po.Status), po.PDFURL).Scan(&id)
	return id, err
}

// UpdatePOStatus moves the purchase order lifecycle state.
func (r *Repository) UpdatePOStatus(ctx context.Context, id int64, status POStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE purchase_orders SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	return err
}

// SetPOPDF stores the signed document URL.
func (r *Repository) SetPOPDF(ctx context.Context, id int64, url string) error {
	_, err := r.pool.Exec(ctx, `UPDATE purchase_orders SET pdf_url = $1, updated_at = NOW() WHERE id = $2`, url, id)
	return err
}

// GetGRNByPO returns the goods received note for a purchase order.
func (r *Repository) GetGRNByPO(ctx context.Context, poID int64) (GRN, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, purchase_order_id, total_received_quantity, rejected_quantity, received_by, note, created_at
		 FROM goods_received_notes WHERE purchase_order_id = $1`, poID)
	var g GRN
	if err := row.Scan(&g.ID, &g.PurchaseOrderID, &g.TotalReceivedQuantity, &g.RejectedQuantity, &g.ReceivedBy, &g.Note, &g.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GRN{}, ErrNotFound
		}
		return GRN{}, err
	}
	return g, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) CreateGRN(ctx context.Context, grn GRN) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO goods_received_notes (purchase_order_id, total_received_quantity, rejected_quantity, received_by, note)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		grn.PurchaseOrderID, grn.TotalReceivedQuantity, grn.RejectedQuantity, grn.ReceivedBy, grn.Note).Scan(&id)
	return id, err
}

func (t *txRepository) UpdatePOStatus(ctx context.Context, id int64, status POStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	return err
}

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.ProjectID, &po.VendorID, &po.SampleID, &po.Number, &po.Quantity, &po.TotalAmount, &po.Status, &po.PDFURL, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}
