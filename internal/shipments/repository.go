package shipments

import (
	"context"
	"errors"

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

const shipmentColumns = `id, purchase_order_id, sales_order_id, carrier, tracking_number, quantity, eta, status, created_at, updated_at`

// Get returns a shipment by id.
func (r *Repository) Get(ctx context.Context, id int64) (Shipment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id)
	sh, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, ErrNotFound
		}
		return Shipment{}, err
	}
	return sh, nil
}

// ListByPurchaseOrder returns inbound shipments for the purchase order.
func (r *Repository) ListByPurchaseOrder(ctx context.Context, poID int64) ([]Shipment, error) {
	return r.list(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE purchase_order_id = $1 ORDER BY id`, poID)
}

// ListBySalesOrder returns outbound shipments for the sales order.
func (r *Repository) ListBySalesOrder(ctx context.Context, soID int64) ([]Shipment, error) {
	return r.list(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE sales_order_id = $1 ORDER BY id`, soID)
}

func (r *Repository) list(ctx context.Context, sql string, arg any) ([]Shipment, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sh)
	}
	return items, rows.Err()
}

// Create inserts a shipment and returns its id.
func (r *Repository) Create(ctx context.Context, s Shipment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO shipments (purchase_order_id, sales_order_id, carrier, tracking_number, quantity, eta, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		s.PurchaseOrderID, s.SalesOrderID, s.Carrier, s.TrackingNumber, s.Quantity, s.ETA, string(s.Status)).Scan(&id)
	return id, err
}

// UpdateStatus moves the shipment state.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.pool.Exec(ctx, `UPDATE shipments SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	return err
}

func scanShipment(row pgx.Row) (Shipment, error) {
	var s Shipment
	err := row.Scan(&s.ID, &s.PurchaseOrderID, &s.SalesOrderID, &s.Carrier, &s.TrackingNumber, &s.Quantity, &s.ETA, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
