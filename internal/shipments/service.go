package shipments

import (
	"context"
	"fmt"
	"time"

	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Shipment, error)
	ListByPurchaseOrder(ctx context.Context, poID int64) ([]Shipment, error)
	ListBySalesOrder(ctx context.Context, soID int64) ([]Shipment, error)
	Create(ctx context.Context, s Shipment) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

// ReceiptPort reports whether a purchase order already took goods receipt.
type ReceiptPort interface {
	GRNExists(ctx context.Context, poID int64) (bool, error)
}

// AuditPort records mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns shipment records.
type Service struct {
	repo     RepositoryPort
	receipts ReceiptPort
	audit    AuditPort
}

// NewService constructs the shipment service.
func NewService(repo RepositoryPort, receipts ReceiptPort, audit AuditPort) *Service {
	return &Service{repo: repo, receipts: receipts, audit: audit}
}

// Input carries shipment fields.
type Input struct {
	PurchaseOrderID int64
	SalesOrderID    int64
	Carrier         string
	TrackingNumber  string
	Quantity        float64
	ETA             time.Time
}

// Create records a shipment against exactly one parent order. A purchase
// order with a goods received note takes no further shipments.
func (s *Service) Create(ctx context.Context, input Input) (Shipment, error) {
	verr := &shared.ValidationError{}
	if (input.PurchaseOrderID == 0) == (input.SalesOrderID == 0) {
		verr.Add("exactly one of purchase order or sales order must be set")
	}
	if input.Quantity <= 0 {
		verr.Add("quantity must be greater than zero")
	}
	if verr.HasViolations() {
		return Shipment{}, verr
	}

	if input.PurchaseOrderID != 0 {
		received, err := s.receipts.GRNExists(ctx, input.PurchaseOrderID)
		if err != nil {
			return Shipment{}, fmt.Errorf("check goods receipt: %w", err)
		}
		if received {
			return Shipment{}, shared.NewStateError("purchase order already has a goods received note")
		}
	}

	sh := Shipment{
		PurchaseOrderID: input.PurchaseOrderID,
		SalesOrderID:    input.SalesOrderID,
		Carrier:         input.Carrier,
		TrackingNumber:  input.TrackingNumber,
		Quantity:        input.Quantity,
		ETA:             input.ETA,
		Status:          StatusPending,
	}
	id, err := s.repo.Create(ctx, sh)
	if err != nil {
		return Shipment{}, fmt.Errorf("create shipment: %w", err)
	}
	sh.ID = id
	s.recordAudit(ctx, "SHIPMENT_CREATE", sh.ID, map[string]any{"po_id": sh.PurchaseOrderID, "so_id": sh.SalesOrderID, "quantity": sh.Quantity})
	return sh, nil
}

// Get returns one shipment.
func (s *Service) Get(ctx context.Context, id int64) (Shipment, error) {
	return s.repo.Get(ctx, id)
}

// ListBySalesOrder returns outbound shipments for a sales order.
func (s *Service) ListBySalesOrder(ctx context.Context, soID int64) ([]Shipment, error) {
	return s.repo.ListBySalesOrder(ctx, soID)
}

// ListByPurchaseOrder returns inbound shipments for a purchase order.
func (s *Service) ListByPurchaseOrder(ctx context.Context, poID int64) ([]Shipment, error) {
	return s.repo.ListByPurchaseOrder(ctx, poID)
}

// UpdateStatus moves the shipment state.
func (s *Service) UpdateStatus(ctx context.Context, id int64, target Status) error {
	if !validStatuses[target] {
		return shared.NewValidationError(fmt.Sprintf("unknown shipment status %q", target))
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, target); err != nil {
		return fmt.Errorf("update shipment status: %w", err)
	}
	s.recordAudit(ctx, "SHIPMENT_STATUS", id, map[string]any{"to": string(target)})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "shipment", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
