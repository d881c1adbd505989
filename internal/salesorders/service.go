package salesorders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tradeflow-erp/tradeflow/internal/opportunities"
	"github.com/tradeflow-erp/tradeflow/internal/procurement"
	"github.com/tradeflow-erp/tradeflow/internal/shared"
	"github.com/tradeflow-erp/tradeflow/internal/shipments"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (SalesOrder, error)
	GetByOpportunity(ctx context.Context, opportunityID int64) (SalesOrder, error)
	List(ctx context.Context, filter ListFilter) ([]SalesOrder, int, error)
	Create(ctx context.Context, o SalesOrder) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status, notes string) error
}

// OpportunitiesPort reads the won deal an order fulfills.
type OpportunitiesPort interface {
	Get(ctx context.Context, id int64) (opportunities.Opportunity, error)
}

// ProjectsPort guarantees sourcing exists for a converted opportunity.
type ProjectsPort interface {
	EnsureProjectForOpportunity(ctx context.Context, opportunityID int64) (procurement.Project, error)
}

// InvoicesPort sums what has actually been collected against the order.
type InvoicesPort interface {
	PaidTotalForOrder(ctx context.Context, salesOrderID int64) (float64, error)
}

// ShipmentsPort reads outbound shipments for the order.
type ShipmentsPort interface {
	ListBySalesOrder(ctx context.Context, salesOrderID int64) ([]shipments.Shipment, error)
}

// AuditPort records mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort fences replayed mutation requests by client-supplied key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ListFilter narrows order listings.
type ListFilter struct {
	CompanyID int64
	Status    Status
	Limit     int
	Offset    int
}

// Service owns sales order conversion and closure.
type Service struct {
	repo      RepositoryPort
	opps      OpportunitiesPort
	projects  ProjectsPort
	invoices  InvoicesPort
	shipments ShipmentsPort
	audit     AuditPort
	locker    *shared.MutationLocker
	idem      IdempotencyPort
}

// NewService constructs the sales order service.
func NewService(repo RepositoryPort, opps OpportunitiesPort, projects ProjectsPort, invoices InvoicesPort, ships ShipmentsPort, audit AuditPort, locker *shared.MutationLocker, idem IdempotencyPort) *Service {
	return &Service{repo: repo, opps: opps, projects: projects, invoices: invoices, shipments: ships, audit: audit, locker: locker, idem: idem}
}

// Get returns one sales order.
func (s *Service) Get(ctx context.Context, id int64) (SalesOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]SalesOrder, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = shared.DefaultPerPage
	}
	return s.repo.List(ctx, filter)
}

// ConvertFromOpportunity turns a won opportunity into a sales order. The won
// status is re-checked here no matter what the caller saw. Conversion is
// idempotent: an existing order for the opportunity is returned, and an
// already linked sourcing project is reused rather than duplicated. An
// optional idempotencyKey fences replays the same way.
func (s *Service) ConvertFromOpportunity(ctx context.Context, opportunityID int64, idempotencyKey string) (SalesOrder, error) {
	release, err := s.acquireLock(ctx, shared.EntityLockKey("opportunity", opportunityID))
	if err != nil {
		return SalesOrder{}, err
	}
	defer release()

	o, err := s.opps.Get(ctx, opportunityID)
	if err != nil {
		return SalesOrder{}, err
	}
	if o.Status != opportunities.StatusClosedWon {
		return SalesOrder{}, shared.NewStateError("only a closed-won opportunity can be converted to a sales order")
	}

	if existing, err := s.repo.GetByOpportunity(ctx, opportunityID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return SalesOrder{}, err
	}

	keyHeld := false
	if s.idem != nil && idempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, idempotencyKey, "salesorders"); err != nil && !errors.Is(err, shared.ErrIdempotencyConflict) {
			return SalesOrder{}, err
		} else if err == nil {
			keyHeld = true
		}
	}

	if _, err := s.projects.EnsureProjectForOpportunity(ctx, opportunityID); err != nil {
		s.releaseKey(ctx, keyHeld, idempotencyKey)
		return SalesOrder{}, fmt.Errorf("ensure sourcing project: %w", err)
	}

	order := SalesOrder{
		CompanyID:     o.CompanyID,
		OpportunityID: opportunityID,
		Status:        StatusPending,
		TotalAmount:   o.Quantity * o.TargetPrice,
	}
	id, err := s.repo.Create(ctx, order)
	if err != nil {
		s.releaseKey(ctx, keyHeld, idempotencyKey)
		return SalesOrder{}, fmt.Errorf("create sales order: %w", err)
	}
	order.ID = id
	s.recordAudit(ctx, "ORDER_CONVERT", order.ID, map[string]any{"opportunity_id": opportunityID})
	return order, nil
}

// FulfillmentState is what closure decisions are made on.
type FulfillmentState struct {
	TotalPaid    float64 `json:"total_paid"`
	TotalShipped float64 `json:"total_shipped"`
	FullPaid     bool    `json:"full_paid"`
	FullQuantity bool    `json:"full_quantity"`
}

// Fulfillment computes the order's payment and shipment position.
func (s *Service) Fulfillment(ctx context.Context, order SalesOrder) (FulfillmentState, error) {
	paid, err := s.invoices.PaidTotalForOrder(ctx, order.ID)
	if err != nil {
		return FulfillmentState{}, fmt.Errorf("sum payments: %w", err)
	}
	ships, err := s.shipments.ListBySalesOrder(ctx, order.ID)
	if err != nil {
		return FulfillmentState{}, fmt.Errorf("load shipments: %w", err)
	}
	var shipped float64
	for _, sh := range ships {
		shipped += sh.Quantity
	}

	o, err := s.opps.Get(ctx, order.OpportunityID)
	if err != nil {
		return FulfillmentState{}, err
	}
	return FulfillmentState{
		TotalPaid:    paid,
		TotalShipped: shipped,
		FullPaid:     math.Abs(paid-order.TotalAmount) < paymentTolerance,
		FullQuantity: math.Abs(shipped-o.Quantity) < quantityTolerance,
	}, nil
}

// Transition moves the order along its lifecycle. Closing an order that is
// not fully paid and shipped, or cancelling one with money or goods already
// moved, requires remarks; they persist as fulfillment notes.
func (s *Service) Transition(ctx context.Context, id int64, target Status, remarks string) (SalesOrder, error) {
	release, err := s.acquireLock(ctx, shared.EntityLockKey("sales_order", id))
	if err != nil {
		return SalesOrder{}, err
	}
	defer release()

	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return SalesOrder{}, err
	}
	if !ValidStatus(target) {
		return SalesOrder{}, shared.NewValidationError(fmt.Sprintf("unknown sales order status %q", target))
	}
	if order.Status == target {
		return order, nil
	}

	remarks = strings.TrimSpace(remarks)
	switch target {
	case StatusDelivered, StatusCompleted:
		state, err := s.Fulfillment(ctx, order)
		if err != nil {
			return SalesOrder{}, err
		}
		if !(state.FullPaid && state.FullQuantity) && remarks == "" {
			verr := &shared.ValidationError{}
			if !state.FullPaid {
				verr.Add(fmt.Sprintf("order is not fully paid (%.2f of %.2f); remarks are required", state.TotalPaid, order.TotalAmount))
			}
			if !state.FullQuantity {
				verr.Add("order is not fully shipped; remarks are required")
			}
			return SalesOrder{}, verr
		}
	case StatusCancelled:
		state, err := s.Fulfillment(ctx, order)
		if err != nil {
			return SalesOrder{}, err
		}
		if (state.TotalPaid > 0 || state.TotalShipped > 0) && remarks == "" {
			return SalesOrder{}, shared.NewValidationError("cancelling an order with payments or shipments requires remarks")
		}
	}

	notes := order.FulfillmentNotes
	if remarks != "" {
		notes = remarks
	}
	if err := s.repo.UpdateStatus(ctx, id, target, notes); err != nil {
		return SalesOrder{}, fmt.Errorf("transition sales order: %w", err)
	}
	order.Status = target
	order.FulfillmentNotes = notes
	s.recordAudit(ctx, "ORDER_TRANSITION", id, map[string]any{"to": string(target)})
	return order, nil
}

// releaseKey returns an idempotency key after the fenced action failed, so a
// corrected retry is not mistaken for a replay.
func (s *Service) releaseKey(ctx context.Context, held bool, key string) {
	if !held || s.idem == nil {
		return
	}
	_ = s.idem.Delete(ctx, key)
}

func (s *Service) acquireLock(ctx context.Context, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, shared.ErrLockHeld) {
			return nil, shared.NewStateError("another change to this record is in progress")
		}
		return nil, shared.NewTransientError(err)
	}
	return release, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "sales_order", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
