package opportunities

import (
	"context"
	"fmt"

	"github.com/tradeflow-erp/tradeflow/internal/samples"
	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Opportunity, error)
	List(ctx context.Context, filter ListFilter) ([]Opportunity, int, error)
	Create(ctx context.Context, o Opportunity) (int64, error)
	Update(ctx context.Context, o Opportunity) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetProcurementQuantity(ctx context.Context, id int64, qty float64) error
	GetCommodity(ctx context.Context, id int64) (Commodity, error)
	ListCommodities(ctx context.Context) ([]Commodity, error)
	CreateCommodity(ctx context.Context, c Commodity) (int64, error)
}

// SubmissionsPort exposes the sample submissions linked to an opportunity.
// NEGOTIATION and CLOSED_WON entry are gated on them.
type SubmissionsPort interface {
	SubmissionsForOpportunity(ctx context.Context, opportunityID int64) ([]samples.Submission, error)
}

// AuditPort records mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ListFilter narrows opportunity listings.
type ListFilter struct {
	CompanyID int64
	Status    Status
	Search    string
	Limit     int
	Offset    int
}

// Service owns the sales pipeline.
type Service struct {
	repo        RepositoryPort
	submissions SubmissionsPort
	audit       AuditPort
}

// NewService constructs the opportunity service.
func NewService(repo RepositoryPort, submissions SubmissionsPort, audit AuditPort) *Service {
	return &Service{repo: repo, submissions: submissions, audit: audit}
}

// Input carries opportunity fields for create and update.
type Input struct {
	CompanyID   int64
	CommodityID int64
	ProjectID   int64
	Title       string
	Quantity    float64
	TargetPrice float64
	PriceType   PriceType
	Type        Type
	Note        string
}

// Get returns one opportunity.
func (s *Service) Get(ctx context.Context, id int64) (Opportunity, error) {
	return s.repo.Get(ctx, id)
}

// List returns opportunities matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Opportunity, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = shared.DefaultPerPage
	}
	return s.repo.List(ctx, filter)
}

// ListCommodities returns the commodity lookup.
func (s *Service) ListCommodities(ctx context.Context) ([]Commodity, error) {
	return s.repo.ListCommodities(ctx)
}

// CreateCommodity registers a commodity with its processing yield.
func (s *Service) CreateCommodity(ctx context.Context, c Commodity) (Commodity, error) {
	verr := &shared.ValidationError{}
	if c.Name == "" {
		verr.Add("commodity name is required")
	}
	if c.YieldPercentage < 0 || c.YieldPercentage > 100 {
		verr.Add("yield percentage must be between 0 and 100")
	}
	if verr.HasViolations() {
		return Commodity{}, verr
	}
	id, err := s.repo.CreateCommodity(ctx, c)
	if err != nil {
		return Commodity{}, fmt.Errorf("create commodity: %w", err)
	}
	c.ID = id
	return c, nil
}

// Create opens a new opportunity in the OPEN column with a derived
// procurement quantity.
func (s *Service) Create(ctx context.Context, input Input) (Opportunity, error) {
	if err := s.validate(input); err != nil {
		return Opportunity{}, err
	}
	procQty, err := s.deriveProcurementQuantity(ctx, input.Quantity, input.CommodityID)
	if err != nil {
		return Opportunity{}, err
	}
	o := Opportunity{
		CompanyID:           input.CompanyID,
		CommodityID:         input.CommodityID,
		ProjectID:           input.ProjectID,
		Title:               input.Title,
		Quantity:            input.Quantity,
		ProcurementQuantity: procQty,
		TargetPrice:         input.TargetPrice,
		PriceType:           input.PriceType,
		Type:                input.Type,
		Status:              StatusOpen,
		Note:                input.Note,
	}
	id, err := s.repo.Create(ctx, o)
	if err != nil {
		return Opportunity{}, fmt.Errorf("create opportunity: %w", err)
	}
	o.ID = id
	s.recordAudit(ctx, "OPPORTUNITY_CREATE", o.ID, map[string]any{"company_id": o.CompanyID})
	return o, nil
}

// Update rewrites opportunity fields. Changing the quantity or commodity
// rederives the procurement quantity, replacing any manual override until the
// next override lands (last write wins).
func (s *Service) Update(ctx context.Context, id int64, input Input) (Opportunity, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Opportunity{}, err
	}
	if err := s.validate(input); err != nil {
		return Opportunity{}, err
	}

	procQty := existing.ProcurementQuantity
	if input.Quantity != existing.Quantity || input.CommodityID != existing.CommodityID {
		procQty, err = s.deriveProcurementQuantity(ctx, input.Quantity, input.CommodityID)
		if err != nil {
			return Opportunity{}, err
		}
	}

	o := existing
	o.CompanyID = input.CompanyID
	o.CommodityID = input.CommodityID
	o.ProjectID = input.ProjectID
	o.Title = input.Title
	o.Quantity = input.Quantity
	o.ProcurementQuantity = procQty
	o.TargetPrice = input.TargetPrice
	o.PriceType = input.PriceType
	o.Type = input.Type
	o.Note = input.Note
	if err := s.repo.Update(ctx, o); err != nil {
		return Opportunity{}, fmt.Errorf("update opportunity: %w", err)
	}
	return o, nil
}

// OverrideProcurementQuantity records a manual sourcing quantity. The next
// quantity or commodity change rederives it.
func (s *Service) OverrideProcurementQuantity(ctx context.Context, id int64, qty float64) error {
	if qty <= 0 {
		return shared.NewValidationError("procurement quantity must be greater than zero")
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetProcurementQuantity(ctx, id, qty); err != nil {
		return fmt.Errorf("override procurement quantity: %w", err)
	}
	s.recordAudit(ctx, "OPPORTUNITY_PROC_QTY_OVERRIDE", id, map[string]any{"quantity": qty})
	return nil
}

// Transition moves an opportunity to another pipeline column. Entry into
// NEGOTIATION and CLOSED_WON is gated; every unmet close-won condition is
// reported, not just the first.
func (s *Service) Transition(ctx context.Context, id int64, target Status) (Opportunity, error) {
	if !validStatuses[target] {
		return Opportunity{}, shared.NewValidationError(fmt.Sprintf("unknown status %q", target))
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Opportunity{}, err
	}
	if o.Status == target {
		return o, nil
	}

	switch target {
	case StatusNegotiation:
		subs, err := s.submissions.SubmissionsForOpportunity(ctx, id)
		if err != nil {
			return Opportunity{}, fmt.Errorf("load submissions: %w", err)
		}
		if len(subs) == 0 {
			return Opportunity{}, shared.NewValidationError("at least one sample must be submitted before negotiation")
		}
	case StatusClosedWon:
		verr := &shared.ValidationError{}
		if o.Quantity <= 0 {
			verr.Add("quantity must be greater than zero")
		}
		if o.TargetPrice <= 0 {
			verr.Add("target price must be greater than zero")
		}
		subs, err := s.submissions.SubmissionsForOpportunity(ctx, id)
		if err != nil {
			return Opportunity{}, fmt.Errorf("load submissions: %w", err)
		}
		if !hasClientApproved(subs) {
			verr.Add("at least one submitted sample must be client approved")
		}
		if verr.HasViolations() {
			return Opportunity{}, verr
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, target); err != nil {
		return Opportunity{}, fmt.Errorf("transition opportunity: %w", err)
	}
	o.Status = target
	s.recordAudit(ctx, "OPPORTUNITY_TRANSITION", id, map[string]any{"to": string(target)})
	return o, nil
}

func hasClientApproved(subs []samples.Submission) bool {
	for _, sub := range subs {
		if sub.Status == samples.SubmissionClientApproved {
			return true
		}
	}
	return false
}

func (s *Service) deriveProcurementQuantity(ctx context.Context, quantity float64, commodityID int64) (float64, error) {
	yield := 100.0
	if commodityID != 0 {
		commodity, err := s.repo.GetCommodity(ctx, commodityID)
		if err != nil {
			return 0, fmt.Errorf("load commodity: %w", err)
		}
		yield = commodity.YieldPercentage
	}
	return ProcurementQuantity(quantity, yield), nil
}

func (s *Service) validate(input Input) error {
	verr := &shared.ValidationError{}
	if input.CompanyID == 0 {
		verr.Add("company is required")
	}
	if input.Title == "" {
		verr.Add("title is required")
	}
	if input.Quantity < 0 {
		verr.Add("quantity cannot be negative")
	}
	if input.TargetPrice < 0 {
		verr.Add("target price cannot be negative")
	}
	if input.Type != "" && input.Type != TypeOneTime && input.Type != TypeRecurring {
		verr.Add("type must be ONE_TIME or RECURRING")
	}
	if verr.HasViolations() {
		return verr
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "opportunity", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
