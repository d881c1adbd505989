package procurement

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/tradeflow-erp/tradeflow/internal/opportunities"
	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProject(ctx context.Context, id int64) (Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, int, error)
	CreateProject(ctx context.Context, p Project) (int64, error)
	UpdateProjectStatus(ctx context.Context, id int64, status ProjectStatus) error
	AddVendor(ctx context.Context, projectID, vendorID int64) error
	ListVendors(ctx context.Context, projectID int64) ([]int64, error)
	GetPO(ctx context.Context, id int64) (PurchaseOrder, error)
	ListPOsByProject(ctx context.Context, projectID int64) ([]PurchaseOrder, error)
	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	UpdatePOStatus(ctx context.Context, id int64, status POStatus) error
	SetPOPDF(ctx context.Context, id int64, url string) error
	GetGRNByPO(ctx context.Context, poID int64) (GRN, error)
}

// TxRepository exposes transactional operations. Goods receipt and the PO
// status flip must land together.
type TxRepository interface {
	CreateGRN(ctx context.Context, grn GRN) (int64, error)
	UpdatePOStatus(ctx context.Context, id int64, status POStatus) error
}

// OpportunitiesPort reads linked sales demand and maintains the
// opportunity-to-project link.
type OpportunitiesPort interface {
	Get(ctx context.Context, id int64) (opportunities.Opportunity, error)
	ListByProject(ctx context.Context, projectID int64) ([]opportunities.Opportunity, error)
	SetProject(ctx context.Context, id, projectID int64) error
}

// AuditPort records mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Type   ProjectType
	Status ProjectStatus
	Search string
	Limit  int
	Offset int
}

// Service owns sourcing projects, purchase orders, and goods receipt.
type Service struct {
	repo  RepositoryPort
	opps  OpportunitiesPort
	audit AuditPort

	balanceGroup singleflight.Group
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, opps OpportunitiesPort, audit AuditPort) *Service {
	return &Service{repo: repo, opps: opps, audit: audit}
}

// ProjectDetail bundles a project with its live demand/supply position.
type ProjectDetail struct {
	Project Project `json:"project"`
	Balance Balance `json:"balance"`
}

// CreateProject opens a sourcing project.
func (s *Service) CreateProject(ctx context.Context, name string, pType ProjectType, note string) (Project, error) {
	verr := &shared.ValidationError{}
	if name == "" {
		verr.Add("project name is required")
	}
	if pType != ProjectTypeProject && pType != ProjectTypeSample {
		verr.Add("project type must be PROJECT or SAMPLE")
	}
	if verr.HasViolations() {
		return Project{}, verr
	}
	p := Project{Name: name, Type: pType, Status: ProjectSourcing, Note: note}
	id, err := s.repo.CreateProject(ctx, p)
	if err != nil {
		return Project{}, fmt.Errorf("create project: %w", err)
	}
	p.ID = id
	s.recordAudit(ctx, "PROJECT_CREATE", "project", p.ID, map[string]any{"type": string(pType)})
	return p, nil
}

// GetProject returns a project with its recomputed balance.
func (s *Service) GetProject(ctx context.Context, id int64) (ProjectDetail, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return ProjectDetail{}, err
	}
	balance, err := s.ProjectBalance(ctx, id)
	if err != nil {
		return ProjectDetail{}, err
	}
	return ProjectDetail{Project: p, Balance: balance}, nil
}

// ListProjects returns projects matching the filter.
func (s *Service) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = shared.DefaultPerPage
	}
	return s.repo.ListProjects(ctx, filter)
}

// TransitionProject moves the project to another lifecycle state.
func (s *Service) TransitionProject(ctx context.Context, id int64, target ProjectStatus) error {
	switch target {
	case ProjectSourcing, ProjectCompleted, ProjectCancelled:
	default:
		return shared.NewValidationError(fmt.Sprintf("unknown project status %q", target))
	}
	if _, err := s.repo.GetProject(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateProjectStatus(ctx, id, target); err != nil {
		return fmt.Errorf("transition project: %w", err)
	}
	s.recordAudit(ctx, "PROJECT_TRANSITION", "project", id, map[string]any{"to": string(target)})
	return nil
}

// AddVendor puts a vendor on the project shortlist.
func (s *Service) AddVendor(ctx context.Context, projectID, vendorID int64) error {
	if vendorID == 0 {
		return shared.NewValidationError("vendor is required")
	}
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return err
	}
	return s.repo.AddVendor(ctx, projectID, vendorID)
}

// LinkOpportunity attaches sales demand to the project. Sample-only projects
// never carry opportunities.
func (s *Service) LinkOpportunity(ctx context.Context, projectID, opportunityID int64) error {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.Type == ProjectTypeSample {
		return shared.NewStateError("a sample project cannot carry opportunities")
	}
	if _, err := s.opps.Get(ctx, opportunityID); err != nil {
		return err
	}
	if err := s.opps.SetProject(ctx, opportunityID, projectID); err != nil {
		return fmt.Errorf("link opportunity: %w", err)
	}
	s.recordAudit(ctx, "PROJECT_LINK_OPPORTUNITY", "project", projectID, map[string]any{"opportunity_id": opportunityID})
	return nil
}

// EnsureProjectForOpportunity returns the opportunity's linked project,
// creating and linking a PROJECT-type one only when none exists. Order
// conversion calls this; a second conversion never duplicates the project.
func (s *Service) EnsureProjectForOpportunity(ctx context.Context, opportunityID int64) (Project, error) {
	o, err := s.opps.Get(ctx, opportunityID)
	if err != nil {
		return Project{}, err
	}
	if o.ProjectID != 0 {
		return s.repo.GetProject(ctx, o.ProjectID)
	}
	p, err := s.CreateProject(ctx, fmt.Sprintf("Sourcing for %s", o.Title), ProjectTypeProject, "")
	if err != nil {
		return Project{}, err
	}
	if err := s.opps.SetProject(ctx, opportunityID, p.ID); err != nil {
		return Project{}, fmt.Errorf("link opportunity to new project: %w", err)
	}
	return p, nil
}

// ProjectBalance recomputes demand against procurement. Concurrent reads of
// the same project collapse into one computation.
func (s *Service) ProjectBalance(ctx context.Context, projectID int64) (Balance, error) {
	v, err, _ := s.balanceGroup.Do(fmt.Sprintf("%d", projectID), func() (any, error) {
		return s.computeProjectBalance(ctx, projectID)
	})
	if err != nil {
		return Balance{}, err
	}
	return v.(Balance), nil
}

func (s *Service) computeProjectBalance(ctx context.Context, projectID int64) (Balance, error) {
	linked, err := s.opps.ListByProject(ctx, projectID)
	if err != nil {
		return Balance{}, fmt.Errorf("load linked opportunities: %w", err)
	}
	var demand float64
	for _, o := range linked {
		if o.Status != opportunities.StatusOpen && o.Status != opportunities.StatusClosedWon {
			continue
		}
		switch {
		case o.ProcurementQuantity > 0:
			demand += o.ProcurementQuantity
		case o.Quantity > 0:
			demand += o.Quantity
		}
	}

	pos, err := s.repo.ListPOsByProject(ctx, projectID)
	if err != nil {
		return Balance{}, fmt.Errorf("load purchase orders: %w", err)
	}
	var procured float64
	for _, po := range pos {
		if po.Status == POStatusCancelled {
			continue
		}
		procured += po.Quantity
	}
	return computeBalance(demand, procured), nil
}

// POInput carries purchase order fields.
type POInput struct {
	ProjectID   int64
	VendorID    int64
	SampleID    int64
	Number      string
	Quantity    float64
	TotalAmount float64
}

// SurplusWarning tells the buyer the proposed order overshoots demand. It
// never blocks the order.
const SurplusWarning = "this purchase order exceeds the remaining demand for the project"

// CreatePO places a purchase order on a sourcing project. The returned
// warning is non-empty when the prospective balance goes into surplus.
func (s *Service) CreatePO(ctx context.Context, input POInput) (PurchaseOrder, string, error) {
	verr := &shared.ValidationError{}
	if input.VendorID == 0 {
		verr.Add("vendor is required")
	}
	if input.Quantity <= 0 {
		verr.Add("quantity must be greater than zero")
	}
	if input.TotalAmount < 0 {
		verr.Add("total amount cannot be negative")
	}
	if verr.HasViolations() {
		return PurchaseOrder{}, "", verr
	}

	p, err := s.repo.GetProject(ctx, input.ProjectID)
	if err != nil {
		return PurchaseOrder{}, "", err
	}
	if p.Type == ProjectTypeSample {
		return PurchaseOrder{}, "", shared.NewStateError("a sample project cannot carry purchase orders")
	}
	if p.Status == ProjectCancelled {
		return PurchaseOrder{}, "", shared.NewStateError("project is cancelled")
	}

	balance, err := s.computeProjectBalance(ctx, input.ProjectID)
	if err != nil {
		return PurchaseOrder{}, "", err
	}
	warning := ""
	if balance.TotalDemand-(balance.TotalProcured+input.Quantity) < -balanceTolerance {
		warning = SurplusWarning
	}

	po := PurchaseOrder{
		ProjectID:   input.ProjectID,
		VendorID:    input.VendorID,
		SampleID:    input.SampleID,
		Number:      input.Number,
		Quantity:    input.Quantity,
		TotalAmount: input.TotalAmount,
		Status:      POStatusDraft,
	}
	id, err := s.repo.CreatePO(ctx, po)
	if err != nil {
		return PurchaseOrder{}, "", fmt.Errorf("create purchase order: %w", err)
	}
	po.ID = id
	s.recordAudit(ctx, "PO_CREATE", "purchase_order", po.ID, map[string]any{"project_id": po.ProjectID, "quantity": po.Quantity})
	return po, warning, nil
}

// GetPO returns one purchase order.
func (s *Service) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetPO(ctx, id)
}

// TransitionPO moves a purchase order along its lifecycle. A PO with a goods
// received note is frozen.
func (s *Service) TransitionPO(ctx context.Context, id int64, target POStatus) error {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return err
	}
	received, err := s.GRNExists(ctx, id)
	if err != nil {
		return err
	}
	if received {
		return shared.NewStateError("purchase order already has a goods received note")
	}
	if !CanTransitionPO(po.Status, target) {
		return shared.NewStateError(fmt.Sprintf("purchase order cannot move from %s to %s", po.Status, target))
	}
	if err := s.repo.UpdatePOStatus(ctx, id, target); err != nil {
		return fmt.Errorf("transition purchase order: %w", err)
	}
	s.recordAudit(ctx, "PO_TRANSITION", "purchase_order", id, map[string]any{"from": string(po.Status), "to": string(target)})
	return nil
}

// AttachPDF stores the signed order document URL. The URL is opaque.
func (s *Service) AttachPDF(ctx context.Context, poID int64, url string) error {
	if url == "" {
		return shared.NewValidationError("document URL is required")
	}
	if _, err := s.repo.GetPO(ctx, poID); err != nil {
		return err
	}
	return s.repo.SetPOPDF(ctx, poID, url)
}

// GRNInput carries goods receipt fields.
type GRNInput struct {
	PurchaseOrderID       int64
	TotalReceivedQuantity float64
	RejectedQuantity      float64
	ReceivedBy            string
	Note                  string
}

// CreateGRN records goods receipt, closing out the purchase order. The GRN
// insert and the PO flip to RECEIVED share one transaction.
func (s *Service) CreateGRN(ctx context.Context, input GRNInput) (GRN, error) {
	verr := &shared.ValidationError{}
	if input.TotalReceivedQuantity <= 0 {
		verr.Add("received quantity must be greater than zero")
	}
	if input.RejectedQuantity < 0 {
		verr.Add("rejected quantity cannot be negative")
	}
	if input.RejectedQuantity > input.TotalReceivedQuantity {
		verr.Add("Rejected quantity cannot exceed received quantity")
	}
	if input.ReceivedBy == "" {
		verr.Add("received by is required")
	}
	if verr.HasViolations() {
		return GRN{}, verr
	}

	po, err := s.repo.GetPO(ctx, input.PurchaseOrderID)
	if err != nil {
		return GRN{}, err
	}
	if po.Status == POStatusCancelled {
		return GRN{}, shared.NewStateError("purchase order is cancelled")
	}
	if exists, err := s.GRNExists(ctx, po.ID); err != nil {
		return GRN{}, err
	} else if exists {
		return GRN{}, shared.NewStateError("purchase order already has a goods received note")
	}

	grn := GRN{
		PurchaseOrderID:       input.PurchaseOrderID,
		TotalReceivedQuantity: input.TotalReceivedQuantity,
		RejectedQuantity:      input.RejectedQuantity,
		ReceivedBy:            input.ReceivedBy,
		Note:                  input.Note,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateGRN(ctx, grn)
		if err != nil {
			return err
		}
		grn.ID = id
		return tx.UpdatePOStatus(ctx, po.ID, POStatusReceived)
	})
	if err != nil {
		return GRN{}, fmt.Errorf("create goods received note: %w", err)
	}
	s.recordAudit(ctx, "GRN_CREATE", "purchase_order", po.ID, map[string]any{
		"received": grn.TotalReceivedQuantity,
		"rejected": grn.RejectedQuantity,
		"accepted": grn.AcceptedQuantity(),
	})
	return grn, nil
}

// GRNExists reports whether goods were already received for the PO. Shipments
// against a received PO are refused.
func (s *Service) GRNExists(ctx context.Context, poID int64) (bool, error) {
	_, err := s.repo.GetGRNByPO(ctx, poID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: entity, EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
