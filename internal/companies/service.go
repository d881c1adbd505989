package companies

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Company, error)
	List(ctx context.Context, filter ListFilter) ([]Company, int, error)
	Create(ctx context.Context, c Company) (int64, error)
	Update(ctx context.Context, c Company) error
	CountReferences(ctx context.Context, id int64) (References, error)
	Delete(ctx context.Context, id int64) error
}

// AuditPort records mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ListFilter narrows company listings.
type ListFilter struct {
	Type   CompanyType
	Search string
	Limit  int
	Offset int
}

// Service owns company master data rules.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs the company service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create validates and persists a new company.
func (s *Service) Create(ctx context.Context, c Company) (Company, error) {
	if err := validate(c); err != nil {
		return Company{}, err
	}
	if c.TrustLevel == "" {
		c.TrustLevel = TrustUnrated
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return Company{}, fmt.Errorf("companies: create: %w", err)
	}
	c.ID = id
	s.recordAudit(ctx, "COMPANY_CREATE", id, map[string]any{"name": c.Name, "type": string(c.Type)})
	return c, nil
}

// Update validates and persists changes to an existing company.
func (s *Service) Update(ctx context.Context, c Company) error {
	if _, err := s.repo.Get(ctx, c.ID); err != nil {
		return err
	}
	if err := validate(c); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return fmt.Errorf("companies: update: %w", err)
	}
	s.recordAudit(ctx, "COMPANY_UPDATE", c.ID, map[string]any{"name": c.Name})
	return nil
}

// Delete removes a company unless downstream records still reference it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	refs, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return fmt.Errorf("companies: count references: %w", err)
	}
	if refs.Total() > 0 {
		return shared.NewIntegrityError(fmt.Sprintf(
			"company is still referenced by %d opportunities, %d projects, %d purchase orders, %d sales orders",
			refs.Opportunities, refs.Projects, refs.PurchaseOrders, refs.SalesOrders))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("companies: delete: %w", err)
	}
	s.recordAudit(ctx, "COMPANY_DELETE", id, nil)
	return nil
}

// Get returns one company.
func (s *Service) Get(ctx context.Context, id int64) (Company, error) {
	return s.repo.Get(ctx, id)
}

// List returns companies matching the filter plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Company, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = shared.DefaultPerPage
	}
	return s.repo.List(ctx, filter)
}

func validate(c Company) error {
	verr := &shared.ValidationError{}
	if strings.TrimSpace(c.Name) == "" {
		verr.Add("company name is required")
	}
	if !validType(c.Type) {
		verr.Add("company type must be one of PROSPECT, CLIENT, VENDOR, PARTNER")
	}
	if c.TrustLevel != "" && !validTrustLevel(c.TrustLevel) {
		verr.Add("trust level must be one of UNRATED, LOW, MEDIUM, HIGH, VERIFIED")
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
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "company", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
