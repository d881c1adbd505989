package procurement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeflow-erp/tradeflow/internal/opportunities"
	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

type memoryProcRepo struct {
	projects   map[int64]Project
	vendors    map[int64][]int64
	pos        map[int64]PurchaseOrder
	grns       map[int64]GRN // keyed by PO id
	nextID     int64
	lastFilter ProjectFilter
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{
		projects: make(map[int64]Project),
		vendors:  make(map[int64][]int64),
		pos:      make(map[int64]PurchaseOrder),
		grns:     make(map[int64]GRN),
	}
}

func (r *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryProcRepo) GetProject(ctx context.Context, id int64) (Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryProcRepo) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, int, error) {
	r.lastFilter = filter
	var items []Project
	for _, p := range r.projects {
		items = append(items, p)
	}
	return items, len(items), nil
}

func (r *memoryProcRepo) CreateProject(ctx context.Context, p Project) (int64, error) {
	r.nextID++
	p.ID = r.nextID
	r.projects[p.ID] = p
	return p.ID, nil
}

func (r *memoryProcRepo) UpdateProjectStatus(ctx context.Context, id int64, status ProjectStatus) error {
	p := r.projects[id]
	p.Status = status
	r.projects[id] = p
	return nil
}

func (r *memoryProcRepo) AddVendor(ctx context.Context, projectID, vendorID int64) error {
	r.vendors[projectID] = append(r.vendors[projectID], vendorID)
	return nil
}

func (r *memoryProcRepo) ListVendors(ctx context.Context, projectID int64) ([]int64, error) {
	return r.vendors[projectID], nil
}

func (r *memoryProcRepo) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := r.pos[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, nil
}

func (r *memoryProcRepo) ListPOsByProject(ctx context.Context, projectID int64) ([]PurchaseOrder, error) {
	var items []PurchaseOrder
	for _, po := range r.pos {
		if po.ProjectID == projectID {
			items = append(items, po)
		}
	}
	return items, nil
}

func (r *memoryProcRepo) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	r.nextID++
	po.ID = r.nextID
	r.pos[po.ID] = po
	return po.ID, nil
}

func (r *memoryProcRepo) UpdatePOStatus(ctx context.Context, id int64, status POStatus) error {
	po := r.pos[id]
	po.Status = status
	r.pos[id] = po
	return nil
}

func (r *memoryProcRepo) SetPOPDF(ctx context.Context, id int64, url string) error {
	po := r.pos[id]
	po.PDFURL = url
	r.pos[id] = po
	return nil
}

func (r *memoryProcRepo) GetGRNByPO(ctx context.Context, poID int64) (GRN, error) {
	g, ok := r.grns[poID]
	if !ok {
		return GRN{}, ErrNotFound
	}
	return g, nil
}

func (r *memoryProcRepo) CreateGRN(ctx context.Context, grn GRN) (int64, error) {
	r.nextID++
	grn.ID = r.nextID
	r.grns[grn.PurchaseOrderID] = grn
	return grn.ID, nil
}

type stubOpps struct {
	opps map[int64]opportunities.Opportunity
}

func newStubOpps() *stubOpps {
	return &stubOpps{opps: make(map[int64]opportunities.Opportunity)}
}

func (s *stubOpps) Get(ctx context.Context, id int64) (opportunities.Opportunity, error) {
	o, ok := s.opps[id]
	if !ok {
		return opportunities.Opportunity{}, opportunities.ErrNotFound
	}
	return o, nil
}

func (s *stubOpps) ListByProject(ctx context.Context, projectID int64) ([]opportunities.Opportunity, error) {
	var items []opportunities.Opportunity
	for _, o := range s.opps {
		if o.ProjectID == projectID {
			items = append(items, o)
		}
	}
	return items, nil
}

func (s *stubOpps) SetProject(ctx context.Context, id, projectID int64) error {
	o := s.opps[id]
	o.ProjectID = projectID
	s.opps[id] = o
	return nil
}

func newTestService() (*Service, *memoryProcRepo, *stubOpps) {
	repo := newMemoryProcRepo()
	opps := newStubOpps()
	return NewService(repo, opps, nil), repo, opps
}

func TestListProjectsDefaultsLimit(t *testing.T) {
	svc, repo, _ := newTestService()
	_, _, err := svc.ListProjects(context.Background(), ProjectFilter{})
	require.NoError(t, err)
	require.Equal(t, shared.DefaultPerPage, repo.lastFilter.Limit)
}

func TestBalanceFiltersStatuses(t *testing.T) {
	svc, repo, opps := newTestService()
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, "Cashew sourcing", ProjectTypeProject, "")
	require.NoError(t, err)

	opps.opps[1] = opportunities.Opportunity{ID: 1, ProjectID: p.ID, Status: opportunities.StatusOpen, Quantity: 10, ProcurementQuantity: 12.5}
	opps.opps[2] = opportunities.Opportunity{ID: 2, ProjectID: p.ID, Status: opportunities.StatusClosedWon, Quantity: 4}
	opps.opps[3] = opportunities.Opportunity{ID: 3, ProjectID: p.ID, Status: opportunities.StatusClosedLost, Quantity: 100}
	opps.opps[4] = opportunities.Opportunity{ID: 4, ProjectID: p.ID, Status: opportunities.StatusProposal, Quantity: 50}

	// Demand counts OPEN and CLOSED_WON only, preferring the procurement
	// quantity where set.
	b, err := svc.ProjectBalance(ctx, p.ID)
	require.NoError(t, err)
	require.InDelta(t, 16.5, b.TotalDemand, 1e-9)
	require.InDelta(t, 16.5, b.Balance, 1e-9)
	require.False(t, b.FullySourced)

	po, _, err := svc.CreatePO(ctx, POInput{ProjectID: p.ID, VendorID: 7, Quantity: 10})
	require.NoError(t, err)
	_, _, err = svc.CreatePO(ctx, POInput{ProjectID: p.ID, VendorID: 7, Quantity: 6.5})
	require.NoError(t, err)

	b, err = svc.ProjectBalance(ctx, p.ID)
	require.NoError(t, err)
	require.InDelta(t, 16.5, b.TotalProcured, 1e-9)
	require.True(t, b.FullySourced)

	// Cancelled orders fall out of procurement.
	require.NoError(t, repo.UpdatePOStatus(ctx, po.ID, POStatusCancelled))
	b, err = svc.ProjectBalance(ctx, p.ID)
	require.NoError(t, err)
	require.InDelta(t, 6.5, b.TotalProcured, 1e-9)
	require.InDelta(t, 10, b.Balance, 1e-9)
}

func TestCreatePOSurplusWarning(t *testing.T) {
	svc, _, opps := newTestService()
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, "Pepper sourcing", ProjectTypeProject, "")
	require.NoError(t, err)
	opps.opps[1] = opportunities.Opportunity{ID: 1, ProjectID: p.ID, Status: opportunities.StatusOpen, Quantity: 10}

	_, warning, err := svc.CreatePO(ctx, POInput{ProjectID: p.ID, VendorID: 3, Quantity: 8})
	require.NoError(t, err)
	require.Empty(t, warning)

	// Overshooting demand warns but never blocks.
	po, warning, err := svc.CreatePO(ctx, POInput{ProjectID: p.ID, VendorID: 3, Quantity: 5})
	require.NoError(t, err)
	require.Equal(t, SurplusWarning, warning)
	require.NotZero(t, po.ID)
}

func TestSampleProjectCarriesNoDemandOrOrders(t *testing.T) {
	svc, _, opps := newTestService()
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, "Trial batch", ProjectTypeSample, "")
	require.NoError(t, err)
	opps.opps[1] = opportunities.Opportunity{ID: 1, Status: opportunities.StatusOpen, Quantity: 10}

	var serr *shared.StateError
	err = svc.LinkOpportunity(ctx, p.ID, 1)
	require.ErrorAs(t, err, &serr)

	_, _, err = svc.CreatePO(ctx, POInput{ProjectID: p.ID, VendorID: 3, Quantity: 5})
	require.ErrorAs(t, err, &serr)
}

func TestGRNValidationWritesNothing(t *testing.T) {
	svc, repo, opps := newTestService()
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, "Sourcing", ProjectTypeProject, "")
	require.NoError(t, err)
	opps.opps[1] = opportunities.Opportunity{ID: 1, ProjectID: p.ID, Status: opportunities.StatusOpen, Quantity: 10}
	po, _, err := svc.CreatePO(ctx, POInput{ProjectID: p.ID, VendorID: 3, Quantity: 10})
	require.NoError(t, err)

	_, err = svc.CreateGRN(ctx, GRNInput{PurchaseOrderID: po.ID, TotalReceivedQuantity: 5, RejectedQuantity: 7})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Violations, "Rejected quantity cannot exceed received quantity")
	require.Contains(t, verr.Violations, "received by is required")
	require.Empty(t, repo.grns)

	got, err := svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusDraft, got.Status)
}

func TestGRNIsTerminal(t *testing.T) {
	svc, _, opps := newTestService()
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, "Sourcing", ProjectTypeProject, "")
	require.NoError(t, err)
	opps.opps[1] = opportunities.Opportunity{ID: 1, ProjectID: p.ID, Status: opportunities.StatusOpen, Quantity: 10}
	po, _, err := svc.CreatePO(ctx, POInput{ProjectID: p.ID, VendorID: 3, Quantity: 10})
	require.NoError(t, err)

	grn, err := svc.CreateGRN(ctx, GRNInput{PurchaseOrderID: po.ID, TotalReceivedQuantity: 10, RejectedQuantity: 1, ReceivedBy: "warehouse"})
	require.NoError(t, err)
	require.InDelta(t, 9, grn.AcceptedQuantity(), 1e-9)

	got, err := svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusReceived, got.Status)

	var serr *shared.StateError
	err = svc.TransitionPO(ctx, po.ID, POStatusCancelled)
	require.ErrorAs(t, err, &serr)

	_, err = svc.CreateGRN(ctx, GRNInput{PurchaseOrderID: po.ID, TotalReceivedQuantity: 1, ReceivedBy: "warehouse"})
	require.ErrorAs(t, err, &serr)
}

func TestEnsureProjectForOpportunityIsIdempotent(t *testing.T) {
	svc, _, opps := newTestService()
	ctx := context.Background()

	opps.opps[1] = opportunities.Opportunity{ID: 1, Title: "Q3 cashew", Status: opportunities.StatusClosedWon, Quantity: 10}

	p1, err := svc.EnsureProjectForOpportunity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, ProjectTypeProject, p1.Type)

	p2, err := svc.EnsureProjectForOpportunity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, p1.ID, p2.ID)
}

// Ten tonnes sold at an 80% yield means sourcing 12.5 tonnes; a matching
// order fully sources the project.
func TestSourcingScenario(t *testing.T) {
	svc, _, opps := newTestService()
	ctx := context.Background()

	procQty := opportunities.ProcurementQuantity(10, 80)
	require.Equal(t, 12.5, procQty)

	p, err := svc.CreateProject(ctx, "Cashew Q3", ProjectTypeProject, "")
	require.NoError(t, err)
	opps.opps[1] = opportunities.Opportunity{ID: 1, ProjectID: p.ID, Status: opportunities.StatusOpen, Quantity: 10, ProcurementQuantity: procQty}

	b, err := svc.ProjectBalance(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 12.5, b.TotalDemand)

	_, warning, err := svc.CreatePO(ctx, POInput{ProjectID: p.ID, VendorID: 3, Quantity: 12.5})
	require.NoError(t, err)
	require.Empty(t, warning)

	b, err = svc.ProjectBalance(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, b.FullySourced)
}
