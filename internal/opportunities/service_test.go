package opportunities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeflow-erp/tradeflow/internal/samples"
	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

type memoryOppRepo struct {
	opps        map[int64]Opportunity
	commodities map[int64]Commodity
	nextID      int64
	lastFilter  ListFilter
}

func newMemoryOppRepo() *memoryOppRepo {
	return &memoryOppRepo{
		opps:        make(map[int64]Opportunity),
		commodities: make(map[int64]Commodity),
	}
}

func (r *memoryOppRepo) Get(ctx context.Context, id int64) (Opportunity, error) {
	o, ok := r.opps[id]
	if !ok {
		return Opportunity{}, ErrNotFound
	}
	return o, nil
}

func (r *memoryOppRepo) List(ctx context.Context, filter ListFilter) ([]Opportunity, int, error) {
	r.lastFilter = filter
	var items []Opportunity
	for _, o := range r.opps {
		items = append(items, o)
	}
	return items, len(items), nil
}

func (r *memoryOppRepo) Create(ctx context.Context, o Opportunity) (int64, error) {
	r.nextID++
	o.ID = r.nextID
	r.opps[o.ID] = o
	return o.ID, nil
}

func (r *memoryOppRepo) Update(ctx context.Context, o Opportunity) error {
	r.opps[o.ID] = o
	return nil
}

func (r *memoryOppRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	o := r.opps[id]
	o.Status = status
	r.opps[id] = o
	return nil
}

func (r *memoryOppRepo) SetProcurementQuantity(ctx context.Context, id int64, qty float64) error {
	o := r.opps[id]
	o.ProcurementQuantity = qty
	r.opps[id] = o
	return nil
}

func (r *memoryOppRepo) GetCommodity(ctx context.Context, id int64) (Commodity, error) {
	c, ok := r.commodities[id]
	if !ok {
		return Commodity{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryOppRepo) ListCommodities(ctx context.Context) ([]Commodity, error) {
	var items []Commodity
	for _, c := range r.commodities {
		items = append(items, c)
	}
	return items, nil
}

func (r *memoryOppRepo) CreateCommodity(ctx context.Context, c Commodity) (int64, error) {
	r.nextID++
	c.ID = r.nextID
	r.commodities[c.ID] = c
	return c.ID, nil
}

type stubSubmissions struct {
	subs []samples.Submission
}

func (s *stubSubmissions) SubmissionsForOpportunity(ctx context.Context, opportunityID int64) ([]samples.Submission, error) {
	return s.subs, nil
}

func TestProcurementQuantityDerivation(t *testing.T) {
	require.Equal(t, 12.5, ProcurementQuantity(10, 80))
	require.Equal(t, 10.0, ProcurementQuantity(10, 100))
	require.Equal(t, 10.0, ProcurementQuantity(10, 0))
	require.Equal(t, 33.33, ProcurementQuantity(10, 30.003))
}

func TestListDefaultsLimit(t *testing.T) {
	repo := newMemoryOppRepo()
	svc := NewService(repo, &stubSubmissions{}, nil)

	_, _, err := svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Equal(t, shared.DefaultPerPage, repo.lastFilter.Limit)
}

func TestCreateDerivesProcurementQuantity(t *testing.T) {
	repo := newMemoryOppRepo()
	svc := NewService(repo, &stubSubmissions{}, nil)
	ctx := context.Background()

	commodity, err := svc.CreateCommodity(ctx, Commodity{Name: "Cashew kernels", YieldPercentage: 80})
	require.NoError(t, err)

	o, err := svc.Create(ctx, Input{CompanyID: 1, CommodityID: commodity.ID, Title: "Q3 cashew", Quantity: 10})
	require.NoError(t, err)
	require.Equal(t, 12.5, o.ProcurementQuantity)
	require.Equal(t, StatusOpen, o.Status)
}

func TestUpdateRecomputesOnQuantityChange(t *testing.T) {
	repo := newMemoryOppRepo()
	svc := NewService(repo, &stubSubmissions{}, nil)
	ctx := context.Background()

	commodity, err := svc.CreateCommodity(ctx, Commodity{Name: "Pepper", YieldPercentage: 50})
	require.NoError(t, err)
	o, err := svc.Create(ctx, Input{CompanyID: 1, CommodityID: commodity.ID, Title: "Pepper lot", Quantity: 10})
	require.NoError(t, err)
	require.Equal(t, 20.0, o.ProcurementQuantity)

	// Manual override wins until the next quantity change.
	require.NoError(t, svc.OverrideProcurementQuantity(ctx, o.ID, 25))
	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, 25.0, got.ProcurementQuantity)

	updated, err := svc.Update(ctx, o.ID, Input{CompanyID: 1, CommodityID: commodity.ID, Title: "Pepper lot", Quantity: 20})
	require.NoError(t, err)
	require.Equal(t, 40.0, updated.ProcurementQuantity)

	// Untouched quantity keeps the override.
	require.NoError(t, svc.OverrideProcurementQuantity(ctx, o.ID, 42))
	updated, err = svc.Update(ctx, o.ID, Input{CompanyID: 1, CommodityID: commodity.ID, Title: "Pepper lot renamed", Quantity: 20})
	require.NoError(t, err)
	require.Equal(t, 42.0, updated.ProcurementQuantity)
}

func TestCloseWonGateEnumeratesAllFailures(t *testing.T) {
	repo := newMemoryOppRepo()
	subs := &stubSubmissions{}
	svc := NewService(repo, subs, nil)
	ctx := context.Background()

	o, err := svc.Create(ctx, Input{CompanyID: 1, Title: "Bare deal"})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, o.ID, StatusClosedWon)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 3)

	// Fix conditions one by one; the error shrinks accordingly.
	_, err = svc.Update(ctx, o.ID, Input{CompanyID: 1, Title: "Bare deal", Quantity: 5})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, o.ID, StatusClosedWon)
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 2)

	_, err = svc.Update(ctx, o.ID, Input{CompanyID: 1, Title: "Bare deal", Quantity: 5, TargetPrice: 1200})
	require.NoError(t, err)
	subs.subs = []samples.Submission{{ID: 1, OpportunityID: o.ID, Status: samples.SubmissionSubmitted}}
	_, err = svc.Transition(ctx, o.ID, StatusClosedWon)
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)

	subs.subs[0].Status = samples.SubmissionClientApproved
	got, err := svc.Transition(ctx, o.ID, StatusClosedWon)
	require.NoError(t, err)
	require.Equal(t, StatusClosedWon, got.Status)
}

func TestNegotiationRequiresSubmission(t *testing.T) {
	repo := newMemoryOppRepo()
	subs := &stubSubmissions{}
	svc := NewService(repo, subs, nil)
	ctx := context.Background()

	o, err := svc.Create(ctx, Input{CompanyID: 1, Title: "Deal", Quantity: 5})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, o.ID, StatusNegotiation)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)

	subs.subs = []samples.Submission{{ID: 1, OpportunityID: o.ID, Status: samples.SubmissionSubmitted}}
	got, err := svc.Transition(ctx, o.ID, StatusNegotiation)
	require.NoError(t, err)
	require.Equal(t, StatusNegotiation, got.Status)

	// Any other column move stays unconstrained.
	got, err = svc.Transition(ctx, o.ID, StatusOpen)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, got.Status)
}
