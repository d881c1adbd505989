package companies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

type memoryCompanyRepo struct {
	companies map[int64]Company
	refs      map[int64]References
	nextID    int64
}

func newMemoryCompanyRepo() *memoryCompanyRepo {
	return &memoryCompanyRepo{
		companies: make(map[int64]Company),
		refs:      make(map[int64]References),
	}
}

func (r *memoryCompanyRepo) Get(ctx context.Context, id int64) (Company, error) {
	c, ok := r.companies[id]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryCompanyRepo) List(ctx context.Context, filter ListFilter) ([]Company, int, error) {
	var items []Company
	for _, c := range r.companies {
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		items = append(items, c)
	}
	return items, len(items), nil
}

func (r *memoryCompanyRepo) Create(ctx context.Context, c Company) (int64, error) {
	r.nextID++
	c.ID = r.nextID
	r.companies[c.ID] = c
	return c.ID, nil
}

func (r *memoryCompanyRepo) Update(ctx context.Context, c Company) error {
	r.companies[c.ID] = c
	return nil
}

func (r *memoryCompanyRepo) CountReferences(ctx context.Context, id int64) (References, error) {
	return r.refs[id], nil
}

func (r *memoryCompanyRepo) Delete(ctx context.Context, id int64) error {
	delete(r.companies, id)
	return nil
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryCompanyRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, Company{Name: "", Type: CompanyType("BOGUS")})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 2)

	c, err := svc.Create(ctx, Company{Name: "Acme Commodities", Type: TypeVendor})
	require.NoError(t, err)
	require.NotZero(t, c.ID)
	require.Equal(t, TrustUnrated, c.TrustLevel)
}

func TestDeleteBlockedWhileReferenced(t *testing.T) {
	repo := newMemoryCompanyRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, Company{Name: "Hafnia Trading", Type: TypeClient})
	require.NoError(t, err)

	repo.refs[c.ID] = References{SalesOrders: 2, Opportunities: 1}

	err = svc.Delete(ctx, c.ID)
	var ierr *shared.IntegrityError
	require.ErrorAs(t, err, &ierr)
	_, getErr := svc.Get(ctx, c.ID)
	require.NoError(t, getErr)

	repo.refs[c.ID] = References{}
	require.NoError(t, svc.Delete(ctx, c.ID))
	_, getErr = svc.Get(ctx, c.ID)
	require.ErrorIs(t, getErr, ErrNotFound)
}
