package shipments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

type memoryShipmentRepo struct {
	shipments map[int64]Shipment
	nextID    int64
}

func newMemoryShipmentRepo() *memoryShipmentRepo {
	return &memoryShipmentRepo{shipments: make(map[int64]Shipment)}
}

func (r *memoryShipmentRepo) Get(ctx context.Context, id int64) (Shipment, error) {
	s, ok := r.shipments[id]
	if !ok {
		return Shipment{}, ErrNotFound
	}
	return s, nil
}

func (r *memoryShipmentRepo) ListByPurchaseOrder(ctx context.Context, poID int64) ([]Shipment, error) {
	var items []Shipment
	for _, s := range r.shipments {
		if s.PurchaseOrderID == poID {
			items = append(items, s)
		}
	}
	return items, nil
}

func (r *memoryShipmentRepo) ListBySalesOrder(ctx context.Context, soID int64) ([]Shipment, error) {
	var items []Shipment
	for _, s := range r.shipments {
		if s.SalesOrderID == soID {
			items = append(items, s)
		}
	}
	return items, nil
}

func (r *memoryShipmentRepo) Create(ctx context.Context, s Shipment) (int64, error) {
	r.nextID++
	s.ID = r.nextID
	r.shipments[s.ID] = s
	return s.ID, nil
}

func (r *memoryShipmentRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	s := r.shipments[id]
	s.Status = status
	r.shipments[id] = s
	return nil
}

type stubReceipts struct {
	received map[int64]bool
}

func (s *stubReceipts) GRNExists(ctx context.Context, poID int64) (bool, error) {
	return s.received[poID], nil
}

func TestCreateRequiresExactlyOneParent(t *testing.T) {
	svc := NewService(newMemoryShipmentRepo(), &stubReceipts{received: map[int64]bool{}}, nil)
	ctx := context.Background()

	var verr *shared.ValidationError
	_, err := svc.Create(ctx, Input{Quantity: 5})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Create(ctx, Input{PurchaseOrderID: 1, SalesOrderID: 2, Quantity: 5})
	require.ErrorAs(t, err, &verr)

	sh, err := svc.Create(ctx, Input{SalesOrderID: 2, Quantity: 5, Carrier: "Maersk"})
	require.NoError(t, err)
	require.Equal(t, StatusPending, sh.Status)
}

func TestCreateRefusedAfterGoodsReceipt(t *testing.T) {
	receipts := &stubReceipts{received: map[int64]bool{9: true}}
	svc := NewService(newMemoryShipmentRepo(), receipts, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{PurchaseOrderID: 9, Quantity: 5})
	var serr *shared.StateError
	require.ErrorAs(t, err, &serr)

	sh, err := svc.Create(ctx, Input{PurchaseOrderID: 8, Quantity: 5})
	require.NoError(t, err)
	require.NotZero(t, sh.ID)
}

func TestUpdateStatus(t *testing.T) {
	svc := NewService(newMemoryShipmentRepo(), &stubReceipts{received: map[int64]bool{}}, nil)
	ctx := context.Background()

	sh, err := svc.Create(ctx, Input{SalesOrderID: 2, Quantity: 5})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(ctx, sh.ID, StatusInTransit))
	got, err := svc.Get(ctx, sh.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInTransit, got.Status)

	var verr *shared.ValidationError
	require.ErrorAs(t, svc.UpdateStatus(ctx, sh.ID, Status("LOST")), &verr)
}
