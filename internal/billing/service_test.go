package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

type memoryBillingRepo struct {
	docs         map[int64]Document
	transactions []Transaction
	nextID       int64
	failTxInsert bool
	lastFilter   ListFilter
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{docs: make(map[int64]Document)}
}

// WithTx snapshots state and rolls back on error, mirroring a real
// transaction closely enough for atomicity tests.
func (r *memoryBillingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	docs := make(map[int64]Document, len(r.docs))
	for k, v := range r.docs {
		docs[k] = v
	}
	transactions := append([]Transaction(nil), r.transactions...)
	if err := fn(ctx, r); err != nil {
		r.docs = docs
		r.transactions = transactions
		return err
	}
	return nil
}

func (r *memoryBillingRepo) GetDocument(ctx context.Context, id int64) (Document, error) {
	d, ok := r.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d, nil
}

func (r *memoryBillingRepo) ListDocuments(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	r.lastFilter = filter
	var items []Document
	for _, d := range r.docs {
		items = append(items, d)
	}
	return items, len(items), nil
}

func (r *memoryBillingRepo) CreateDocument(ctx context.Context, d Document) (int64, error) {
	r.nextID++
	d.ID = r.nextID
	r.docs[d.ID] = d
	return d.ID, nil
}

func (r *memoryBillingRepo) PaidTotalForOrder(ctx context.Context, salesOrderID int64) (float64, error) {
	var paid float64
	for _, d := range r.docs {
		if d.Kind == KindInvoice && d.SalesOrderID == salesOrderID {
			paid += d.Total - d.Pending
		}
	}
	return paid, nil
}

func (r *memoryBillingRepo) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	return r.transactions, nil
}

func (r *memoryBillingRepo) UpdateDocumentPending(ctx context.Context, id int64, pending float64, status DocStatus) error {
	d := r.docs[id]
	d.Pending = pending
	d.Status = status
	r.docs[id] = d
	return nil
}

func (r *memoryBillingRepo) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	if r.failTxInsert {
		return 0, errors.New("ledger insert failed")
	}
	r.nextID++
	t.ID = r.nextID
	r.transactions = append(r.transactions, t)
	return t.ID, nil
}

type memoryIdemStore struct {
	keys map[string]bool
}

func newMemoryIdemStore() *memoryIdemStore {
	return &memoryIdemStore{keys: make(map[string]bool)}
}

func (s *memoryIdemStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = true
	return nil
}

func (s *memoryIdemStore) Delete(ctx context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

func newTestService() (*Service, *memoryBillingRepo) {
	repo := newMemoryBillingRepo()
	return NewService(repo, nil, nil, nil, nil), repo
}

func seedInvoice(t *testing.T, svc *Service, total float64) Document {
	t.Helper()
	d, err := svc.CreateDocument(context.Background(), DocumentInput{
		Kind: KindInvoice, CompanyID: 1, SalesOrderID: 7, Total: total,
	})
	require.NoError(t, err)
	return d
}

func TestDeriveStatus(t *testing.T) {
	require.Equal(t, StatusUnpaid, DeriveStatus(100, 100))
	require.Equal(t, StatusPartial, DeriveStatus(100, 40))
	require.Equal(t, StatusPaid, DeriveStatus(100, 0))
}

func TestCreateDocumentValidation(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateDocument(context.Background(), DocumentInput{Kind: DocKind("RECEIPT")})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 3)

	_, err = svc.CreateDocument(context.Background(), DocumentInput{Kind: KindBill, CompanyID: 1, Total: 50})
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
}

func TestApplyPaymentBoundaries(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	d := seedInvoice(t, svc, 100)

	var verr *shared.ValidationError
	_, err := svc.ApplyPayment(ctx, d.ID, PaymentInput{Amount: 0})
	require.ErrorAs(t, err, &verr)
	_, err = svc.ApplyPayment(ctx, d.ID, PaymentInput{Amount: 150})
	require.ErrorAs(t, err, &verr)

	got, err := svc.ApplyPayment(ctx, d.ID, PaymentInput{Amount: 40, Note: "first installment"})
	require.NoError(t, err)
	require.Equal(t, 60.0, got.Pending)
	require.Equal(t, StatusPartial, got.Status)

	got, err = svc.ApplyPayment(ctx, d.ID, PaymentInput{Amount: 60, Note: "final"})
	require.NoError(t, err)
	require.Equal(t, 0.0, got.Pending)
	require.Equal(t, StatusPaid, got.Status)

	// Fully paid documents take no more payments.
	_, err = svc.ApplyPayment(ctx, d.ID, PaymentInput{Amount: 1})
	require.ErrorAs(t, err, &verr)

	require.Len(t, repo.transactions, 2)
	require.Equal(t, TransactionCredit, repo.transactions[0].Type)
	require.Equal(t, d.ID, repo.transactions[0].InvoiceID)
}

func TestApplyPaymentBillDebits(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	d, err := svc.CreateDocument(ctx, DocumentInput{Kind: KindBill, CompanyID: 1, PurchaseOrderID: 3, Total: 500})
	require.NoError(t, err)

	_, err = svc.ApplyPayment(ctx, d.ID, PaymentInput{Amount: 500})
	require.NoError(t, err)
	require.Len(t, repo.transactions, 1)
	require.Equal(t, TransactionDebit, repo.transactions[0].Type)
	require.Equal(t, d.ID, repo.transactions[0].BillID)
}

func TestApplyPaymentIsAtomic(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	d := seedInvoice(t, svc, 100)

	repo.failTxInsert = true
	_, err := svc.ApplyPayment(ctx, d.ID, PaymentInput{Amount: 40})
	require.Error(t, err)

	// The failed ledger insert rolled back the pending decrement.
	got, err := svc.GetDocument(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, got.Pending)
	require.Equal(t, StatusUnpaid, got.Status)
	require.Empty(t, repo.transactions)
}

func TestApplyPaymentKeyReplay(t *testing.T) {
	repo := newMemoryBillingRepo()
	idem := newMemoryIdemStore()
	svc := NewService(repo, nil, nil, nil, idem)
	ctx := context.Background()
	d := seedInvoice(t, svc, 100)

	got, err := svc.ApplyPayment(ctx, d.ID, PaymentInput{Amount: 100, IdempotencyKey: "pay-1"})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, got.Status)

	// A replay of the same request reports the settled document instead of
	// failing the overpayment check or paying twice.
	got, err = svc.ApplyPayment(ctx, d.ID, PaymentInput{Amount: 100, IdempotencyKey: "pay-1"})
	require.NoError(t, err)
	require.Equal(t, 0.0, got.Pending)
	require.Len(t, repo.transactions, 1)
}

func TestApplyPaymentKeyReleasedOnFailure(t *testing.T) {
	repo := newMemoryBillingRepo()
	idem := newMemoryIdemStore()
	svc := NewService(repo, nil, nil, nil, idem)
	ctx := context.Background()
	d := seedInvoice(t, svc, 100)

	repo.failTxInsert = true
	_, err := svc.ApplyPayment(ctx, d.ID, PaymentInput{Amount: 40, IdempotencyKey: "pay-2"})
	require.Error(t, err)

	// The failed attempt returned its key; the retry is not mistaken for a
	// replay and applies normally.
	repo.failTxInsert = false
	got, err := svc.ApplyPayment(ctx, d.ID, PaymentInput{Amount: 40, IdempotencyKey: "pay-2"})
	require.NoError(t, err)
	require.Equal(t, 60.0, got.Pending)
	require.Len(t, repo.transactions, 1)
}

func TestListDocumentsDefaultsLimit(t *testing.T) {
	svc, repo := newTestService()
	_, _, err := svc.ListDocuments(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Equal(t, shared.DefaultPerPage, repo.lastFilter.Limit)
}

func TestPaidTotalForOrder(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a := seedInvoice(t, svc, 100)
	b := seedInvoice(t, svc, 200)

	_, err := svc.ApplyPayment(ctx, a.ID, PaymentInput{Amount: 100})
	require.NoError(t, err)
	_, err = svc.ApplyPayment(ctx, b.ID, PaymentInput{Amount: 50})
	require.NoError(t, err)

	paid, err := svc.PaidTotalForOrder(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 150.0, paid)
}

func TestRecordLedgerEntry(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.RecordLedgerEntry(ctx, LedgerInput{Type: TransactionType("TRANSFER"), Amount: -5})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 3)

	entry, err := svc.RecordLedgerEntry(ctx, LedgerInput{Type: TransactionDebit, Amount: 120, Category: "OFFICE", Note: "freight insurance"})
	require.NoError(t, err)
	require.NotEmpty(t, entry.Reference)
	require.Len(t, repo.transactions, 1)
}
