package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDocument(ctx context.Context, id int64) (Document, error)
	ListDocuments(ctx context.Context, filter ListFilter) ([]Document, int, error)
	CreateDocument(ctx context.Context, d Document) (int64, error)
	PaidTotalForOrder(ctx context.Context, salesOrderID int64) (float64, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}

// TxRepository exposes transactional operations. A payment's pending update
// and its ledger entry must land together.
type TxRepository interface {
	UpdateDocumentPending(ctx context.Context, id int64, pending float64, status DocStatus) error
	InsertTransaction(ctx context.Context, t Transaction) (int64, error)
}

// SummaryInvalidator drops cached financial summaries after the ledger moves.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context) error
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

// ListFilter narrows document listings.
type ListFilter struct {
	Kind      DocKind
	CompanyID int64
	Status    DocStatus
	Limit     int
	Offset    int
}

// TransactionFilter narrows ledger queries.
type TransactionFilter struct {
	Type  TransactionType
	From  string
	To    string
	Limit int
}

// Service owns invoices, bills, payments, and the ledger.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	locker      *shared.MutationLocker
	invalidator SummaryInvalidator
	idem        IdempotencyPort
}

// NewService constructs the billing service.
func NewService(repo RepositoryPort, audit AuditPort, locker *shared.MutationLocker, invalidator SummaryInvalidator, idem IdempotencyPort) *Service {
	return &Service{repo: repo, audit: audit, locker: locker, invalidator: invalidator, idem: idem}
}

// DocumentInput carries invoice/bill fields.
type DocumentInput struct {
	Kind            DocKind
	Number          string
	CompanyID       int64
	SalesOrderID    int64
	PurchaseOrderID int64
	Total           float64
}

// CreateDocument opens an invoice or bill with the full amount pending.
func (s *Service) CreateDocument(ctx context.Context, input DocumentInput) (Document, error) {
	verr := &shared.ValidationError{}
	if input.Kind != KindInvoice && input.Kind != KindBill {
		verr.Add("document kind must be INVOICE or BILL")
	}
	if input.CompanyID == 0 {
		verr.Add("company is required")
	}
	if input.Total <= 0 {
		verr.Add("total must be greater than zero")
	}
	if input.Kind == KindInvoice && input.SalesOrderID == 0 {
		verr.Add("an invoice must reference a sales order")
	}
	if input.Kind == KindBill && input.PurchaseOrderID == 0 {
		verr.Add("a bill must reference a purchase order")
	}
	if verr.HasViolations() {
		return Document{}, verr
	}

	d := Document{
		Kind:            input.Kind,
		Number:          input.Number,
		CompanyID:       input.CompanyID,
		SalesOrderID:    input.SalesOrderID,
		PurchaseOrderID: input.PurchaseOrderID,
		Total:           input.Total,
		Pending:         input.Total,
		Status:          StatusUnpaid,
	}
	id, err := s.repo.CreateDocument(ctx, d)
	if err != nil {
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	d.ID = id
	s.recordAudit(ctx, "DOCUMENT_CREATE", d.ID, map[string]any{"kind": string(d.Kind), "total": d.Total})
	return d, nil
}

// GetDocument returns one invoice or bill.
func (s *Service) GetDocument(ctx context.Context, id int64) (Document, error) {
	return s.repo.GetDocument(ctx, id)
}

// ListDocuments returns documents matching the filter.
func (s *Service) ListDocuments(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = shared.DefaultPerPage
	}
	return s.repo.ListDocuments(ctx, filter)
}

// PaymentInput carries one payment against a document. IdempotencyKey is a
// client-supplied token; a replay carrying the same key reports the current
// document state instead of applying twice.
type PaymentInput struct {
	Amount         float64
	Note           string
	IdempotencyKey string
}

// ApplyPayment settles part or all of a document. The pending decrement and
// the ledger entry share one transaction; concurrent payments against the
// same document are serialized by a per-document lock. Overpayment is
// rejected outright.
func (s *Service) ApplyPayment(ctx context.Context, docID int64, input PaymentInput) (Document, error) {
	release, err := s.locker.Acquire(ctx, shared.EntityLockKey("billing_document", docID))
	if err != nil {
		if errors.Is(err, shared.ErrLockHeld) {
			return Document{}, shared.NewStateError("another payment against this document is in progress")
		}
		return Document{}, err
	}
	defer release()

	doc, err := s.repo.GetDocument(ctx, docID)
	if err != nil {
		return Document{}, err
	}
	amount := input.Amount
	if amount <= 0 {
		return Document{}, shared.NewValidationError("payment amount must be greater than zero")
	}
	keyHeld := false
	if s.idem != nil && input.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "billing"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return doc, nil
			}
			return Document{}, err
		}
		keyHeld = true
	}
	if amount > doc.Pending {
		s.releaseKey(ctx, keyHeld, input.IdempotencyKey)
		return Document{}, shared.NewValidationError(fmt.Sprintf("payment of %.2f exceeds the pending amount %.2f", amount, doc.Pending))
	}

	pending := doc.Pending - amount
	status := DeriveStatus(doc.Total, pending)
	entry := Transaction{
		Reference:    uuid.NewString(),
		Amount:       amount,
		SalesOrderID: doc.SalesOrderID,
		Note:         input.Note,
	}
	if doc.Kind == KindInvoice {
		entry.Type = TransactionCredit
		entry.Category = "SALES"
		entry.InvoiceID = doc.ID
	} else {
		entry.Type = TransactionDebit
		entry.Category = "PROCUREMENT"
		entry.BillID = doc.ID
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateDocumentPending(ctx, doc.ID, pending, status); err != nil {
			return err
		}
		_, err := tx.InsertTransaction(ctx, entry)
		return err
	})
	if err != nil {
		s.releaseKey(ctx, keyHeld, input.IdempotencyKey)
		return Document{}, fmt.Errorf("apply payment: %w", err)
	}

	doc.Pending = pending
	doc.Status = status
	s.invalidateSummaries(ctx)
	s.recordAudit(ctx, "PAYMENT_APPLY", doc.ID, map[string]any{"amount": amount, "pending": pending, "status": string(status)})
	return doc, nil
}

// LedgerInput carries a general ledger entry not tied to a document.
type LedgerInput struct {
	Type     TransactionType
	Amount   float64
	Category string
	Note     string
}

// RecordLedgerEntry appends other income or expense straight to the ledger.
func (s *Service) RecordLedgerEntry(ctx context.Context, input LedgerInput) (Transaction, error) {
	verr := &shared.ValidationError{}
	if input.Type != TransactionCredit && input.Type != TransactionDebit {
		verr.Add("transaction type must be CREDIT or DEBIT")
	}
	if input.Amount <= 0 {
		verr.Add("amount must be greater than zero")
	}
	if input.Category == "" {
		verr.Add("category is required")
	}
	if verr.HasViolations() {
		return Transaction{}, verr
	}

	entry := Transaction{
		Reference: uuid.NewString(),
		Type:      input.Type,
		Amount:    input.Amount,
		Category:  input.Category,
		Note:      input.Note,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertTransaction(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return nil
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("record ledger entry: %w", err)
	}
	s.invalidateSummaries(ctx)
	return entry, nil
}

// PaidTotalForOrder sums collected money across the order's invoices.
func (s *Service) PaidTotalForOrder(ctx context.Context, salesOrderID int64) (float64, error) {
	return s.repo.PaidTotalForOrder(ctx, salesOrderID)
}

// ListTransactions returns ledger entries matching the filter.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	if filter.Limit <= 0 {
		filter.Limit = shared.DefaultPerPage
	}
	return s.repo.ListTransactions(ctx, filter)
}

// releaseKey returns an idempotency key after the fenced action failed, so a
// corrected retry is not mistaken for a replay.
func (s *Service) releaseKey(ctx context.Context, held bool, key string) {
	if !held || s.idem == nil {
		return
	}
	_ = s.idem.Delete(ctx, key)
}

func (s *Service) invalidateSummaries(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	_ = s.invalidator.Invalidate(ctx)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "billing_document", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
