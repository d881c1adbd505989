package billing

import (
	"errors"
	"time"
)

// DocKind separates receivables from payables.
type DocKind string

const (
	KindInvoice DocKind = "INVOICE"
	KindBill    DocKind = "BILL"
)

// DocStatus is always derived from the pending amount, never set directly.
type DocStatus string

const (
	StatusUnpaid  DocStatus = "UNPAID"
	StatusPartial DocStatus = "PARTIAL"
	StatusPaid    DocStatus = "PAID"
)

// DeriveStatus maps a pending amount onto the document status.
func DeriveStatus(total, pending float64) DocStatus {
	switch {
	case pending <= 0:
		return StatusPaid
	case pending < total:
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// Document is an invoice (money owed to us) or a bill (money we owe).
type Document struct {
	ID              int64
	Kind            DocKind
	Number          string
	CompanyID       int64
	SalesOrderID    int64
	PurchaseOrderID int64
	Total           float64
	Pending         float64
	Status          DocStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TransactionType is the ledger direction. Invoice payments land as credits,
// bill payments as debits.
type TransactionType string

const (
	TransactionCredit TransactionType = "CREDIT"
	TransactionDebit  TransactionType = "DEBIT"
)

// Transaction is one append-only ledger entry. Rows are never updated or
// deleted; corrections are new entries.
type Transaction struct {
	ID           int64
	Reference    string
	Type         TransactionType
	Amount       float64
	Category     string
	SalesOrderID int64
	InvoiceID    int64
	BillID       int64
	Note         string
	CreatedAt    time.Time
}

var (
	// ErrNotFound indicates a missing document.
	ErrNotFound = errors.New("billing: not found")
)
