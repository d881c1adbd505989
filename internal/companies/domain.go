package companies

import (
	"errors"
	"time"
)

// CompanyType classifies the relationship with a counterparty.
type CompanyType string

const (
	TypeProspect CompanyType = "PROSPECT"
	TypeClient   CompanyType = "CLIENT"
	TypeVendor   CompanyType = "VENDOR"
	TypePartner  CompanyType = "PARTNER"
)

// TrustLevel grades a counterparty's reliability.
type TrustLevel string

const (
	TrustUnrated  TrustLevel = "UNRATED"
	TrustLow      TrustLevel = "LOW"
	TrustMedium   TrustLevel = "MEDIUM"
	TrustHigh     TrustLevel = "HIGH"
	TrustVerified TrustLevel = "VERIFIED"
)

// Company is a counterparty: client, vendor, partner or prospect. One company
// may be referenced as vendor, client or partner at the same time.
type Company struct {
	ID         int64
	Name       string
	Type       CompanyType
	TrustLevel TrustLevel
	Country    string
	Note       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// References counts downstream records keeping a company alive. Deletion is
// blocked while any count is non-zero; records are never cascaded.
type References struct {
	Opportunities  int
	Projects       int
	PurchaseOrders int
	SalesOrders    int
}

// Total sums all reference counts.
func (r References) Total() int {
	return r.Opportunities + r.Projects + r.PurchaseOrders + r.SalesOrders
}

var (
	// ErrNotFound indicates the company does not exist.
	ErrNotFound = errors.New("companies: not found")
)

func validType(t CompanyType) bool {
	switch t {
	case TypeProspect, TypeClient, TypeVendor, TypePartner:
		return true
	}
	return false
}

func validTrustLevel(l TrustLevel) bool {
	switch l {
	case TrustUnrated, TrustLow, TrustMedium, TrustHigh, TrustVerified:
		return true
	}
	return false
}
