package opportunities

import (
	"errors"
	"math"
	"time"
)

// Status is the pipeline column an opportunity sits in. Columns are freely
// traversable except for the gated entries into NEGOTIATION and CLOSED_WON.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusQualification Status = "QUALIFICATION"
	StatusProposal      Status = "PROPOSAL"
	StatusNegotiation   Status = "NEGOTIATION"
	StatusClosedWon     Status = "CLOSED_WON"
	StatusClosedLost    Status = "CLOSED_LOST"
)

var validStatuses = map[Status]bool{
	StatusOpen:          true,
	StatusQualification: true,
	StatusProposal:      true,
	StatusNegotiation:   true,
	StatusClosedWon:     true,
	StatusClosedLost:    true,
}

// Type distinguishes one-off deals from recurring supply arrangements.
type Type string

const (
	TypeOneTime   Type = "ONE_TIME"
	TypeRecurring Type = "RECURRING"
)

// PriceType qualifies how the target price is quoted.
type PriceType string

const (
	PriceFixed    PriceType = "FIXED"
	PriceFloating PriceType = "FLOATING"
)

// Opportunity is one prospective sale of a commodity to a company.
type Opportunity struct {
	ID                  int64
	CompanyID           int64
	CommodityID         int64
	ProjectID           int64
	Title               string
	Quantity            float64
	ProcurementQuantity float64
	TargetPrice         float64
	PriceType           PriceType
	Type                Type
	Status              Status
	Note                string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Commodity is a traded good with a processing yield. Buying raw material at
// an 80% yield means sourcing 125kg to deliver 100kg.
type Commodity struct {
	ID              int64
	Name            string
	YieldPercentage float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProcurementQuantity derives the raw quantity to source from the sale
// quantity and the commodity yield. Zero or negative yield falls back to 100.
func ProcurementQuantity(quantity, yieldPercentage float64) float64 {
	if yieldPercentage <= 0 {
		yieldPercentage = 100
	}
	return math.Round(quantity*100/yieldPercentage*100) / 100
}

var (
	// ErrNotFound indicates a missing opportunity or commodity.
	ErrNotFound = errors.New("opportunities: not found")
)
