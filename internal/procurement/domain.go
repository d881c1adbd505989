package procurement

import (
	"errors"
	"math"
	"time"
)

// ProjectType separates full sourcing projects from sample-only evaluations.
type ProjectType string

const (
	ProjectTypeProject ProjectType = "PROJECT"
	ProjectTypeSample  ProjectType = "SAMPLE"
)

// ProjectStatus tracks a sourcing project's lifecycle.
type ProjectStatus string

const (
	ProjectSourcing  ProjectStatus = "SOURCING"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectCancelled ProjectStatus = "CANCELLED"
)

// POStatus tracks a purchase order from draft to receipt.
type POStatus string

const (
	POStatusDraft      POStatus = "DRAFT"
	POStatusPending    POStatus = "PENDING"
	POStatusInProgress POStatus = "IN_PROGRESS"
	POStatusInTransit  POStatus = "IN_TRANSIT"
	POStatusReceived   POStatus = "RECEIVED"
	POStatusCancelled  POStatus = "CANCELLED"
)

// poTransitions lists the legal purchase order status flow. Cancellation is
// allowed from any non-terminal state; RECEIVED is only ever set by goods
// receipt.
var poTransitions = map[POStatus][]POStatus{
	POStatusDraft:      {POStatusPending, POStatusCancelled},
	POStatusPending:    {POStatusInProgress, POStatusCancelled},
	POStatusInProgress: {POStatusInTransit, POStatusCancelled},
	POStatusInTransit:  {POStatusCancelled},
}

// CanTransitionPO reports whether from → to is a legal purchase order move.
func CanTransitionPO(from, to POStatus) bool {
	for _, next := range poTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Project groups the sourcing work for related opportunities: the vendor
// shortlist, samples, and purchase orders.
type Project struct {
	ID        int64
	Name      string
	Type      ProjectType
	Status    ProjectStatus
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PurchaseOrder commits quantity and spend against one vendor.
type PurchaseOrder struct {
	ID          int64
	ProjectID   int64
	VendorID    int64
	SampleID    int64
	Number      string
	Quantity    float64
	TotalAmount float64
	Status      POStatus
	PDFURL      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GRN is the goods received note closing out a purchase order. At most one
// exists per PO and it is terminal.
type GRN struct {
	ID                    int64
	PurchaseOrderID       int64
	TotalReceivedQuantity float64
	RejectedQuantity      float64
	ReceivedBy            string
	Note                  string
	CreatedAt             time.Time
}

// AcceptedQuantity is what survives inspection.
func (g GRN) AcceptedQuantity() float64 {
	return g.TotalReceivedQuantity - g.RejectedQuantity
}

// Balance is the demand/supply position of a project, recomputed on every
// read and never stored.
type Balance struct {
	TotalDemand   float64 `json:"total_demand"`
	TotalProcured float64 `json:"total_procured"`
	Balance       float64 `json:"balance"`
	FullySourced  bool    `json:"fully_sourced"`
}

// balanceTolerance absorbs float accumulation noise when comparing
// demand against procurement.
const balanceTolerance = 0.01

func computeBalance(demand, procured float64) Balance {
	b := demand - procured
	return Balance{
		TotalDemand:   demand,
		TotalProcured: procured,
		Balance:       b,
		FullySourced:  math.Abs(b) < balanceTolerance,
	}
}

var (
	// ErrNotFound indicates a missing project, purchase order, or GRN.
	ErrNotFound = errors.New("procurement: not found")
)
