package salesorders

import (
	"errors"
	"time"
)

// Status tracks a sales order from confirmation to completion.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// validStatuses enumerates the lifecycle. No ordering is enforced between
// them; only DELIVERED, COMPLETED and CANCELLED carry entry conditions.
var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusConfirmed:  true,
	StatusInProgress: true,
	StatusShipped:    true,
	StatusDelivered:  true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s Status) bool {
	return validStatuses[s]
}

// SalesOrder is the fulfillment side of a won opportunity.
type SalesOrder struct {
	ID               int64
	CompanyID        int64
	OpportunityID    int64
	Number           string
	Status           Status
	TotalAmount      float64
	FulfillmentNotes string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Tolerances for deciding an order is settled. Payments tolerate rounding to
// the unit of currency; quantities to a hundredth.
const (
	paymentTolerance  = 1.0
	quantityTolerance = 0.01
)

var (
	// ErrNotFound indicates a missing sales order.
	ErrNotFound = errors.New("salesorders: not found")
)
