package shipments

import (
	"errors"
	"time"
)

// Status tracks a shipment in flight.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusInTransit: true,
	StatusDelivered: true,
}

// Shipment is one physical movement of goods, inbound against a purchase
// order or outbound against a sales order. Exactly one parent is set.
type Shipment struct {
	ID              int64
	PurchaseOrderID int64
	SalesOrderID    int64
	Carrier         string
	TrackingNumber  string
	Quantity        float64
	ETA             time.Time
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	// ErrNotFound indicates a missing shipment.
	ErrNotFound = errors.New("shipments: not found")
)
