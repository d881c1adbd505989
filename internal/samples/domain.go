package samples

import (
	"errors"
	"time"
)

// SampleStatus tracks a vendor sample through the evaluation workflow.
type SampleStatus string

const (
	StatusRequested      SampleStatus = "REQUESTED"
	StatusSent           SampleStatus = "SENT"
	StatusReceived       SampleStatus = "RECEIVED"
	StatusApproved       SampleStatus = "APPROVED"
	StatusRejected       SampleStatus = "REJECTED"
	StatusSentToClient   SampleStatus = "SENT_TO_CLIENT"
	StatusClientApproved SampleStatus = "CLIENT_APPROVED"
	StatusClientRejected SampleStatus = "CLIENT_REJECTED"
)

// ValidTransitions lists the legal sample status flow. Internal approval
// gates the client-facing leg.
var ValidTransitions = map[SampleStatus][]SampleStatus{
	StatusRequested:    {StatusSent},
	StatusSent:         {StatusReceived},
	StatusReceived:     {StatusApproved, StatusRejected},
	StatusApproved:     {StatusSentToClient},
	StatusSentToClient: {StatusClientApproved, StatusClientRejected},
}

// CanTransition reports whether from → to is a legal sample move.
func CanTransition(from, to SampleStatus) bool {
	for _, next := range ValidTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SubmissionStatus is the client-facing verdict for one (sample, opportunity)
// pair. Approval is per pair, never global to the sample.
type SubmissionStatus string

const (
	SubmissionSubmitted      SubmissionStatus = "SUBMITTED"
	SubmissionClientApproved SubmissionStatus = "CLIENT_APPROVED"
	SubmissionClientRejected SubmissionStatus = "CLIENT_REJECTED"
)

// Sample is a physical product sample sourced from a vendor.
type Sample struct {
	ID          int64
	VendorID    int64
	ProjectID   int64
	Status      SampleStatus
	PriceQuoted float64
	ImageURLs   []string
	Note        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Submission offers one sample against one opportunity.
type Submission struct {
	ID            int64
	SampleID      int64
	OpportunityID int64
	Status        SubmissionStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrNotFound indicates a missing sample or submission.
	ErrNotFound = errors.New("samples: not found")
)
