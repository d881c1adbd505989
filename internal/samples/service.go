package samples

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSample(ctx context.Context, id int64) (Sample, error)
	GetSubmission(ctx context.Context, id int64) (Submission, error)
	ListSubmissionsBySample(ctx context.Context, sampleID int64) ([]Submission, error)
	ListSubmissionsByOpportunity(ctx context.Context, opportunityID int64) ([]Submission, error)
	FindSubmission(ctx context.Context, sampleID, opportunityID int64) (Submission, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateSample(ctx context.Context, s Sample) (int64, error)
	UpdateSampleStatus(ctx context.Context, id int64, status SampleStatus) error
	AppendImage(ctx context.Context, id int64, url string) error
	SetPriceQuoted(ctx context.Context, id int64, price float64) error
	CreateSubmission(ctx context.Context, sub Submission) (int64, error)
	UpdateSubmissionStatus(ctx context.Context, id int64, status SubmissionStatus) error
}

// AuditPort records mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the sample evaluation workflow.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs the sample service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// RequestInput describes a new sample request.
type RequestInput struct {
	VendorID    int64
	ProjectID   int64
	PriceQuoted float64
	Note        string
}

// Request registers a new vendor sample in REQUESTED state.
func (s *Service) Request(ctx context.Context, input RequestInput) (Sample, error) {
	verr := &shared.ValidationError{}
	if input.VendorID == 0 {
		verr.Add("vendor is required")
	}
	if input.ProjectID == 0 {
		verr.Add("project is required")
	}
	if verr.HasViolations() {
		return Sample{}, verr
	}
	sample := Sample{VendorID: input.VendorID, ProjectID: input.ProjectID, Status: StatusRequested, PriceQuoted: input.PriceQuoted, Note: input.Note}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateSample(ctx, sample)
		if err != nil {
			return err
		}
		sample.ID = id
		return nil
	})
	if err != nil {
		return Sample{}, err
	}
	s.recordAudit(ctx, "SAMPLE_REQUEST", sample.ID, map[string]any{"vendor_id": input.VendorID, "project_id": input.ProjectID})
	return sample, nil
}

// Transition moves a sample along the workflow, rejecting illegal jumps.
func (s *Service) Transition(ctx context.Context, sampleID int64, target SampleStatus) error {
	sample, err := s.repo.GetSample(ctx, sampleID)
	if err != nil {
		return err
	}
	if !CanTransition(sample.Status, target) {
		return shared.NewStateError(fmt.Sprintf("sample cannot move from %s to %s", sample.Status, target))
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateSampleStatus(ctx, sampleID, target)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "SAMPLE_TRANSITION", sampleID, map[string]any{"from": string(sample.Status), "to": string(target)})
	return nil
}

// AttachImage stores an uploaded image URL. The URL is opaque; upload
// mechanics live elsewhere.
func (s *Service) AttachImage(ctx context.Context, sampleID int64, url string) error {
	if strings.TrimSpace(url) == "" {
		return shared.NewValidationError("image URL is required")
	}
	if _, err := s.repo.GetSample(ctx, sampleID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.AppendImage(ctx, sampleID, url)
	})
}

// QuotePrice records the vendor's quoted price.
func (s *Service) QuotePrice(ctx context.Context, sampleID int64, price float64) error {
	if price <= 0 {
		return shared.NewValidationError("quoted price must be greater than zero")
	}
	if _, err := s.repo.GetSample(ctx, sampleID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetPriceQuoted(ctx, sampleID, price)
	})
}

// SubmitToOpportunity offers a sample against one opportunity. The sample
// must have passed internal approval; an APPROVED sample moves to
// SENT_TO_CLIENT in the same transaction.
func (s *Service) SubmitToOpportunity(ctx context.Context, sampleID, opportunityID int64) (Submission, error) {
	sample, err := s.repo.GetSample(ctx, sampleID)
	if err != nil {
		return Submission{}, err
	}
	switch sample.Status {
	case StatusApproved, StatusSentToClient, StatusClientApproved, StatusClientRejected:
	default:
		return Submission{}, shared.NewStateError("sample must pass internal approval before it can be offered to a client")
	}
	if existing, err := s.repo.FindSubmission(ctx, sampleID, opportunityID); err == nil {
		return existing, nil
	}

	sub := Submission{SampleID: sampleID, OpportunityID: opportunityID, Status: SubmissionSubmitted}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateSubmission(ctx, sub)
		if err != nil {
			return err
		}
		sub.ID = id
		if sample.Status == StatusApproved {
			return tx.UpdateSampleStatus(ctx, sampleID, StatusSentToClient)
		}
		return nil
	})
	if err != nil {
		return Submission{}, err
	}
	s.recordAudit(ctx, "SAMPLE_SUBMIT", sampleID, map[string]any{"opportunity_id": opportunityID})
	return sub, nil
}

// ReviewSubmission records the client verdict for one (sample, opportunity)
// pair and mirrors it onto the sample. A rejection only marks the sample
// CLIENT_REJECTED when no other submission is approved.
func (s *Service) ReviewSubmission(ctx context.Context, submissionID int64, approved bool) error {
	sub, err := s.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub.Status != SubmissionSubmitted {
		return shared.NewStateError("submission has already been reviewed")
	}
	siblings, err := s.repo.ListSubmissionsBySample(ctx, sub.SampleID)
	if err != nil {
		return err
	}

	target := SubmissionClientRejected
	if approved {
		target = SubmissionClientApproved
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateSubmissionStatus(ctx, submissionID, target); err != nil {
			return err
		}
		if approved {
			return tx.UpdateSampleStatus(ctx, sub.SampleID, StatusClientApproved)
		}
		for _, sibling := range siblings {
			if sibling.ID != sub.ID && sibling.Status == SubmissionClientApproved {
				return nil
			}
		}
		return tx.UpdateSampleStatus(ctx, sub.SampleID, StatusClientRejected)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "SAMPLE_REVIEW", sub.SampleID, map[string]any{"submission_id": submissionID, "approved": approved})
	return nil
}

// Get returns one sample.
func (s *Service) Get(ctx context.Context, id int64) (Sample, error) {
	return s.repo.GetSample(ctx, id)
}

// SubmissionsForOpportunity lists submissions offered against an opportunity.
// The opportunity pipeline gates close-won on these.
func (s *Service) SubmissionsForOpportunity(ctx context.Context, opportunityID int64) ([]Submission, error) {
	return s.repo.ListSubmissionsByOpportunity(ctx, opportunityID)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "sample", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
