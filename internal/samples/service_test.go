package samples

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

type memorySampleRepo struct {
	samples     map[int64]Sample
	submissions map[int64]Submission
	nextID      int64
}

func newMemorySampleRepo() *memorySampleRepo {
	return &memorySampleRepo{
		samples:     make(map[int64]Sample),
		submissions: make(map[int64]Submission),
	}
}

func (r *memorySampleRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memorySampleRepo) GetSample(ctx context.Context, id int64) (Sample, error) {
	s, ok := r.samples[id]
	if !ok {
		return Sample{}, ErrNotFound
	}
	return s, nil
}

func (r *memorySampleRepo) GetSubmission(ctx context.Context, id int64) (Submission, error) {
	sub, ok := r.submissions[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	return sub, nil
}

func (r *memorySampleRepo) ListSubmissionsBySample(ctx context.Context, sampleID int64) ([]Submission, error) {
	var items []Submission
	for _, sub := range r.submissions {
		if sub.SampleID == sampleID {
			items = append(items, sub)
		}
	}
	return items, nil
}

func (r *memorySampleRepo) ListSubmissionsByOpportunity(ctx context.Context, opportunityID int64) ([]Submission, error) {
	var items []Submission
	for _, sub := range r.submissions {
		if sub.OpportunityID == opportunityID {
			items = append(items, sub)
		}
	}
	return items, nil
}

func (r *memorySampleRepo) FindSubmission(ctx context.Context, sampleID, opportunityID int64) (Submission, error) {
	for _, sub := range r.submissions {
		if sub.SampleID == sampleID && sub.OpportunityID == opportunityID {
			return sub, nil
		}
	}
	return Submission{}, ErrNotFound
}

func (r *memorySampleRepo) CreateSample(ctx context.Context, s Sample) (int64, error) {
	r.nextID++
	s.ID = r.nextID
	r.samples[s.ID] = s
	return s.ID, nil
}

func (r *memorySampleRepo) UpdateSampleStatus(ctx context.Context, id int64, status SampleStatus) error {
	s := r.samples[id]
	s.Status = status
	r.samples[id] = s
	return nil
}

func (r *memorySampleRepo) AppendImage(ctx context.Context, id int64, url string) error {
	s := r.samples[id]
	s.ImageURLs = append(s.ImageURLs, url)
	r.samples[id] = s
	return nil
}

func (r *memorySampleRepo) SetPriceQuoted(ctx context.Context, id int64, price float64) error {
	s := r.samples[id]
	s.PriceQuoted = price
	r.samples[id] = s
	return nil
}

func (r *memorySampleRepo) CreateSubmission(ctx context.Context, sub Submission) (int64, error) {
	r.nextID++
	sub.ID = r.nextID
	r.submissions[sub.ID] = sub
	return sub.ID, nil
}

func (r *memorySampleRepo) UpdateSubmissionStatus(ctx context.Context, id int64, status SubmissionStatus) error {
	sub := r.submissions[id]
	sub.Status = status
	r.submissions[id] = sub
	return nil
}

func newTestService() (*Service, *memorySampleRepo) {
	repo := newMemorySampleRepo()
	return NewService(repo, nil), repo
}

func seedSample(t *testing.T, svc *Service, status SampleStatus) Sample {
	t.Helper()
	sample, err := svc.Request(context.Background(), RequestInput{VendorID: 1, ProjectID: 1})
	require.NoError(t, err)
	for _, step := range pathTo(status) {
		require.NoError(t, svc.Transition(context.Background(), sample.ID, step))
	}
	s, err := svc.Get(context.Background(), sample.ID)
	require.NoError(t, err)
	return s
}

func pathTo(status SampleStatus) []SampleStatus {
	switch status {
	case StatusRequested:
		return nil
	case StatusSent:
		return []SampleStatus{StatusSent}
	case StatusReceived:
		return []SampleStatus{StatusSent, StatusReceived}
	case StatusApproved:
		return []SampleStatus{StatusSent, StatusReceived, StatusApproved}
	case StatusRejected:
		return []SampleStatus{StatusSent, StatusReceived, StatusRejected}
	case StatusSentToClient:
		return []SampleStatus{StatusSent, StatusReceived, StatusApproved, StatusSentToClient}
	}
	return nil
}

func TestTransitionRejectsIllegalJump(t *testing.T) {
	svc, _ := newTestService()
	sample := seedSample(t, svc, StatusRequested)

	err := svc.Transition(context.Background(), sample.ID, StatusApproved)
	var serr *shared.StateError
	require.ErrorAs(t, err, &serr)

	require.NoError(t, svc.Transition(context.Background(), sample.ID, StatusSent))
	got, err := svc.Get(context.Background(), sample.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, got.Status)
}

func TestSubmitRequiresInternalApproval(t *testing.T) {
	svc, _ := newTestService()
	sample := seedSample(t, svc, StatusReceived)

	_, err := svc.SubmitToOpportunity(context.Background(), sample.ID, 10)
	var serr *shared.StateError
	require.ErrorAs(t, err, &serr)
}

func TestSubmitAdvancesApprovedSample(t *testing.T) {
	svc, _ := newTestService()
	sample := seedSample(t, svc, StatusApproved)

	sub, err := svc.SubmitToOpportunity(context.Background(), sample.ID, 10)
	require.NoError(t, err)
	require.Equal(t, SubmissionSubmitted, sub.Status)

	got, err := svc.Get(context.Background(), sample.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSentToClient, got.Status)

	// Resubmitting the same pair returns the existing submission.
	again, err := svc.SubmitToOpportunity(context.Background(), sample.ID, 10)
	require.NoError(t, err)
	require.Equal(t, sub.ID, again.ID)
}

func TestReviewMirrorsVerdictPerPair(t *testing.T) {
	svc, repo := newTestService()
	sample := seedSample(t, svc, StatusApproved)
	ctx := context.Background()

	subA, err := svc.SubmitToOpportunity(ctx, sample.ID, 10)
	require.NoError(t, err)
	subB, err := svc.SubmitToOpportunity(ctx, sample.ID, 20)
	require.NoError(t, err)

	require.NoError(t, svc.ReviewSubmission(ctx, subA.ID, true))
	got, err := svc.Get(ctx, sample.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClientApproved, got.Status)

	// A later rejection on another pair does not demote the sample while an
	// approval stands.
	require.NoError(t, svc.ReviewSubmission(ctx, subB.ID, false))
	got, err = svc.Get(ctx, sample.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClientApproved, got.Status)
	require.Equal(t, SubmissionClientRejected, repo.submissions[subB.ID].Status)

	err = svc.ReviewSubmission(ctx, subB.ID, true)
	var serr *shared.StateError
	require.ErrorAs(t, err, &serr)
}

func TestReviewRejectionWithoutApprovals(t *testing.T) {
	svc, _ := newTestService()
	sample := seedSample(t, svc, StatusApproved)
	ctx := context.Background()

	sub, err := svc.SubmitToOpportunity(ctx, sample.ID, 10)
	require.NoError(t, err)

	require.NoError(t, svc.ReviewSubmission(ctx, sub.ID, false))
	got, err := svc.Get(ctx, sample.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClientRejected, got.Status)
}
