package samples

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeflow-erp/tradeflow/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one transaction. Status mirrors (submission plus
// sample) must land together.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetSample returns one sample with its image URLs.
func (r *Repository) GetSample(ctx context.Context, id int64) (Sample, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, vendor_id, project_id, status, price_quoted, image_urls, note, created_at, updated_at FROM samples WHERE id = $1`, id)
	var s Sample
	if err := row.Scan(&s.ID, &s.VendorID, &s.ProjectID, &s.Status, &s.PriceQuoted, &s.ImageURLs, &s.Note, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sample{}, ErrNotFound
		}
		return Sample{}, err
	}
	return s, nil
}

// GetSubmission returns one submission.
func (r *Repository) GetSubmission(ctx context.Context, id int64) (Submission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, sample_id, opportunity_id, status, created_at, updated_at FROM sample_submissions WHERE id = $1`, id)
	return scanSubmission(row)
}

// FindSubmission looks up the submission for one (sample, opportunity) pair.
func (r *Repository) FindSubmission(ctx context.Context, sampleID, opportunityID int64) (Submission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, sample_id, opportunity_id, status, created_at, updated_at FROM sample_submissions WHERE sample_id = $1 AND opportunity_id = $2`,
		sampleID, opportunityID)
	return scanSubmission(row)
}

// ListSubmissionsBySample returns all submissions for a sample.
func (r *Repository) ListSubmissionsBySample(ctx context.Context, sampleID int64) ([]Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, sample_id, opportunity_id, status, created_at, updated_at FROM sample_submissions WHERE sample_id = $1 ORDER BY id`, sampleID)
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

// ListSubmissionsByOpportunity returns all submissions offered against an
// opportunity.
func (r *Repository) ListSubmissionsByOpportunity(ctx context.Context, opportunityID int64) ([]Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, sample_id, opportunity_id, status, created_at, updated_at FROM sample_submissions WHERE opportunity_id = $1 ORDER BY id`, opportunityID)
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

// ListByProject returns samples for one procurement project.
func (r *Repository) ListByProject(ctx context.Context, projectID int64) ([]Sample, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, vendor_id, project_id, status, price_quoted, image_urls, note, created_at, updated_at FROM samples WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.ID, &s.VendorID, &s.ProjectID, &s.Status, &s.PriceQuoted, &s.ImageURLs, &s.Note, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) CreateSample(ctx context.Context, s Sample) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO samples (vendor_id, project_id, status, price_quoted, image_urls, note) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		s.VendorID, s.ProjectID, string(s.Status), s.PriceQuoted, s.ImageURLs, s.Note).Scan(&id)
	return id, err
}

func (t *txRepository) UpdateSampleStatus(ctx context.Context, id int64, status SampleStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE samples SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	return err
}

func (t *txRepository) AppendImage(ctx context.Context, id int64, url string) error {
	_, err := t.tx.Exec(ctx, `UPDATE samples SET image_urls = array_append(image_urls, $1), updated_at = NOW() WHERE id = $2`, url, id)
	return err
}

func (t *txRepository) SetPriceQuoted(ctx context.Context, id int64, price float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE samples SET price_quoted = $1, updated_at = NOW() WHERE id = $2`, price, id)
	return err
}

func (t *txRepository) CreateSubmission(ctx context.Context, sub Submission) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO sample_submissions (sample_id, opportunity_id, status) VALUES ($1, $2, $3) RETURNING id`,
		sub.SampleID, sub.OpportunityID, string(sub.Status)).Scan(&id)
	return id, err
}

func (t *txRepository) UpdateSubmissionStatus(ctx context.Context, id int64, status SubmissionStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE sample_submissions SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	return err
}

func scanSubmission(row pgx.Row) (Submission, error) {
	var sub Submission
	if err := row.Scan(&sub.ID, &sub.SampleID, &sub.OpportunityID, &sub.Status, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Submission{}, ErrNotFound
		}
		return Submission{}, err
	}
	return sub, nil
}

func collectSubmissions(rows pgx.Rows) ([]Submission, error) {
	defer rows.Close()
	var items []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.SampleID, &sub.OpportunityID, &sub.Status, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, sub)
	}
	return items, rows.Err()
}
