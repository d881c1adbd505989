package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LedgerPort aggregates the append-only transaction log.
type LedgerPort interface {
	SumByType(ctx context.Context, from, to string) (revenue, cogs float64, err error)
	PaymentDrift(ctx context.Context, tolerance float64) ([]DriftRecord, error)
}

// DriftRecord reports a document whose pending amount no longer matches the
// ledger. The nightly integrity scan surfaces these; nothing auto-repairs.
type DriftRecord struct {
	DocumentID int64   `json:"document_id"`
	Kind       string  `json:"kind"`
	Expected   float64 `json:"expected"`
	Actual     float64 `json:"actual"`
}

// Service serves cached financial summaries.
type Service struct {
	ledger  LedgerPort
	cache   *redis.Client
	ttl     time.Duration
	printer *message.Printer
}

// NewService constructs the finance service. A nil cache disables caching.
func NewService(ledger LedgerPort, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		ledger:  ledger,
		cache:   cache,
		ttl:     ttl,
		printer: message.NewPrinter(language.English),
	}
}

const summaryVersionKey = "finance:summary:version"

// Summary aggregates revenue and cost of goods for the period. Results are
// cached under a version that payment application bumps, so a stale summary
// never outlives the ledger change that made it stale.
func (s *Service) Summary(ctx context.Context, from, to string) (Summary, error) {
	key, err := s.cacheKey(ctx, from, to)
	if err == nil && key != "" {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached Summary
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	revenue, cogs, err := s.ledger.SumByType(ctx, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate ledger: %w", err)
	}
	summary := buildSummary(from, to, revenue, cogs)
	summary.RevenueDisplay = s.printer.Sprintf("%.2f", summary.Revenue)
	summary.COGSDisplay = s.printer.Sprintf("%.2f", summary.COGS)
	summary.GrossMarginDisplay = s.printer.Sprintf("%.2f", summary.GrossMargin)

	if key != "" {
		if raw, err := json.Marshal(summary); err == nil {
			s.cache.Set(ctx, key, raw, s.ttl)
		}
	}
	return summary, nil
}

// Invalidate bumps the cache version, orphaning every cached summary. Old
// entries expire on their own TTL.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Incr(ctx, summaryVersionKey).Err()
}

// PaymentDrift exposes the integrity scan for the nightly job.
func (s *Service) PaymentDrift(ctx context.Context, tolerance float64) ([]DriftRecord, error) {
	return s.ledger.PaymentDrift(ctx, tolerance)
}

func (s *Service) cacheKey(ctx context.Context, from, to string) (string, error) {
	if s.cache == nil {
		return "", nil
	}
	version, err := s.cache.Get(ctx, summaryVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("finance:summary:v%d:%s:%s", version, from, to), nil
}
