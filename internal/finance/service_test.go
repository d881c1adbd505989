package finance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubLedger struct {
	revenue float64
	cogs    float64
	calls   int
}

func (s *stubLedger) SumByType(ctx context.Context, from, to string) (float64, float64, error) {
	s.calls++
	return s.revenue, s.cogs, nil
}

func (s *stubLedger) PaymentDrift(ctx context.Context, tolerance float64) ([]DriftRecord, error) {
	return nil, nil
}

func TestSummaryComputesMargin(t *testing.T) {
	ledger := &stubLedger{revenue: 10000, cogs: 6500}
	svc := NewService(ledger, nil, time.Minute)

	s, err := svc.Summary(context.Background(), "2026-01-01", "2026-02-01")
	require.NoError(t, err)
	require.Equal(t, 3500.0, s.GrossMargin)
	require.Equal(t, 35.0, s.MarginPercent)
	require.Equal(t, "10,000.00", s.RevenueDisplay)
	require.Equal(t, "6,500.00", s.COGSDisplay)
}

func TestSummaryZeroRevenue(t *testing.T) {
	svc := NewService(&stubLedger{}, nil, time.Minute)
	s, err := svc.Summary(context.Background(), "", "")
	require.NoError(t, err)
	require.Equal(t, 0.0, s.MarginPercent)
}

func TestSummaryCachedUntilInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ledger := &stubLedger{revenue: 100, cogs: 40}
	svc := NewService(ledger, client, time.Minute)
	ctx := context.Background()

	_, err := svc.Summary(ctx, "2026-01-01", "2026-02-01")
	require.NoError(t, err)
	_, err = svc.Summary(ctx, "2026-01-01", "2026-02-01")
	require.NoError(t, err)
	require.Equal(t, 1, ledger.calls)

	// A ledger movement bumps the version; the next read recomputes.
	ledger.revenue = 200
	require.NoError(t, svc.Invalidate(ctx))
	s, err := svc.Summary(ctx, "2026-01-01", "2026-02-01")
	require.NoError(t, err)
	require.Equal(t, 2, ledger.calls)
	require.Equal(t, 200.0, s.Revenue)
}
