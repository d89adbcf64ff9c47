package report

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"smartledger/backend/internal/cache"
	"smartledger/backend/internal/domain"
	"smartledger/backend/internal/metrics"
)

const SummaryKey = "dashboard:summary"

type StatsSource interface {
	GetLedgerStats(ctx context.Context) (domain.LedgerStats, error)
}

// Builder assembles the dashboard from store aggregates and keeps the last
// result in the summary cache until a ledger write invalidates it.
type Builder struct {
	source   StatsSource
	cache    cache.SummaryCache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewBuilder(source StatsSource, cacheStore cache.SummaryCache, cacheTTL time.Duration, m *metrics.Metrics, log *zap.Logger) *Builder {
	if cacheStore == nil {
		cacheStore = cache.NoopSummaryCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Builder{
		source:   source,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

func (b *Builder) Summary(ctx context.Context) (domain.DashboardSummary, error) {
	cached, ok, err := b.cache.Get(ctx, SummaryKey)
	if err != nil {
		b.log.Warn("dashboard cache read failed", zap.Error(err))
	}
	if err == nil && ok {
		b.metrics.CacheLookup(true)
		cached.Cached = true
		return *cached, nil
	}
	b.metrics.CacheLookup(false)

	stats, err := b.source.GetLedgerStats(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	summary := Build(stats, b.now())
	if err := b.cache.Set(ctx, SummaryKey, &summary, b.cacheTTL); err != nil {
		b.log.Warn("dashboard cache write failed", zap.Error(err))
	}
	return summary, nil
}

// Invalidate drops the cached summary. Failures are logged only: a stale
// dashboard expires on its own after the TTL.
func (b *Builder) Invalidate(ctx context.Context) {
	if err := b.cache.Invalidate(ctx, SummaryKey); err != nil {
		b.log.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

// Build derives the dashboard KPIs from raw ledger aggregates.
func Build(stats domain.LedgerStats, generatedAt time.Time) domain.DashboardSummary {
	summary := domain.DashboardSummary{
		LedgerStats: stats,
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
	}
	if stats.Totals.Orders > 0 {
		summary.AverageTicketCents = decimal.NewFromInt(stats.Totals.RevenueCents).
			Div(decimal.NewFromInt(stats.Totals.Orders)).
			Round(0).
			IntPart()
	}

	byProduct := make([]domain.BreakdownRow, len(stats.ByProduct))
	copy(byProduct, stats.ByProduct)
	sort.SliceStable(byProduct, func(i, j int) bool {
		if byProduct[i].RevenueCents == byProduct[j].RevenueCents {
			return byProduct[i].Key < byProduct[j].Key
		}
		return byProduct[i].RevenueCents > byProduct[j].RevenueCents
	})
	summary.ByProduct = byProduct

	if summary.ByPaymentType == nil {
		summary.ByPaymentType = []domain.BreakdownRow{}
	}
	if summary.ByStatus == nil {
		summary.ByStatus = []domain.BreakdownRow{}
	}
	return summary
}
