package report

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Hashira10/render/internal/metrics"
)

// Overview is the cross-campaign report served to the console: every
// campaign summary plus the shared leaderboards.
type Overview struct {
	Campaigns   map[string]CampaignSummary `json:"campaigns"`
	Leaderboard Leaderboard                `json:"leaderboard"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// OverviewCache stores a built overview between requests. A nil cache
// disables caching and every request rebuilds from a fresh snapshot.
type OverviewCache interface {
	Get(ctx context.Context) (*Overview, bool)
	Set(ctx context.Context, ov *Overview)
	Invalidate(ctx context.Context)
}

// Service builds campaign reports from a storage source.
type Service struct {
	source  Source
	cache   OverviewCache
	metrics *metrics.Metrics
	logger  *zap.Logger
	noData  string
	now     func() time.Time
}

// NewService creates a report service. cache and m may be nil.
func NewService(src Source, cache OverviewCache, m *metrics.Metrics, logger *zap.Logger, noDataLabel string) *Service {
	if noDataLabel == "" {
		noDataLabel = NoData
	}
	return &Service{
		source:  src,
		cache:   cache,
		metrics: m,
		logger:  logger,
		noData:  noDataLabel,
		now:     time.Now,
	}
}

// Overview returns the cross-campaign report, serving a cached copy
// when one is available. On any snapshot failure the error wraps
// ErrDataUnavailable and no partial report is produced.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	if s.cache != nil {
		if ov, ok := s.cache.Get(ctx); ok {
			if s.metrics != nil {
				s.metrics.RecordCacheLookup(true)
			}
			return ov, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(false)
		}
	}

	start := s.now()
	snap, err := LoadSnapshot(ctx, s.source)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSnapshotFailure()
			s.metrics.RecordReportBuild("error", time.Since(start), 0)
		}
		s.logger.Error("snapshot fetch failed", zap.Error(err))
		return nil, err
	}

	summaries := Aggregate(snap.Messages, snap.ClickLogs, snap.CredentialLogs)
	board := ComputeLeaderboards(snap.Messages, snap.ClickLogs, snap.CredentialLogs, summaries).WithSentinel(s.noData)

	ov := &Overview{
		Campaigns:   summaries,
		Leaderboard: board,
		GeneratedAt: start,
	}

	if s.cache != nil {
		s.cache.Set(ctx, ov)
	}
	if s.metrics != nil {
		s.metrics.RecordReportBuild("ok", time.Since(start), len(summaries))
	}
	s.logger.Debug("overview built",
		zap.Int("campaigns", len(summaries)),
		zap.Int("messages", len(snap.Messages)),
		zap.Int("clicks", len(snap.ClickLogs)),
		zap.Int("credentials", len(snap.CredentialLogs)),
	)
	return ov, nil
}

// Campaign resolves a single campaign by name from a fresh snapshot.
// Unknown names return a *NotFoundError.
func (s *Service) Campaign(ctx context.Context, name string) (*CampaignDetail, error) {
	snap, err := LoadSnapshot(ctx, s.source)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSnapshotFailure()
		}
		s.logger.Error("snapshot fetch failed", zap.Error(err), zap.String("campaign", name))
		return nil, err
	}
	summaries := Aggregate(snap.Messages, snap.ClickLogs, snap.CredentialLogs)
	return ResolveCampaign(name, summaries, snap.ClickLogs, snap.CredentialLogs)
}

// InvalidateCache drops any cached overview. Ingest paths call this
// after writes so the next report reflects them.
func (s *Service) InvalidateCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
