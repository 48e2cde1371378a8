package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hashira10/render/internal/metrics"
	"github.com/Hashira10/render/internal/models"
)

// fakeSource is a Source with per-collection failure injection and a
// call counter for cache tests.
type fakeSource struct {
	mu       sync.Mutex
	messages []*models.Message
	clicks   []*models.ClickLog
	creds    []*models.CredentialLog

	failMessages error
	failClicks   error
	failCreds    error

	calls int
}

func (f *fakeSource) ListMessages(ctx context.Context) ([]*models.Message, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failMessages != nil {
		return nil, f.failMessages
	}
	return f.messages, nil
}

func (f *fakeSource) ListClickLogs(ctx context.Context) ([]*models.ClickLog, error) {
	if f.failClicks != nil {
		return nil, f.failClicks
	}
	return f.clicks, nil
}

func (f *fakeSource) ListCredentialLogs(ctx context.Context) ([]*models.CredentialLog, error) {
	if f.failCreds != nil {
		return nil, f.failCreds
	}
	return f.creds, nil
}

func TestLoadSnapshot(t *testing.T) {
	r1 := recipient("r1")
	src := &fakeSource{
		messages: []*models.Message{message("m1", "Q1", "Invoice", "Finance", r1)},
		clicks:   []*models.ClickLog{click("m1", &r1, "facebook")},
		creds:    []*models.CredentialLog{credential("m1", &r1, "facebook")},
	}

	snap, err := LoadSnapshot(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 1)
	assert.Len(t, snap.ClickLogs, 1)
	assert.Len(t, snap.CredentialLogs, 1)
}

func TestLoadSnapshotFailsWholesale(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name string
		src  *fakeSource
	}{
		{"messages", &fakeSource{failMessages: boom}},
		{"clicks", &fakeSource{failClicks: boom}},
		{"credentials", &fakeSource{failCreds: boom}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap, err := LoadSnapshot(context.Background(), tc.src)
			assert.Nil(t, snap)
			assert.ErrorIs(t, err, ErrDataUnavailable)
		})
	}
}

func TestLoadSnapshotRetryAfterFailure(t *testing.T) {
	// A failed read leaves nothing behind; fixing the source and
	// retrying succeeds with fresh data.
	src := &fakeSource{failClicks: errors.New("boom")}

	_, err := LoadSnapshot(context.Background(), src)
	require.Error(t, err)

	src.failClicks = nil
	src.clicks = []*models.ClickLog{click("m1", nil, "facebook")}

	snap, err := LoadSnapshot(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, snap.ClickLogs, 1)
}

// memCache is a trivial OverviewCache for service tests.
type memCache struct {
	mu sync.Mutex
	ov *Overview
}

func (c *memCache) Get(ctx context.Context) (*Overview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ov, c.ov != nil
}

func (c *memCache) Set(ctx context.Context, ov *Overview) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ov = ov
}

func (c *memCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ov = nil
}

func TestServiceOverview(t *testing.T) {
	r1 := recipient("r1")
	src := &fakeSource{
		messages: []*models.Message{message("m1", "Q1", "Invoice", "Finance", r1)},
		clicks:   []*models.ClickLog{click("m1", &r1, "facebook")},
	}
	svc := NewService(src, nil, nil, zap.NewNop(), "")

	ov, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ov.Campaigns["Q1"].UniqueClickUsers)
	assert.Equal(t, "facebook", ov.Leaderboard.TopClickPlatform)
	assert.Equal(t, NoData, ov.Leaderboard.TopCredentialPlatform)
	assert.WithinDuration(t, time.Now(), ov.GeneratedAt, time.Minute)
}

func TestServiceOverviewCustomSentinel(t *testing.T) {
	src := &fakeSource{
		messages: []*models.Message{message("m1", "Q1", "Invoice", "Finance", recipient("r1"))},
	}
	svc := NewService(src, nil, nil, zap.NewNop(), "n/a")

	ov, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n/a", ov.Leaderboard.TopClickPlatform)
}

func TestServiceOverviewUsesCache(t *testing.T) {
	src := &fakeSource{
		messages: []*models.Message{message("m1", "Q1", "Invoice", "Finance", recipient("r1"))},
	}
	cache := &memCache{}
	svc := NewService(src, cache, nil, zap.NewNop(), "")

	_, err := svc.Overview(context.Background())
	require.NoError(t, err)
	_, err = svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	svc.InvalidateCache(context.Background())
	_, err = svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestServiceOverviewPropagatesFetchFailure(t *testing.T) {
	src := &fakeSource{failCreds: errors.New("store down")}
	svc := NewService(src, nil, nil, zap.NewNop(), "")

	ov, err := svc.Overview(context.Background())
	assert.Nil(t, ov)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestServiceCampaignNotFound(t *testing.T) {
	src := &fakeSource{
		messages: []*models.Message{message("m1", "Q1", "Invoice", "Finance", recipient("r1"))},
	}
	svc := NewService(src, nil, nil, zap.NewNop(), "")

	_, err := svc.Campaign(context.Background(), "Missing")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Missing", notFound.Name)
}

func TestServiceFailureIncrementsSnapshotCounter(t *testing.T) {
	// Prometheus collectors register globally, so this is the only
	// test in the package that constructs a Metrics instance.
	m := metrics.NewMetrics("report_test")
	src := &fakeSource{failClicks: errors.New("store down")}
	svc := NewService(src, nil, m, zap.NewNop(), "")

	_, err := svc.Overview(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotFailures))

	_, err = svc.Campaign(context.Background(), "Q1")
	require.Error(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SnapshotFailures))
}
