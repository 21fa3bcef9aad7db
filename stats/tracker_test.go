package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCleanURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com", "https://example.com"},
		{"https://Example.com/pricing/", "https://example.com/pricing"},
		{"https://example.com/?utm=1", "https://example.com"},
		{"example.com/shop", "https://example.com/shop"},
		{"http://localhost:8080/api/analyze", ""},
		{"http://127.0.0.1", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanURL(tt.in))
		})
	}
}

func TestUsageSnapshot(t *testing.T) {
	usage := NewUsage()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	usage.now = func() time.Time { return now }

	usage.TrackVisitor("10.0.0.1")
	usage.TrackVisitor("10.0.0.2")
	now = now.Add(25 * time.Hour)
	usage.TrackVisitor("10.0.0.2")

	usage.TrackAnalysis("https://example.com", 100*time.Millisecond, false)
	usage.TrackAnalysis("https://example.com/", 300*time.Millisecond, true)
	usage.TrackAnalysis("https://shop.test", 200*time.Millisecond, false)
	usage.TrackRetrieval()

	t.Run("Production", func(t *testing.T) {
		snapshot := usage.Snapshot(false)
		assert.Equal(t, 1, snapshot["uniqueVisitors24h"])
		assert.Equal(t, 3, snapshot["totalAnalyses"])
		assert.Equal(t, 1, snapshot["totalRetrievals"])
		assert.InDelta(t, 33.33, snapshot["errorRate"], 0.01)
		assert.InDelta(t, 200.0, snapshot["averageLatencyMs"], 0.001)
		assert.NotContains(t, snapshot, "popularUrls")
	})

	t.Run("Development", func(t *testing.T) {
		snapshot := usage.Snapshot(true)
		require.Contains(t, snapshot, "popularUrls")
		assert.Equal(t, []HostCount{
			{URL: "https://example.com", Count: 2},
			{URL: "https://shop.test", Count: 1},
		}, snapshot["popularUrls"])
	})
}

func TestTracker(t *testing.T) {
	dir := t.TempDir()

	tracker, err := NewTracker(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	tracker.TrackVisitor("192.168.1.5")
	tracker.RecordAnalysis("https://example.com", time.Second, false)
	tracker.RecordAnalysis("https://example.com", time.Second, true)
	tracker.RecordRetrieval(false)

	statistics := tracker.Statistics(false)
	month, ok := statistics["currentMonth"].(MonthlyStats)
	require.True(t, ok)
	assert.Equal(t, 2, month.Analyses)
	assert.Equal(t, 1, month.AnalysisFailures)
	assert.Equal(t, 1, month.Retrievals)
	assert.Equal(t, 0, month.RetrievalFailures)
	assert.NotContains(t, statistics, "months")

	require.NoError(t, tracker.Shutdown())

	reopened, err := NewTracker(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer reopened.Shutdown()

	month = reopened.Statistics(true)["currentMonth"].(MonthlyStats)
	assert.Equal(t, 2, month.Analyses, "monthly counters survive a restart")
	assert.Contains(t, reopened.Statistics(true), "months")
}
