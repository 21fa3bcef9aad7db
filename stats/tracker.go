package stats

import (
	"time"

	"go.uber.org/zap"
)

// monthsRetained is how many months of counters are kept on disk
const monthsRetained = 12

// Tracker feeds both the in-memory usage statistics and the persisted
// monthly counters.
type Tracker struct {
	usage   *Usage
	storage *Storage
	logger  *zap.Logger
}

// NewTracker opens the monthly counters under dataDir
func NewTracker(dataDir string, logger *zap.Logger) (*Tracker, error) {
	storage, err := NewStorage(dataDir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	storage.Cleanup(monthsRetained)

	return &Tracker{
		usage:   NewUsage(),
		storage: storage,
		logger:  logger.Named("stats"),
	}, nil
}

// TrackVisitor records a request from ip
func (t *Tracker) TrackVisitor(ip string) {
	t.usage.TrackVisitor(ip)
}

// RecordAnalysis records the outcome of one provider call
func (t *Tracker) RecordAnalysis(url string, latency time.Duration, failed bool) {
	t.usage.TrackAnalysis(url, latency, failed)
	if failed {
		t.storage.IncrementStats(1, 1, 0, 0)
		return
	}
	t.storage.IncrementStats(1, 0, 0, 0)
}

// RecordRetrieval records the outcome of one metrics retrieval
func (t *Tracker) RecordRetrieval(failed bool) {
	t.usage.TrackRetrieval()
	if failed {
		t.storage.IncrementStats(0, 0, 1, 1)
		return
	}
	t.storage.IncrementStats(0, 0, 1, 0)
}

// Statistics returns the usage snapshot together with this month's counters
func (t *Tracker) Statistics(dev bool) map[string]any {
	snapshot := t.usage.Snapshot(dev)
	snapshot["currentMonth"] = t.storage.GetCurrentStats()
	if dev {
		snapshot["months"] = t.storage.GetAllMonths()
	}
	return snapshot
}

// Shutdown persists the counters and stops the background writer
func (t *Tracker) Shutdown() error {
	if err := t.storage.Shutdown(); err != nil {
		t.logger.Error("failed to persist statistics", zap.Error(err))
		return err
	}
	return nil
}
