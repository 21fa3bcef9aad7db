// Package retrieval fills behavior metrics automatically. The only
// implementation today simulates an analytics and crawler integration.
package retrieval

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uxsense/backend/analyzer"
)

// DefaultDelay is how long a simulated retrieval takes
const DefaultDelay = 2 * time.Second

// Retriever replaces the measured fields of current with values obtained
// for url. A real analytics integration implements the same contract.
type Retriever interface {
	Retrieve(ctx context.Context, url string, current analyzer.BehaviorMetrics) (analyzer.BehaviorMetrics, error)
}

// Simulated draws plausible metrics from fixed ranges after a delay
type Simulated struct {
	delay  time.Duration
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a stub retriever. A nil rng is seeded from the clock.
func NewSimulated(delay time.Duration, rng *rand.Rand, logger *zap.Logger) *Simulated {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{
		delay:  delay,
		rng:    rng,
		logger: logger.Named("retrieval"),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Retrieve implements Retriever. Crawl depth and the analytics property id
// are left as they are.
func (s *Simulated) Retrieve(ctx context.Context, url string, current analyzer.BehaviorMetrics) (analyzer.BehaviorMetrics, error) {
	if strings.TrimSpace(url) == "" {
		return current, &analyzer.ValidationError{Field: "url", Message: "Provide a URL to initiate automated retrieval."}
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return current, ctx.Err()
		}
	}

	s.mu.Lock()
	next := current
	next.ClickThroughRate = round2(s.rng.Float64()*4 + 1)
	next.BounceRate = round2(s.rng.Float64()*30 + 30)
	next.SessionDurationSeconds = int(s.rng.Float64()*200 + 60)
	next.ScrollDepthPercent = math.Floor(s.rng.Float64()*40 + 40)
	next.PageViews = int(s.rng.Float64()*50000 + 5000)
	next.AutoRetrieved = true
	s.mu.Unlock()

	s.logger.Debug("metrics retrieved",
		zap.String("url", url),
		zap.Float64("ctr", next.ClickThroughRate),
		zap.Float64("bounceRate", next.BounceRate),
		zap.Int("pageViews", next.PageViews))
	return next, nil
}
