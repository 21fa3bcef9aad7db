package stats

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Usage holds in-memory request statistics for the running process
type Usage struct {
	mutex          sync.RWMutex
	uniqueVisitors map[string]time.Time // IP -> last visit
	analyses       int
	failures       int
	retrievals     int
	popularURLs    map[string]int
	totalLatency   time.Duration
	now            func() time.Time
}

// HostCount is one entry of the popular URL ranking
type HostCount struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// NewUsage creates empty usage statistics
func NewUsage() *Usage {
	return &Usage{
		uniqueVisitors: make(map[string]time.Time),
		popularURLs:    make(map[string]int),
		now:            time.Now,
	}
}

// TrackVisitor records a unique visitor
func (u *Usage) TrackVisitor(ip string) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.uniqueVisitors[ip] = u.now()
}

// cleanURL reduces an audited URL to scheme, host and path.
// Local addresses are not tracked.
func cleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return ""
	}

	cleaned := u.Scheme + "://" + strings.ToLower(u.Host)
	if u.Path != "" && u.Path != "/" {
		cleaned += u.Path
	}
	return strings.TrimSuffix(cleaned, "/")
}

// TrackAnalysis records one provider call
func (u *Usage) TrackAnalysis(rawURL string, latency time.Duration, failed bool) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.analyses++
	if cleaned := cleanURL(rawURL); cleaned != "" {
		u.popularURLs[cleaned]++
	}
	if failed {
		u.failures++
	}
	u.totalLatency += latency
}

// TrackRetrieval records one metrics retrieval
func (u *Usage) TrackRetrieval() {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.retrievals++
}

func (u *Usage) visitorsSince(cutoff time.Time) int {
	count := 0
	for _, lastVisit := range u.uniqueVisitors {
		if lastVisit.After(cutoff) {
			count++
		}
	}
	return count
}

func (u *Usage) topURLs(n int) []HostCount {
	ranked := make([]HostCount, 0, len(u.popularURLs))
	for link, count := range u.popularURLs {
		ranked = append(ranked, HostCount{URL: link, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].URL < ranked[j].URL
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Snapshot returns the statistics as a JSON-ready map. Audited URLs are
// only included in development mode.
func (u *Usage) Snapshot(dev bool) map[string]any {
	u.mutex.RLock()
	defer u.mutex.RUnlock()

	errorRate := 0.0
	averageLatency := 0.0
	if u.analyses > 0 {
		errorRate = float64(u.failures) / float64(u.analyses) * 100
		averageLatency = float64(u.totalLatency.Milliseconds()) / float64(u.analyses)
	}

	snapshot := map[string]any{
		"uniqueVisitors24h": u.visitorsSince(u.now().Add(-24 * time.Hour)),
		"totalAnalyses":     u.analyses,
		"totalRetrievals":   u.retrievals,
		"errorRate":         errorRate,
		"averageLatencyMs":  averageLatency,
	}
	if dev {
		snapshot["popularUrls"] = u.topURLs(5)
	}
	return snapshot
}
