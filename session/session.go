package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/uxsense/backend/analyzer"
	"github.com/uxsense/backend/report"
	"github.com/uxsense/backend/retrieval"
	"github.com/uxsense/backend/wizard"
)

// Session is one user's audit in progress
type Session struct {
	mu         sync.RWMutex
	url        string
	screenshot string
	metrics    analyzer.BehaviorMetrics
	result     *analyzer.AnalysisResult
	lastError  string
	wizard     *wizard.Machine

	analyzeGate  *semaphore.Weighted
	retrieveGate *semaphore.Weighted
	analyzing    atomic.Bool
	retrieving   atomic.Bool

	audit     AuditService
	retriever retrieval.Retriever
	recorder  RetrievalRecorder
	logger    *zap.Logger
}

// View is a copy of the session state for rendering
type View struct {
	URL           string
	Screenshot    string
	Metrics       analyzer.BehaviorMetrics
	Result        *analyzer.AnalysisResult
	Error         string
	Step          wizard.Step
	Steps         []wizard.NavItem
	HasResult     bool
	Analyzing     bool
	Retrieving    bool
	HasScreenshot bool
}

func newSession(audit AuditService, retriever retrieval.Retriever, recorder RetrievalRecorder, logger *zap.Logger) *Session {
	return &Session{
		metrics:      analyzer.DefaultMetrics(),
		wizard:       wizard.New(),
		analyzeGate:  semaphore.NewWeighted(1),
		retrieveGate: semaphore.NewWeighted(1),
		audit:        audit,
		retriever:    retriever,
		recorder:     recorder,
		logger:       logger,
	}
}

// SetTarget sets the URL to audit
func (s *Session) SetTarget(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = strings.TrimSpace(url)
}

// SetMetrics replaces the behavior metrics. The auto-retrieved flag survives
// only while the measured values are left as retrieved.
func (s *Session) SetMetrics(m analyzer.BehaviorMetrics) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m.AutoRetrieved = s.metrics.AutoRetrieved && sameMeasurements(s.metrics, m)
	s.metrics = m
	return nil
}

func sameMeasurements(a, b analyzer.BehaviorMetrics) bool {
	return a.ClickThroughRate == b.ClickThroughRate &&
		a.BounceRate == b.BounceRate &&
		a.SessionDurationSeconds == b.SessionDurationSeconds &&
		a.ScrollDepthPercent == b.ScrollDepthPercent &&
		a.PageViews == b.PageViews
}

// SetScreenshot stores the screenshot as a data URI. An empty string clears
// it.
func (s *Session) SetScreenshot(dataURI string) error {
	if dataURI != "" {
		if _, err := analyzer.DecodeDataURI(dataURI); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshot = dataURI
	return nil
}

// Navigate moves the wizard to step
func (s *Session) Navigate(step wizard.Step) error {
	return s.wizard.Navigate(step)
}

// Snapshot copies the state for a view
func (s *Session) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return View{
		URL:           s.url,
		Screenshot:    s.screenshot,
		Metrics:       s.metrics,
		Result:        s.result,
		Error:         s.lastError,
		Step:          s.wizard.Current(),
		Steps:         s.wizard.Steps(),
		HasResult:     s.wizard.HasResult(),
		Analyzing:     s.analyzing.Load(),
		Retrieving:    s.retrieving.Load(),
		HasScreenshot: s.screenshot != "",
	}
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = analyzer.UserMessage(err)
}

// Retrieve fills the metrics from the retriever. Only one retrieval runs at
// a time; a concurrent call fails with ErrBusy.
func (s *Session) Retrieve(ctx context.Context) (analyzer.BehaviorMetrics, error) {
	if !s.retrieveGate.TryAcquire(1) {
		return analyzer.BehaviorMetrics{}, ErrBusy
	}
	defer s.retrieveGate.Release(1)
	s.retrieving.Store(true)
	defer s.retrieving.Store(false)

	s.mu.RLock()
	url, current := s.url, s.metrics
	s.mu.RUnlock()

	if url == "" {
		err := &analyzer.ValidationError{Field: "url", Message: "Provide a URL to initiate automated retrieval."}
		s.setError(err)
		return current, err
	}

	next, err := s.retriever.Retrieve(ctx, url, current)
	if s.recorder != nil {
		s.recorder.RecordRetrieval(err != nil)
	}
	if err != nil {
		s.logger.Warn("retrieval failed", zap.String("url", url), zap.Error(err))
		s.setError(err)
		return current, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// fields edited during the retrieval keep their new values
	next.CrawlDepth = s.metrics.CrawlDepth
	next.AnalyticsPropertyID = s.metrics.AnalyticsPropertyID
	s.metrics = next
	s.lastError = ""

	s.logger.Info("metrics retrieved", zap.String("url", url))
	return next, nil
}

// Analyze runs one audit of the current target. On success the result is
// replaced and the wizard moves to the analysis step; on failure the step
// is unchanged and the error message is kept for display.
func (s *Session) Analyze(ctx context.Context) (*analyzer.AnalysisResult, error) {
	if !s.analyzeGate.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer s.analyzeGate.Release(1)
	s.analyzing.Store(true)
	defer s.analyzing.Store(false)

	s.mu.RLock()
	url, screenshot, metrics := s.url, s.screenshot, s.metrics
	s.mu.RUnlock()

	req, err := analyzer.BuildRequest(url, screenshot, metrics)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	if s.audit == nil {
		err := &analyzer.AnalysisError{Reason: "no provider configured"}
		s.setError(err)
		return nil, err
	}

	result, err := s.audit.Analyze(ctx, req)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	s.mu.Lock()
	s.result = result
	s.lastError = ""
	s.mu.Unlock()
	s.wizard.Complete()

	return result, nil
}

// ClearError dismisses the last error message
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
}

// Document returns the exportable report document
func (s *Session) Document() (report.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return report.Document{}, ErrNoResult
	}
	return report.Document{Metrics: s.metrics, Analysis: s.result}, nil
}

// Export renders the report document and its download filename
func (s *Session) Export() ([]byte, string, error) {
	doc, err := s.Document()
	if err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	url := s.url
	s.mu.RUnlock()

	data, err := report.Marshal(doc)
	if err != nil {
		return nil, "", err
	}
	return data, report.Filename(url), nil
}
