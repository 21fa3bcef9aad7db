package analyzer

// BehaviorMetrics describes how visitors behave on the audited website
type BehaviorMetrics struct {
	ClickThroughRate       float64 `json:"ctr" form:"ctr" binding:"gte=0"`
	BounceRate             float64 `json:"bounceRate" form:"bounceRate" binding:"gte=0,lte=100"`
	SessionDurationSeconds int     `json:"sessionDuration" form:"sessionDuration" binding:"gte=0"`
	ScrollDepthPercent     float64 `json:"scrollDepth" form:"scrollDepth" binding:"gte=0,lte=100"`
	PageViews              int     `json:"pageViews" form:"pageViews" binding:"gte=0"`
	CrawlDepth             int     `json:"crawlingDepth" form:"crawlingDepth" binding:"gte=0,lte=2"`
	AnalyticsPropertyID    string  `json:"ga4PropertyId,omitempty" form:"ga4PropertyId"`
	AutoRetrieved          bool    `json:"isAutoRetrieved,omitempty" form:"-"`
}

// DefaultMetrics returns the manual values a fresh session starts with
func DefaultMetrics() BehaviorMetrics {
	return BehaviorMetrics{
		ClickThroughRate:       2.1,
		BounceRate:             42,
		SessionDurationSeconds: 95,
		ScrollDepthPercent:     55,
		PageViews:              12500,
		CrawlDepth:             0,
	}
}

// Validate checks every field against its documented range
func (m BehaviorMetrics) Validate() error {
	switch {
	case m.ClickThroughRate < 0:
		return &ValidationError{Field: "ctr", Message: "Click-through rate cannot be negative"}
	case m.BounceRate < 0 || m.BounceRate > 100:
		return &ValidationError{Field: "bounceRate", Message: "Bounce rate must be between 0 and 100"}
	case m.SessionDurationSeconds < 0:
		return &ValidationError{Field: "sessionDuration", Message: "Session duration cannot be negative"}
	case m.ScrollDepthPercent < 0 || m.ScrollDepthPercent > 100:
		return &ValidationError{Field: "scrollDepth", Message: "Scroll depth must be between 0 and 100"}
	case m.PageViews < 0:
		return &ValidationError{Field: "pageViews", Message: "Page views cannot be negative"}
	case m.CrawlDepth < 0 || m.CrawlDepth > 2:
		return &ValidationError{Field: "crawlingDepth", Message: "Crawl depth must be 0, 1 or 2"}
	}
	return nil
}

// BouncedViews estimates how many page views ended in a bounce
func (m BehaviorMetrics) BouncedViews() int {
	return int(float64(m.PageViews) * m.BounceRate / 100)
}

// RetainedViews is the complement of BouncedViews
func (m BehaviorMetrics) RetainedViews() int {
	return m.PageViews - m.BouncedViews()
}

// Severity is the priority label attached to a finding
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is one of the known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// AgentFinding is one agent's prioritized output
type AgentFinding struct {
	AgentName string   `json:"agentName"`
	Title     string   `json:"title"`
	Content   []string `json:"content"`
	Severity  Severity `json:"severity"`
}

// Lead returns the first content line, or an empty string
func (f AgentFinding) Lead() string {
	if len(f.Content) == 0 {
		return ""
	}
	return f.Content[0]
}

// ExperimentScenario is a proposed A/B test
type ExperimentScenario struct {
	Recommendation string `json:"recommendation"`
	VariantA       string `json:"variantA"`
	VariantB       string `json:"variantB"`
	TrackedMetric  string `json:"metricToTrack"`
}

// AnalysisResult represents the complete audit returned by the provider
type AnalysisResult struct {
	StructuralAnalysis string               `json:"structuralAnalysis"`
	VisualAnalysis     string               `json:"visualAnalysis"`
	BehavioralAnalysis string               `json:"behavioralAnalysis"`
	OverallScore       float64              `json:"overallScore"`
	Diagnostic         AgentFinding         `json:"diagnosticAgent"`
	Validation         AgentFinding         `json:"validationAgent"`
	Solution           AgentFinding         `json:"solutionAgent"`
	Technical          AgentFinding         `json:"technicalAgent"`
	Experiments        []ExperimentScenario `json:"abTests"`
	CitationLinks      []string             `json:"groundingLinks"`
}

// Findings returns the four agent findings in display order
func (r *AnalysisResult) Findings() []AgentFinding {
	return []AgentFinding{r.Diagnostic, r.Validation, r.Solution, r.Technical}
}
