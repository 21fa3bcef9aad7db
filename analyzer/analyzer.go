package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-3-flash-preview"

// Generator is the provider surface the analyzer needs. *genai.Models
// satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Recorder receives the outcome of every provider call
type Recorder interface {
	RecordAnalysis(url string, latency time.Duration, failed bool)
}

// Config selects the provider account and model
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Analyzer sends audit requests to the generative model
type Analyzer struct {
	models   Generator
	model    string
	logger   *zap.Logger
	recorder Recorder
}

// New creates an Analyzer backed by the Gemini API
func New(ctx context.Context, cfg Config, logger *zap.Logger, recorder Recorder) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("provider API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider client: %w", err)
	}

	return NewWithGenerator(client.Models, cfg.Model, logger, recorder), nil
}

// NewWithGenerator creates an Analyzer on top of any Generator
func NewWithGenerator(models Generator, model string, logger *zap.Logger, recorder Recorder) *Analyzer {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		models:   models,
		model:    model,
		logger:   logger.Named("analyzer"),
		recorder: recorder,
	}
}

// Model returns the configured model name
func (a *Analyzer) Model() string {
	return a.model
}

// Analyze issues exactly one provider call and returns a fully populated
// result or an error. It never returns a partial result.
func (a *Analyzer) Analyze(ctx context.Context, req *Request) (*AnalysisResult, error) {
	if req == nil || strings.TrimSpace(req.URL) == "" {
		return nil, &ValidationError{Field: "url", Message: "Please provide a valid URL"}
	}

	startTime := time.Now()
	result, err := a.generate(ctx, req)
	latency := time.Since(startTime)

	if a.recorder != nil {
		a.recorder.RecordAnalysis(req.URL, latency, err != nil)
	}

	if err != nil {
		a.logger.Warn("analysis failed",
			zap.String("url", req.URL),
			zap.Duration("latency", latency),
			zap.Error(err))
		return nil, err
	}

	a.logger.Info("analysis completed",
		zap.String("url", req.URL),
		zap.Duration("latency", latency),
		zap.Float64("score", result.OverallScore),
		zap.Int("citations", len(result.CitationLinks)))
	return result, nil
}

func (a *Analyzer) generate(ctx context.Context, req *Request) (*AnalysisResult, error) {
	resp, err := a.models.GenerateContent(ctx, a.model, req.Contents(), req.Config())
	if err != nil {
		return nil, &AnalysisError{Reason: "provider call failed", Err: &TransportError{Err: err}}
	}

	result, err := DecodeResult(ResponseText(resp))
	if err != nil {
		return nil, err
	}
	result.CitationLinks = CitationLinks(resp)
	return result, nil
}

// ResponseText joins the non-thought text parts of the first candidate
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// CitationLinks extracts the web URIs of the first candidate's grounding
// chunks, in order, skipping chunks without a usable URI.
func CitationLinks(resp *genai.GenerateContentResponse) []string {
	links := []string{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return links
	}

	metadata := resp.Candidates[0].GroundingMetadata
	if metadata == nil {
		return links
	}

	for _, chunk := range metadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || strings.TrimSpace(chunk.Web.URI) == "" {
			continue
		}
		links = append(links, chunk.Web.URI)
	}
	return links
}

type wireFinding struct {
	AgentName *string   `json:"agentName"`
	Title     *string   `json:"title"`
	Content   *[]string `json:"content"`
	Severity  *string   `json:"severity"`
}

type wireExperiment struct {
	Recommendation *string `json:"recommendation"`
	VariantA       *string `json:"variantA"`
	VariantB       *string `json:"variantB"`
	MetricToTrack  *string `json:"metricToTrack"`
}

type wireResult struct {
	StructuralAnalysis *string           `json:"structuralAnalysis"`
	VisualAnalysis     *string           `json:"visualAnalysis"`
	BehavioralAnalysis *string           `json:"behavioralAnalysis"`
	OverallScore       *float64          `json:"overallScore"`
	DiagnosticAgent    *wireFinding      `json:"diagnosticAgent"`
	ValidationAgent    *wireFinding      `json:"validationAgent"`
	SolutionAgent      *wireFinding      `json:"solutionAgent"`
	TechnicalAgent     *wireFinding      `json:"technicalAgent"`
	ABTests            *[]wireExperiment `json:"abTests"`
}

// fieldCheck remembers the first required field found missing or invalid
type fieldCheck struct {
	problem string
}

func (c *fieldCheck) fail(problem string) {
	if c.problem == "" {
		c.problem = problem
	}
}

func (c *fieldCheck) str(name string, v *string) string {
	if v == nil {
		c.fail("missing required field " + name)
		return ""
	}
	return *v
}

func (c *fieldCheck) finding(name string, w *wireFinding) AgentFinding {
	if w == nil {
		c.fail("missing required field " + name)
		return AgentFinding{}
	}

	f := AgentFinding{
		AgentName: c.str(name+".agentName", w.AgentName),
		Title:     c.str(name+".title", w.Title),
		Severity:  Severity(c.str(name+".severity", w.Severity)),
	}
	if w.Content == nil {
		c.fail("missing required field " + name + ".content")
	} else {
		f.Content = append([]string{}, (*w.Content)...)
	}
	if w.Severity != nil && !f.Severity.Valid() {
		c.fail(fmt.Sprintf("%s.severity has unknown value %q", name, *w.Severity))
	}
	return f
}

// DecodeResult parses the provider's JSON text into an AnalysisResult,
// failing on malformed JSON or any missing required field.
func DecodeResult(text string) (*AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &AnalysisError{Reason: "provider returned an empty response"}
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return nil, &AnalysisError{Reason: "provider returned malformed JSON", Err: err}
	}

	var check fieldCheck
	result := &AnalysisResult{
		StructuralAnalysis: check.str("structuralAnalysis", wire.StructuralAnalysis),
		VisualAnalysis:     check.str("visualAnalysis", wire.VisualAnalysis),
		BehavioralAnalysis: check.str("behavioralAnalysis", wire.BehavioralAnalysis),
		Diagnostic:         check.finding("diagnosticAgent", wire.DiagnosticAgent),
		Validation:         check.finding("validationAgent", wire.ValidationAgent),
		Solution:           check.finding("solutionAgent", wire.SolutionAgent),
		Technical:          check.finding("technicalAgent", wire.TechnicalAgent),
	}

	if wire.OverallScore == nil {
		check.fail("missing required field overallScore")
	} else if *wire.OverallScore < 0 || *wire.OverallScore > 100 {
		check.fail(fmt.Sprintf("overallScore %v is outside [0,100]", *wire.OverallScore))
	} else {
		result.OverallScore = *wire.OverallScore
	}

	if wire.ABTests == nil {
		check.fail("missing required field abTests")
	} else {
		result.Experiments = make([]ExperimentScenario, 0, len(*wire.ABTests))
		for i, w := range *wire.ABTests {
			name := fmt.Sprintf("abTests[%d]", i)
			result.Experiments = append(result.Experiments, ExperimentScenario{
				Recommendation: check.str(name+".recommendation", w.Recommendation),
				VariantA:       check.str(name+".variantA", w.VariantA),
				VariantB:       check.str(name+".variantB", w.VariantB),
				TrackedMetric:  check.str(name+".metricToTrack", w.MetricToTrack),
			})
		}
	}

	if check.problem != "" {
		return nil, &AnalysisError{Reason: check.problem}
	}
	return result, nil
}
