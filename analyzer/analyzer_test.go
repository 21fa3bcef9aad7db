package analyzer

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/uxsense/backend/analyzer/analyzertest"
)

// 1x1 transparent PNG
var pngPixel, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

type recordedCall struct {
	url    string
	failed bool
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) RecordAnalysis(url string, _ time.Duration, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{url: url, failed: failed})
}

func sampleMetrics() BehaviorMetrics {
	return DefaultMetrics()
}

func TestBuildRequest(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		for _, url := range []string{"", "   "} {
			req, err := BuildRequest(url, "", sampleMetrics())
			assert.Nil(t, req)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, "url", validationErr.Field)
		}
	})

	t.Run("PromptEmbedsMetrics", func(t *testing.T) {
		req, err := BuildRequest("https://example.com", "", sampleMetrics())
		require.NoError(t, err)

		assert.Equal(t, "https://example.com", req.URL)
		assert.Nil(t, req.Image)
		for _, want := range []string{
			"https://example.com",
			"CTR: 2.1%",
			"Bounce Rate: 42%",
			"Session Duration: 95s",
			"Scroll Depth: 55%",
			"Page Views: 12500",
			"Crawl depth level: 0",
			"property Direct Input",
			"web search",
			"A/B test",
			"search sources",
		} {
			assert.Contains(t, req.Prompt, want)
		}
	})

	t.Run("PropertyIDAndDepth", func(t *testing.T) {
		m := sampleMetrics()
		m.AnalyticsPropertyID = "12345678"
		m.CrawlDepth = 2
		req, err := BuildRequest("https://example.com", "", m)
		require.NoError(t, err)
		assert.Contains(t, req.Prompt, "property 12345678")
		assert.Contains(t, req.Prompt, "Crawl depth level: 2 (Full Map)")
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, err := BuildRequest("https://example.com", "", sampleMetrics())
		require.NoError(t, err)
		b, err := BuildRequest("https://example.com", "", sampleMetrics())
		require.NoError(t, err)
		assert.Equal(t, a.Prompt, b.Prompt)
	})

	t.Run("ScreenshotDataURI", func(t *testing.T) {
		uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel)
		req, err := BuildRequest("https://example.com", uri, sampleMetrics())
		require.NoError(t, err)
		require.NotNil(t, req.Image)
		assert.Equal(t, "image/png", req.Image.MIMEType)
		assert.Equal(t, pngPixel, req.Image.Data)

		contents := req.Contents()
		require.Len(t, contents, 1)
		require.Len(t, contents[0].Parts, 2)
		assert.Equal(t, req.Prompt, contents[0].Parts[0].Text)
		require.NotNil(t, contents[0].Parts[1].InlineData)
		assert.Equal(t, pngPixel, contents[0].Parts[1].InlineData.Data)
	})

	t.Run("BareBase64IsSniffed", func(t *testing.T) {
		req, err := BuildRequest("https://example.com", base64.StdEncoding.EncodeToString(pngPixel), sampleMetrics())
		require.NoError(t, err)
		require.NotNil(t, req.Image)
		assert.Equal(t, "image/png", req.Image.MIMEType)
	})

	t.Run("UndecodableScreenshot", func(t *testing.T) {
		_, err := BuildRequest("https://example.com", "data:image/png;base64,@@not-base64@@", sampleMetrics())
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "screenshot", validationErr.Field)
	})
}

func TestEncodeDataURIRoundTrip(t *testing.T) {
	uri := EncodeDataURI(pngPixel)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	img, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, img.Data)
}

func TestRequestConfig(t *testing.T) {
	req, err := BuildRequest("https://example.com", "", sampleMetrics())
	require.NoError(t, err)

	config := req.Config()
	assert.Equal(t, "application/json", config.ResponseMIMEType)
	require.Len(t, config.Tools, 1)
	assert.NotNil(t, config.Tools[0].GoogleSearch)

	schema := config.ResponseSchema
	require.NotNil(t, schema)
	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.ElementsMatch(t, []string{
		"structuralAnalysis", "visualAnalysis", "behavioralAnalysis", "overallScore",
		"diagnosticAgent", "validationAgent", "solutionAgent", "technicalAgent", "abTests",
	}, schema.Required)
	assert.NotContains(t, schema.Properties, "groundingLinks")
	assert.Equal(t, "overallScore", schema.PropertyOrdering[0])

	for _, name := range []string{"diagnosticAgent", "validationAgent", "solutionAgent", "technicalAgent"} {
		agent := schema.Properties[name]
		require.NotNil(t, agent, name)
		assert.Equal(t, []string{"low", "medium", "high"}, agent.Properties["severity"].Enum)
		assert.ElementsMatch(t, []string{"agentName", "title", "content", "severity"}, agent.Required)
	}
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()

	newAnalyzer := func(t *testing.T, gen *analyzertest.Generator) (*Analyzer, *fakeRecorder) {
		recorder := &fakeRecorder{}
		return NewWithGenerator(gen, "", zaptest.NewLogger(t), recorder), recorder
	}

	request := func(t *testing.T) *Request {
		req, err := BuildRequest("https://example.com", "", sampleMetrics())
		require.NoError(t, err)
		return req
	}

	t.Run("Success", func(t *testing.T) {
		gen := analyzertest.NewGenerator("https://similarweb.com/example", "", "https://web.dev/vitals")
		a, recorder := newAnalyzer(t, gen)

		result, err := a.Analyze(ctx, request(t))
		require.NoError(t, err)

		assert.Equal(t, 78.0, result.OverallScore)
		assert.Equal(t, "Primary CTA is hidden below the fold on mobile.", result.Diagnostic.Lead())
		assert.Equal(t, SeverityHigh, result.Diagnostic.Severity)
		assert.Equal(t, "Validation Agent", result.Validation.AgentName)
		assert.Equal(t, "Lift the CTA", result.Solution.Title)
		assert.Len(t, result.Technical.Content, 1)
		require.Len(t, result.Experiments, 1)
		assert.Equal(t, "CTR", result.Experiments[0].TrackedMetric)
		assert.Equal(t, []string{"https://similarweb.com/example", "https://web.dev/vitals"}, result.CitationLinks)

		model, contents, config := gen.Last()
		assert.Equal(t, DefaultModel, model)
		assert.Len(t, contents, 1)
		assert.Equal(t, "application/json", config.ResponseMIMEType)
		assert.Equal(t, 1, gen.Calls())

		require.Len(t, recorder.calls, 1)
		assert.False(t, recorder.calls[0].failed)
	})

	t.Run("EmptyURLNeverCallsProvider", func(t *testing.T) {
		gen := analyzertest.NewGenerator()
		a, _ := newAnalyzer(t, gen)

		_, err := a.Analyze(ctx, &Request{})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Zero(t, gen.Calls())
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		gen := analyzertest.NewGenerator()
		gen.Text = "Sure! Here is your audit: {"
		a, recorder := newAnalyzer(t, gen)

		result, err := a.Analyze(ctx, request(t))
		assert.Nil(t, result)
		var analysisErr *AnalysisError
		require.ErrorAs(t, err, &analysisErr)
		assert.Equal(t, analysisFailedMessage, UserMessage(err))
		require.Len(t, recorder.calls, 1)
		assert.True(t, recorder.calls[0].failed)
	})

	t.Run("TransportFailureKeepsCause", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		gen := analyzertest.NewGenerator()
		gen.Err = cause
		a, _ := newAnalyzer(t, gen)

		_, err := a.Analyze(ctx, request(t))
		var analysisErr *AnalysisError
		require.ErrorAs(t, err, &analysisErr)
		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, analysisFailedMessage, UserMessage(err))
	})
}

func TestDecodeResult(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		problem string
	}{
		{
			name:    "Empty",
			mutate:  func(string) string { return "" },
			problem: "empty response",
		},
		{
			name:    "EmptyObject",
			mutate:  func(string) string { return "{}" },
			problem: "missing required field structuralAnalysis",
		},
		{
			name: "MissingScore",
			mutate: func(s string) string {
				return strings.Replace(s, `"overallScore": 78,`, "", 1)
			},
			problem: "missing required field overallScore",
		},
		{
			name: "ScoreOutOfRange",
			mutate: func(s string) string {
				return strings.Replace(s, `"overallScore": 78,`, `"overallScore": 178,`, 1)
			},
			problem: "outside [0,100]",
		},
		{
			name: "UnknownSeverity",
			mutate: func(s string) string {
				return strings.Replace(s, `"severity": "high"`, `"severity": "critical"`, 1)
			},
			problem: `diagnosticAgent.severity has unknown value "critical"`,
		},
		{
			name: "MissingFindingTitle",
			mutate: func(s string) string {
				return strings.Replace(s, `"title": "Benchmarks agree",`, "", 1)
			},
			problem: "missing required field validationAgent.title",
		},
		{
			name: "MissingExperimentMetric",
			mutate: func(s string) string {
				return strings.Replace(s, `,
      "metricToTrack": "CTR"`, "", 1)
			},
			problem: "missing required field abTests[0].metricToTrack",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := DecodeResult(tt.mutate(analyzertest.SampleResultJSON))
			assert.Nil(t, result)
			var analysisErr *AnalysisError
			require.ErrorAs(t, err, &analysisErr)
			assert.Contains(t, analysisErr.Reason, tt.problem)
		})
	}

	t.Run("EmptyExperimentListIsValid", func(t *testing.T) {
		text := analyzertest.SampleResultJSON
		start := strings.Index(text, `"abTests": [`)
		require.Positive(t, start)
		text = text[:start] + `"abTests": []` + "\n}"

		result, err := DecodeResult(text)
		require.NoError(t, err)
		assert.Empty(t, result.Experiments)
	})
}

func TestCitationLinks(t *testing.T) {
	t.Run("FiltersAndKeepsOrder", func(t *testing.T) {
		resp := analyzertest.Response("{}", "https://a.example", "", "https://b.example", "", "https://c.example")
		assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, CitationLinks(resp))
	})

	t.Run("NoMetadata", func(t *testing.T) {
		resp := analyzertest.Response("{}")
		resp.Candidates[0].GroundingMetadata = nil
		assert.Empty(t, CitationLinks(resp))
		assert.Empty(t, CitationLinks(nil))
	})
}

func TestResponseTextSkipsThoughts(t *testing.T) {
	resp := analyzertest.Response(`{"a":`)
	resp.Candidates[0].Content.Parts = append([]*genai.Part{{Text: "planning...", Thought: true}},
		append(resp.Candidates[0].Content.Parts, &genai.Part{Text: `1}`})...)
	assert.Equal(t, `{"a":1}`, ResponseText(resp))
}

func TestMetricsValidate(t *testing.T) {
	assert.NoError(t, DefaultMetrics().Validate())

	m := DefaultMetrics()
	m.BounceRate = 120
	var validationErr *ValidationError
	require.ErrorAs(t, m.Validate(), &validationErr)
	assert.Equal(t, "bounceRate", validationErr.Field)

	m = DefaultMetrics()
	m.CrawlDepth = 3
	require.ErrorAs(t, m.Validate(), &validationErr)
	assert.Equal(t, "crawlingDepth", validationErr.Field)

	m = DefaultMetrics()
	assert.Equal(t, 5250, m.BouncedViews())
	assert.Equal(t, 7250, m.RetainedViews())
}
