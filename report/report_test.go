package report

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uxsense/backend/analyzer"
	"github.com/uxsense/backend/analyzer/analyzertest"
)

func sampleDocument(t *testing.T) Document {
	t.Helper()
	result, err := analyzer.DecodeResult(analyzertest.SampleResultJSON)
	require.NoError(t, err)
	result.CitationLinks = []string{"https://web.dev/vitals", "https://www.similarweb.com/website/example.com"}

	metrics := analyzer.DefaultMetrics()
	metrics.AnalyticsPropertyID = "G-12345"
	return Document{Metrics: metrics, Analysis: result}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com", "uxsenseai-report-https___example_com.json"},
		{"shop.test/a?b=1", "uxsenseai-report-shop_test_a_b_1.json"},
		{"", "uxsenseai-report-.json"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.url))
		})
	}
}

func TestMarshalParseRoundTrip(t *testing.T) {
	doc := sampleDocument(t)

	data, err := Marshal(doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"metrics\": {\n    \"ctr\": 2.1,"), "two-space indentation")
	assert.Contains(t, string(data), `"groundingLinks": [`)

	parsed, err := Parse(data)
	require.NoError(t, err)
	if diff := cmp.Diff(doc, *parsed); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalWithoutAnalysis(t *testing.T) {
	_, err := Marshal(Document{Metrics: analyzer.DefaultMetrics()})
	assert.Error(t, err)
}

func TestParseRejectsIncompleteDocuments(t *testing.T) {
	tests := map[string]string{
		"NotJSON":         `{`,
		"MissingMetrics":  `{"analysis": {}}`,
		"MissingAnalysis": `{"metrics": {"ctr": 1}}`,
		"NullAnalysis":    `{"metrics": {"ctr": 1}, "analysis": null}`,
		"PartialAnalysis": `{"metrics": {"ctr": 1}, "analysis": {"overallScore": 50}}`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestParseWithoutLinks(t *testing.T) {
	data := `{"metrics": {"ctr": 1.5}, "analysis": ` + analyzertest.SampleResultJSON + `}`

	doc, err := Parse([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, 1.5, doc.Metrics.ClickThroughRate)
	assert.NotNil(t, doc.Analysis.CitationLinks)
	assert.Empty(t, doc.Analysis.CitationLinks)
}

func TestHostname(t *testing.T) {
	assert.Equal(t, "web.dev", Hostname("https://web.dev/vitals"))
	assert.Equal(t, "not a url", Hostname("not a url"))
}

func TestMarkdown(t *testing.T) {
	doc := sampleDocument(t)
	md := Markdown("https://example.com", doc)

	assert.Contains(t, md, "**Endpoint:** https://example.com")
	assert.Contains(t, md, "**UX Score:** 78/100")
	assert.Contains(t, md, "## Core Friction\n\nPrimary CTA is hidden below the fold on mobile.")
	assert.Contains(t, md, "## Executive Summary\n\nMove the signup button into the first viewport.")
	assert.Contains(t, md, "Manual Setup")
	assert.Contains(t, md, "- [web.dev](https://web.dev/vitals)")
	assert.Contains(t, md, "Metric: CTR")

	doc.Metrics.AutoRetrieved = true
	assert.Contains(t, Markdown("https://example.com", doc), "Hybrid Auto-Crawl")

	assert.Contains(t, Markdown("https://example.com", Document{}), "No analysis available")
}
