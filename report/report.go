// Package report turns an analysis into the downloadable JSON document and
// a printable markdown summary.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/uxsense/backend/analyzer"
)

const filenamePrefix = "uxsenseai-report-"

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9]`)

// Document is the exported report
type Document struct {
	Metrics  analyzer.BehaviorMetrics `json:"metrics"`
	Analysis *analyzer.AnalysisResult `json:"analysis"`
}

// Marshal renders the document with two-space indentation
func Marshal(doc Document) ([]byte, error) {
	if doc.Analysis == nil {
		return nil, errors.New("report has no analysis")
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Filename derives the download name from the audited URL
func Filename(target string) string {
	return filenamePrefix + unsafeFilenameChars.ReplaceAllString(target, "_") + ".json"
}

type wireDocument struct {
	Metrics  *analyzer.BehaviorMetrics `json:"metrics"`
	Analysis json.RawMessage           `json:"analysis"`
}

// Parse reads an exported document back. The analysis must carry every
// field a provider answer carries.
func Parse(data []byte) (*Document, error) {
	var wire wireDocument
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("invalid report: %w", err)
	}
	if wire.Metrics == nil {
		return nil, errors.New("invalid report: missing metrics")
	}
	if len(wire.Analysis) == 0 || string(wire.Analysis) == "null" {
		return nil, errors.New("invalid report: missing analysis")
	}

	result, err := analyzer.DecodeResult(string(wire.Analysis))
	if err != nil {
		return nil, fmt.Errorf("invalid report: %w", err)
	}

	var links struct {
		GroundingLinks []string `json:"groundingLinks"`
	}
	if err := json.Unmarshal(wire.Analysis, &links); err != nil {
		return nil, fmt.Errorf("invalid report: %w", err)
	}
	result.CitationLinks = links.GroundingLinks
	if result.CitationLinks == nil {
		result.CitationLinks = []string{}
	}

	return &Document{Metrics: *wire.Metrics, Analysis: result}, nil
}

// Hostname returns the host part of a citation link, or the link itself
// when it does not parse.
func Hostname(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return link
	}
	return u.Hostname()
}

// Markdown renders the printable audit summary
func Markdown(target string, doc Document) string {
	var sb strings.Builder
	result := doc.Analysis

	fmt.Fprintf(&sb, "# UXSense Audit Report\n\n")
	fmt.Fprintf(&sb, "**Endpoint:** %s\n\n", target)
	if result == nil {
		sb.WriteString("_No analysis available._\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "**UX Score:** %s/100\n\n", FormatScore(result.OverallScore))

	fmt.Fprintf(&sb, "## Core Friction\n\n%s\n\n", result.Diagnostic.Lead())
	fmt.Fprintf(&sb, "## Executive Summary\n\n%s\n\n", result.Solution.Lead())

	m := doc.Metrics
	source := "Manual Setup"
	if m.AutoRetrieved {
		source = "Hybrid Auto-Crawl"
	}
	fmt.Fprintf(&sb, "## Behavior Metrics (%s)\n\n", source)
	sb.WriteString("| CTR | Bounce Rate | Session | Scroll Depth | Page Views |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| %v%% | %v%% | %ds | %v%% | %d |\n\n",
		m.ClickThroughRate, m.BounceRate, m.SessionDurationSeconds, m.ScrollDepthPercent, m.PageViews)

	sb.WriteString("## Structural Analysis\n\n")
	sb.WriteString(result.StructuralAnalysis + "\n\n")
	sb.WriteString("## Behavioral Audit\n\n")
	sb.WriteString(result.BehavioralAnalysis + "\n\n")

	for _, f := range result.Findings() {
		fmt.Fprintf(&sb, "## %s: %s (%s)\n\n", f.AgentName, f.Title, f.Severity)
		for _, line := range f.Content {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
		sb.WriteString("\n")
	}

	if len(result.Experiments) > 0 {
		sb.WriteString("## A/B Experiments\n\n")
		for i, e := range result.Experiments {
			fmt.Fprintf(&sb, "%d. **%s**\n   - A: %s\n   - B: %s\n   - Metric: %s\n", i+1, e.Recommendation, e.VariantA, e.VariantB, e.TrackedMetric)
		}
		sb.WriteString("\n")
	}

	if len(result.CitationLinks) > 0 {
		sb.WriteString("## Sources\n\n")
		for _, link := range result.CitationLinks {
			fmt.Fprintf(&sb, "- [%s](%s)\n", Hostname(link), link)
		}
	}

	return sb.String()
}

// FormatScore prints a score without trailing zeros
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
