// Package analyzertest provides a scripted provider for tests.
package analyzertest

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

// SampleResultJSON is a complete, schema-conforming provider answer
const SampleResultJSON = `
{
  "overallScore": 78,
  "structuralAnalysis": "Home, pricing and checkout are reachable within two clicks. Sources: similarweb.com, web.dev.",
  "visualAnalysis": "Hero section pushes the primary call to action below the fold on mobile.",
  "behavioralAnalysis": "A 42% bounce rate with 55% scroll depth suggests visitors skim but do not convert.",
  "diagnosticAgent": {
    "agentName": "Diagnostic Agent",
    "title": "Checkout friction",
    "content": ["Primary CTA is hidden below the fold on mobile.", "Pricing table lacks a comparison anchor."],
    "severity": "high"
  },
  "validationAgent": {
    "agentName": "Validation Agent",
    "title": "Benchmarks agree",
    "content": ["Bounce rate is in line with the sector median."],
    "severity": "low"
  },
  "solutionAgent": {
    "agentName": "Solution Agent",
    "title": "Lift the CTA",
    "content": ["Move the signup button into the first viewport.", "Add a sticky pricing summary."],
    "severity": "medium"
  },
  "technicalAgent": {
    "agentName": "Technical Agent",
    "title": "Core Web Vitals",
    "content": ["Largest Contentful Paint exceeds 2.5s on mobile."],
    "severity": "medium"
  },
  "abTests": [
    {
      "recommendation": "Surface the primary CTA earlier",
      "variantA": "Current hero with CTA below the fold",
      "variantB": "Compact hero with CTA in the first viewport",
      "metricToTrack": "CTR"
    }
  ]
}
`

// Generator answers every GenerateContent call with the configured text,
// grounding URIs or error, and records what it was asked.
type Generator struct {
	mu sync.Mutex

	Text    string
	URIs    []string
	Err     error
	Release chan struct{}

	calls    int
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

// NewGenerator returns a Generator that answers with SampleResultJSON
func NewGenerator(uris ...string) *Generator {
	return &Generator{Text: SampleResultJSON, URIs: uris}
}

// GenerateContent implements analyzer.Generator. When Release is set the
// call blocks until it is closed or the context ends.
func (g *Generator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	g.calls++
	g.model = model
	g.contents = contents
	g.config = config
	release := g.Release
	text, uris, err := g.Text, g.URIs, g.Err
	g.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return Response(text, uris...), nil
}

// Calls returns how many times GenerateContent ran
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Last returns the arguments of the most recent call
func (g *Generator) Last() (string, []*genai.Content, *genai.GenerateContentConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.model, g.contents, g.config
}

// Response builds a provider response with one candidate. An empty URI
// produces a grounding chunk without a web source.
func Response(text string, uris ...string) *genai.GenerateContentResponse {
	chunks := make([]*genai.GroundingChunk, 0, len(uris))
	for _, uri := range uris {
		if uri == "" {
			chunks = append(chunks, &genai.GroundingChunk{})
			continue
		}
		chunks = append(chunks, &genai.GroundingChunk{Web: &genai.GroundingChunkWeb{URI: uri}})
	}

	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: text}},
			},
			GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: chunks},
		}},
	}
}
