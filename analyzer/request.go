package analyzer

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"
)

const defaultImageMIMEType = "image/jpeg"

// InlineImage is a screenshot attached to the request as raw bytes
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// Request is everything sent to the provider for one audit
type Request struct {
	URL    string
	Prompt string
	Image  *InlineImage
	Schema *genai.Schema
}

// BuildRequest assembles the audit instruction, the optional screenshot and
// the output schema. It performs no I/O.
func BuildRequest(url, screenshotDataURI string, metrics BehaviorMetrics) (*Request, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, &ValidationError{Field: "url", Message: "Please provide a valid URL"}
	}

	req := &Request{
		URL:    url,
		Prompt: buildPrompt(url, metrics),
		Schema: ResponseSchema(),
	}

	if strings.TrimSpace(screenshotDataURI) != "" {
		img, err := DecodeDataURI(screenshotDataURI)
		if err != nil {
			return nil, err
		}
		req.Image = img
	}

	return req, nil
}

// DecodeDataURI strips the data-URI prefix and decodes the base64 payload.
// A bare base64 string is accepted too.
func DecodeDataURI(dataURI string) (*InlineImage, error) {
	header, payload, found := strings.Cut(strings.TrimSpace(dataURI), ",")
	if !found {
		payload, header = header, ""
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return nil, &ValidationError{Field: "screenshot", Message: "Screenshot could not be decoded"}
	}

	mimeType := ""
	if strings.HasPrefix(header, "data:") {
		mimeType, _, _ = strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = defaultImageMIMEType
	}

	return &InlineImage{MIMEType: mimeType, Data: data}, nil
}

// EncodeDataURI is the inverse of DecodeDataURI, used for uploaded files
func EncodeDataURI(data []byte) string {
	mimeType := mimetype.Detect(data).String()
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func buildPrompt(url string, m BehaviorMetrics) string {
	property := m.AnalyticsPropertyID
	if strings.TrimSpace(property) == "" {
		property = "Direct Input"
	}

	return fmt.Sprintf(`You are a world-class UX and analytics audit team.
Task: audit URL: %s.

1. AUTOMATED CRAWL: use web search to find the sitemap, common pages and public
   performance benchmarks (traffic estimates, Core Web Vitals) for this domain.
2. ANALYTICS SYNC: metrics provided (from property %s):
   - CTR: %s%%
   - Bounce Rate: %s%%
   - Session Duration: %ds
   - Scroll Depth: %s%%
   - Page Views: %d

Crawl depth level: %d (%s).

Workflow:
- Diagnostic: identify friction by reconciling the supplied metrics with the discovered structure.
- Validation: check whether the metrics agree with the public benchmarks you found.
- Solution: suggest prioritized layout redesigns that improve specific metrics.
- Technical: list prioritized technical fixes.
- Experiments: generate A/B test variants with the metric each one tracks.

Always include a list of your search sources in the structural analysis.`,
		url,
		property,
		formatNumber(m.ClickThroughRate),
		formatNumber(m.BounceRate),
		m.SessionDurationSeconds,
		formatNumber(m.ScrollDepthPercent),
		m.PageViews,
		m.CrawlDepth,
		CrawlScopeLabel(m.CrawlDepth),
	)
}

// CrawlScopeLabel names the crawl depth the way the setup form does
func CrawlScopeLabel(depth int) string {
	switch depth {
	case 1:
		return "Core Funnels"
	case 2:
		return "Full Map"
	default:
		return "Main Entry Only"
	}
}

// Contents renders the request as provider contents: the instruction text
// followed by the screenshot when present.
func (r *Request) Contents() []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(r.Prompt)}
	if r.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(r.Image.Data, r.Image.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// Config enables schema-constrained JSON output and search grounding
func (r *Request) Config() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Tools:            []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		ResponseMIMEType: "application/json",
		ResponseSchema:   r.Schema,
	}
}
