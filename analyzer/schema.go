package analyzer

import "google.golang.org/genai"

var severityValues = []string{string(SeverityLow), string(SeverityMedium), string(SeverityHigh)}

func agentSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"agentName": {Type: genai.TypeString},
			"title":     {Type: genai.TypeString},
			"content": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"severity": {Type: genai.TypeString, Enum: severityValues},
		},
		Required: []string{"agentName", "title", "content", "severity"},
	}
}

// ResponseSchema declares the JSON object the provider must return.
// groundingLinks is not part of it; citations come from response metadata.
func ResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"structuralAnalysis": {
				Type:        genai.TypeString,
				Description: "Analysis of the website structure, navigation patterns, and discovered pages.",
			},
			"visualAnalysis": {
				Type:        genai.TypeString,
				Description: "Analysis of UI/UX visual elements and layout efficiency.",
			},
			"behavioralAnalysis": {
				Type:        genai.TypeString,
				Description: "Interpretation of user behavior based on analytics data and search benchmarks.",
			},
			"overallScore": {
				Type:        genai.TypeNumber,
				Description: "A UX efficiency score out of 100.",
			},
			"diagnosticAgent": agentSchema(),
			"validationAgent": agentSchema(),
			"solutionAgent":   agentSchema(),
			"technicalAgent":  agentSchema(),
			"abTests": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"recommendation": {Type: genai.TypeString},
						"variantA":       {Type: genai.TypeString},
						"variantB":       {Type: genai.TypeString},
						"metricToTrack":  {Type: genai.TypeString},
					},
					Required: []string{"recommendation", "variantA", "variantB", "metricToTrack"},
				},
			},
		},
		Required: []string{
			"structuralAnalysis", "visualAnalysis", "behavioralAnalysis", "overallScore",
			"diagnosticAgent", "validationAgent", "solutionAgent", "technicalAgent", "abTests",
		},
		PropertyOrdering: []string{
			"overallScore", "structuralAnalysis", "visualAnalysis", "behavioralAnalysis",
			"diagnosticAgent", "validationAgent", "solutionAgent", "technicalAgent", "abTests",
		},
	}
}
