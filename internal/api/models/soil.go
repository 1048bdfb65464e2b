package models

// PropertyResult is one classified soil property.
type PropertyResult struct {
	Property       string  `json:"property"`
	Label          string  `json:"label"`
	Value          float64 `json:"value"`
	Raw            string  `json:"raw,omitempty"`
	Unit           string  `json:"unit,omitempty"`
	Classification string  `json:"classification"`
}

// ClassificationResponse is returned by GET /v1/soil/classification.
// Properties the provider did not report are omitted.
type ClassificationResponse struct {
	Location    Point            `json:"location"`
	Provider    string           `json:"provider"`
	Properties  []PropertyResult `json:"properties"`
	GeneratedAt Timestamp        `json:"generatedAt"`
}

// RecommendationRequest is the body of POST /v1/recommendations.
type RecommendationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// RecommendationResponse is returned by POST /v1/recommendations. Exactly one
// of Recommendation and RecommendationError is set.
type RecommendationResponse struct {
	ClassificationResponse
	Generator           string `json:"generator,omitempty"`
	Recommendation      string `json:"recommendation,omitempty"`
	RecommendationError string `json:"recommendationError,omitempty"`
}
