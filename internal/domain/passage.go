package domain

// Passage is a ranked piece of corpus text returned by the retriever.
type Passage struct {
	Text     string            `json:"text"`
	Source   string            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score"`
}
