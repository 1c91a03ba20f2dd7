package llm

import (
	"log"
	"time"
)

// NewLLMClient returns a MockClient when mock is set and a real Client otherwise.
func NewLLMClient(mock bool, baseURL, apiKey string, timeout time.Duration) LLMClient {
	if mock {
		log.Println("LORE_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}

	return NewClient(baseURL, apiKey, timeout)
}
