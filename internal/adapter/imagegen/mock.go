package imagegen

import "context"

// MockPNG is a 1x1 transparent PNG.
const MockPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// MockGenerator returns MockPNG for every prompt.
type MockGenerator struct{}

// NewMockGenerator creates an offline generator.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// GenerateImage returns a fixed image.
func (m *MockGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return MockPNG, nil
}
