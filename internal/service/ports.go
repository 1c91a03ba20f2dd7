package service

import (
	"context"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

// Encoder turns text into a query vector.
type Encoder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever returns the top-k passages for a vector.
type Retriever interface {
	Retrieve(ctx context.Context, vector []float32, k int) ([]domain.Passage, error)
}

// TextGenerator runs one system+user completion.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
}

// ImageGenerator renders a prompt into a base64-encoded image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Uploader stores an artifact and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, key string) (string, error)
}

// LedgerStore persists sessions and messages per user.
type LedgerStore interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetOrCreateSession(ctx context.Context, template *domain.Session) (*domain.Session, error)
	AppendMessage(ctx context.Context, msg *domain.Message, preview *string) error
	ListSessions(ctx context.Context, userID string) ([]domain.SessionSummary, error)
	ListMessages(ctx context.Context, userID, sessionID string) ([]domain.Message, error)
	FindRequestMessages(ctx context.Context, userID, sessionID, requestID string) ([]domain.Message, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	UpsertPreview(ctx context.Context, session *domain.Session) error
}

// Admission decides whether a query may enter the pipeline.
type Admission interface {
	Evaluate(ctx context.Context, input map[string]interface{}) (string, string, error)
}

// Notifier receives pipeline stage transitions.
type Notifier interface {
	Publish(event domain.StageEvent)
}
