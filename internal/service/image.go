package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

// ArtifactKey names an image artifact. It never contains user content.
func ArtifactKey(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s.png", now.UnixNano(), suffix)
}

// renderImage runs summarize, synthesize and upload for an answer and returns
// the artifact URL.
func (s *Service) renderImage(ctx context.Context, userID, sessionID, answer string) (string, *domain.PipelineError) {
	var prompt string
	err := s.runStage(ctx, userID, sessionID, domain.StageSummarizingVisual, func(ctx context.Context) error {
		var err error
		prompt, err = s.SummarizeVisual(ctx, answer)
		return err
	})
	if err != nil {
		return "", domain.NewPipelineError(domain.FailureGeneration, domain.StageSummarizingVisual, err)
	}

	var payload []byte
	err = s.runStage(ctx, userID, sessionID, domain.StageSynthesizingImage, func(ctx context.Context) error {
		encoded, err := s.images.GenerateImage(ctx, prompt)
		if err != nil {
			return fmt.Errorf("failed to generate image: %w", err)
		}
		payload, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("failed to decode image payload: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", domain.NewPipelineError(domain.FailureGeneration, domain.StageSynthesizingImage, err)
	}

	var url string
	err = s.runStage(ctx, userID, sessionID, domain.StageUploading, func(ctx context.Context) error {
		var err error
		url, err = s.uploader.Upload(ctx, payload, ArtifactKey(s.now()))
		if err != nil {
			return fmt.Errorf("failed to upload image: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", domain.NewPipelineError(domain.FailureGeneration, domain.StageUploading, err)
	}
	return url, nil
}
