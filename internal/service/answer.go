package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
	"github.com/KaanSezen1923/tolkien-rag/policy"
)

// AnswerQuery runs the whole pipeline for one query: retrieve, answer,
// illustrate, then record the turn. It keeps running when ctx is cancelled.
//
// An image failure does not fail the call: the result carries a nil Image and
// an ImageError. A persistence failure returns the result together with the
// error.
func (s *Service) AnswerQuery(ctx context.Context, req domain.AnswerRequest) (*domain.AnswerResult, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(ctx, "pipeline.answer_query")
	defer span.End()

	started := s.now()
	sessionID := req.SessionID

	if err := s.validate(ctx, req); err != nil {
		return nil, s.fail(span, req.UserID, sessionID, domain.NewPipelineError(domain.FailureValidation, domain.StageStart, err))
	}

	var userRecorded bool
	var stored *domain.Message
	err := s.runStage(ctx, req.UserID, sessionID, domain.StageStart, func(ctx context.Context) error {
		id, err := s.EnsureSession(ctx, req.UserID, sessionID)
		if err != nil {
			return err
		}
		sessionID = id
		if req.RequestID == "" {
			return nil
		}
		user, bot, err := s.FindTurn(ctx, req.UserID, sessionID, req.RequestID)
		if err != nil {
			return err
		}
		userRecorded = user != nil
		stored = bot
		return nil
	})
	if err != nil {
		return nil, s.fail(span, req.UserID, sessionID, domain.NewPipelineError(domain.FailurePersistence, domain.StageStart, err))
	}
	span.SetAttributes(attribute.String("session_id", sessionID))

	if stored != nil {
		s.publish(req.UserID, sessionID, domain.StageDone, nil)
		s.metrics.outcome(OutcomeResumed)
		return resultFromMessage(stored), nil
	}

	var passages []domain.Passage
	err = s.runStage(ctx, req.UserID, sessionID, domain.StageRetrieving, func(ctx context.Context) error {
		vector, err := s.encoder.Embed(ctx, req.Query)
		if err != nil {
			return fmt.Errorf("failed to embed query: %w", err)
		}
		passages, err = s.retriever.Retrieve(ctx, vector, s.topK)
		if err != nil {
			return fmt.Errorf("failed to retrieve context: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, req.UserID, sessionID, domain.NewPipelineError(domain.FailureRetrieval, domain.StageRetrieving, err))
	}
	span.SetAttributes(attribute.Int("passages", len(passages)))

	var answer string
	err = s.runStage(ctx, req.UserID, sessionID, domain.StageGeneratingAnswer, func(ctx context.Context) error {
		var err error
		answer, err = s.GenerateAnswer(ctx, req.Query, passages)
		return err
	})
	if err != nil {
		return nil, s.fail(span, req.UserID, sessionID, domain.NewPipelineError(domain.FailureGeneration, domain.StageGeneratingAnswer, err))
	}

	result := &domain.AnswerResult{Text: answer, SessionID: sessionID}
	imageURL, imageErr := s.renderImage(ctx, req.UserID, sessionID, answer)
	if imageErr != nil {
		s.metrics.failure(imageErr)
		log.Printf("WARN: image unavailable for session %s: %v", sessionID, imageErr)
		result.ImageError = imageErr
	} else {
		result.Image = &imageURL
	}

	err = s.runStage(ctx, req.UserID, sessionID, domain.StagePersisting, func(ctx context.Context) error {
		if !userRecorded {
			err := s.AppendMessage(ctx, &domain.Message{
				UserID:    req.UserID,
				SessionID: sessionID,
				Type:      domain.MessageTypeUser,
				Content:   req.Query,
				Timestamp: started,
				RequestID: req.RequestID,
			})
			if err != nil && !errors.Is(err, domain.ErrDuplicateRequest) {
				return err
			}
		}
		err := s.AppendMessage(ctx, &domain.Message{
			UserID:    req.UserID,
			SessionID: sessionID,
			Type:      domain.MessageTypeBot,
			Content:   answer,
			Image:     imageURL,
			Timestamp: s.now(),
			RequestID: req.RequestID,
		})
		if errors.Is(err, domain.ErrDuplicateRequest) {
			// A concurrent attempt with the same request id won; report its answer.
			_, bot, findErr := s.FindTurn(ctx, req.UserID, sessionID, req.RequestID)
			if findErr != nil {
				return findErr
			}
			if bot != nil {
				result = resultFromMessage(bot)
			}
			return nil
		}
		return err
	})
	if err != nil {
		return result, s.fail(span, req.UserID, sessionID, domain.NewPipelineError(domain.FailurePersistence, domain.StagePersisting, err))
	}

	s.publish(req.UserID, sessionID, domain.StageDone, nil)
	if result.Image == nil {
		s.metrics.outcome(OutcomeImageMissing)
	} else {
		s.metrics.outcome(OutcomeOK)
	}
	return result, nil
}

// validate rejects a request before any backend is called.
func (s *Service) validate(ctx context.Context, req domain.AnswerRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return domain.ErrEmptyQuery
	}
	if err := ValidateSessionID(req.SessionID); err != nil {
		return err
	}
	if s.admission == nil {
		return nil
	}
	decision, reason, err := s.admission.Evaluate(ctx, map[string]interface{}{
		"query":   req.Query,
		"user_id": req.UserID,
	})
	if err != nil {
		return fmt.Errorf("failed to evaluate query policy: %w", err)
	}
	if decision == policy.DecisionBlock {
		if reason == "" {
			return domain.ErrQueryRejected
		}
		return fmt.Errorf("%w: %s", domain.ErrQueryRejected, reason)
	}
	return nil
}

// runStage announces stage, then runs fn inside a span and times it.
func (s *Service) runStage(ctx context.Context, userID, sessionID string, stage domain.Stage, fn func(context.Context) error) error {
	s.publish(userID, sessionID, stage, nil)
	ctx, span := s.tracer.Start(ctx, "pipeline."+strings.ToLower(string(stage)))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.metrics.observeStage(stage, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Service) fail(span trace.Span, userID, sessionID string, perr *domain.PipelineError) error {
	s.metrics.failure(perr)
	s.metrics.outcome(OutcomeFailed)
	s.publish(userID, sessionID, domain.StageFailed, perr)
	span.RecordError(perr)
	span.SetStatus(codes.Error, perr.Error())
	log.Printf("ERROR: answer_query failed (session=%s stage=%s kind=%s): %v", sessionID, perr.Stage, perr.Kind, perr.Err)
	return perr
}

func resultFromMessage(msg *domain.Message) *domain.AnswerResult {
	result := &domain.AnswerResult{Text: msg.Content, SessionID: msg.SessionID}
	if msg.Image != "" {
		image := msg.Image
		result.Image = &image
	}
	return result
}
