package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

// PreviewMaxRunes bounds a session preview.
const PreviewMaxRunes = 100

// Preview truncates content to PreviewMaxRunes. Whitespace is kept as written.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewMaxRunes {
		return content
	}
	return string([]rune(content)[:PreviewMaxRunes])
}

// ValidateSessionID accepts an empty id or a UUID.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSessionID, sessionID)
	}
	return nil
}

// EnsureSession returns sessionID, creating the session if it does not exist.
// An empty id mints a new random one.
func (s *Service) EnsureSession(ctx context.Context, userID, sessionID string) (string, error) {
	if sessionID == "" {
		session, err := s.CreateSession(ctx, userID)
		if err != nil {
			return "", err
		}
		return session.SessionID, nil
	}
	if err := ValidateSessionID(sessionID); err != nil {
		return "", err
	}

	now := s.now()
	session, err := s.ledger.GetOrCreateSession(ctx, &domain.Session{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Preview:   domain.DefaultPreview,
	})
	if err != nil {
		return "", fmt.Errorf("failed to ensure session: %w", err)
	}
	return session.SessionID, nil
}

func (s *Service) CreateSession(ctx context.Context, userID string) (*domain.Session, error) {
	now := s.now()
	session := &domain.Session{
		SessionID: s.newID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Preview:   domain.DefaultPreview,
	}
	if err := s.ledger.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// AppendMessage records msg in its session. A user message with content
// becomes the session preview; bot messages never touch it.
func (s *Service) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if msg.MessageID == "" {
		msg.MessageID = "msg_" + uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	var preview *string
	if msg.Type == domain.MessageTypeUser && strings.TrimSpace(msg.Content) != "" {
		p := Preview(msg.Content)
		preview = &p
	}

	if err := s.ledger.AppendMessage(ctx, msg, preview); err != nil {
		return fmt.Errorf("failed to append %s message: %w", msg.Type, err)
	}
	return nil
}

func (s *Service) ListSessions(ctx context.Context, userID string) ([]domain.SessionSummary, error) {
	sessions, err := s.ledger.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *Service) ListMessages(ctx context.Context, userID, sessionID string) ([]domain.Message, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	messages, err := s.ledger.ListMessages(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// DeleteSession removes the session and all of its messages atomically.
func (s *Service) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return domain.ErrInvalidSessionID
	}
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	if err := s.ledger.DeleteSession(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ReplacePreview sets the preview from the first user message in messages,
// or the default preview when there is none.
func (s *Service) ReplacePreview(ctx context.Context, userID, sessionID string, messages []domain.Message) (string, error) {
	if sessionID == "" {
		return "", domain.ErrInvalidSessionID
	}
	if err := ValidateSessionID(sessionID); err != nil {
		return "", err
	}

	preview := domain.DefaultPreview
	for _, m := range messages {
		if m.Type == domain.MessageTypeUser && strings.TrimSpace(m.Content) != "" {
			preview = Preview(m.Content)
			break
		}
	}

	now := s.now()
	err := s.ledger.UpsertPreview(ctx, &domain.Session{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Preview:   preview,
	})
	if err != nil {
		return "", fmt.Errorf("failed to replace preview: %w", err)
	}
	return preview, nil
}

// FindTurn returns the user and bot messages recorded under requestID.
// Either may be nil.
func (s *Service) FindTurn(ctx context.Context, userID, sessionID, requestID string) (user, bot *domain.Message, err error) {
	messages, err := s.ledger.FindRequestMessages(ctx, userID, sessionID, requestID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find turn: %w", err)
	}
	for i := range messages {
		switch messages[i].Type {
		case domain.MessageTypeUser:
			user = &messages[i]
		case domain.MessageTypeBot:
			bot = &messages[i]
		}
	}
	return user, bot, nil
}
