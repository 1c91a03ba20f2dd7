package domain

import "time"

// Session is a conversation thread owned by one user.
type Session struct {
	SessionID       string     `json:"session_id" db:"session_id"`
	UserID          string     `json:"user_id" db:"user_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty" db:"last_message_time"`
	Preview         string     `json:"preview" db:"preview"`
}

// SessionSummary is one entry of a session listing.
type SessionSummary struct {
	SessionID       string     `json:"session_id" db:"session_id"`
	Preview         string     `json:"preview" db:"preview"`
	LastMessageTime *time.Time `json:"last_message_time" db:"last_message_time"`
	MessageCount    int        `json:"message_count" db:"message_count"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Message is an immutable entry of a session log.
type Message struct {
	MessageID string      `json:"message_id" db:"message_id"`
	UserID    string      `json:"-" db:"user_id"`
	SessionID string      `json:"session_id" db:"session_id"`
	Type      MessageType `json:"type" db:"type"`
	Content   string      `json:"content" db:"content"`
	Image     string      `json:"image" db:"image"`
	Timestamp time.Time   `json:"timestamp" db:"timestamp"`
	RequestID string      `json:"request_id,omitempty" db:"request_id"`
}
