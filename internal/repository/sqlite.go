package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

// SQLiteStore implements the conversation ledger on SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens dsn and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := NewStore(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewStore wraps an already migrated database.
func NewStore(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// migrate runs database migrations.
// Sessions and messages carry no foreign key: the ledger checks the parent
// session inside each write transaction.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			last_message_time DATETIME,
			preview TEXT NOT NULL DEFAULT 'New Chat',
			PRIMARY KEY (user_id, session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			image TEXT NOT NULL DEFAULT '',
			timestamp DATETIME NOT NULL,
			request_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(user_id, session_id, timestamp, seq)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_request
			ON messages(user_id, session_id, request_id, type) WHERE request_id <> ''`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO sessions (user_id, session_id, created_at, updated_at, last_message_time, preview)
		 VALUES (:user_id, :session_id, :created_at, :updated_at, :last_message_time, :preview)`,
		session)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session. It returns nil, nil when none exists.
func (s *SQLiteStore) GetSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	var session domain.Session
	err := s.db.GetContext(ctx, &session,
		`SELECT user_id, session_id, created_at, updated_at, last_message_time, preview
		 FROM sessions WHERE user_id = ? AND session_id = ?`,
		userID, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// GetOrCreateSession returns the session, inserting template when it does not exist.
func (s *SQLiteStore) GetOrCreateSession(ctx context.Context, template *domain.Session) (*domain.Session, error) {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (user_id, session_id, created_at, updated_at, last_message_time, preview)
		 VALUES (:user_id, :session_id, :created_at, :updated_at, :last_message_time, :preview)`,
		template)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session, err := s.GetSession(ctx, template.UserID, template.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// AppendMessage records msg and touches its session in one transaction.
// A nil preview leaves the session preview unchanged.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *domain.Message, preview *string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions
		 SET updated_at = ?, last_message_time = ?, preview = COALESCE(?, preview)
		 WHERE user_id = ? AND session_id = ?`,
		msg.Timestamp, msg.Timestamp, preview, msg.UserID, msg.SessionID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	} else if n == 0 {
		return domain.ErrSessionNotFound
	}

	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO messages (message_id, user_id, session_id, type, content, image, timestamp, request_id)
		 VALUES (:message_id, :user_id, :session_id, :type, :content, :image, :timestamp, :request_id)`,
		msg)
	if err != nil {
		if isUniqueViolation(err) && msg.RequestID != "" {
			return domain.ErrDuplicateRequest
		}
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// ListSessions returns the user's non-empty sessions, most recently updated first.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string) ([]domain.SessionSummary, error) {
	sessions := []domain.SessionSummary{}
	err := s.db.SelectContext(ctx, &sessions,
		`SELECT s.session_id, s.preview, s.last_message_time, s.created_at, s.updated_at,
		        COUNT(m.seq) AS message_count
		 FROM sessions s
		 JOIN messages m ON m.user_id = s.user_id AND m.session_id = s.session_id
		 WHERE s.user_id = ?
		 GROUP BY s.user_id, s.session_id
		 ORDER BY s.updated_at DESC, s.session_id ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// ListMessages returns a session's messages in timestamp order, ties in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, userID, sessionID string) ([]domain.Message, error) {
	messages := []domain.Message{}
	err := s.db.SelectContext(ctx, &messages,
		`SELECT message_id, user_id, session_id, type, content, image, timestamp, request_id
		 FROM messages WHERE user_id = ? AND session_id = ?
		 ORDER BY timestamp ASC, seq ASC`,
		userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// FindRequestMessages returns the messages recorded under requestID.
func (s *SQLiteStore) FindRequestMessages(ctx context.Context, userID, sessionID, requestID string) ([]domain.Message, error) {
	messages := []domain.Message{}
	err := s.db.SelectContext(ctx, &messages,
		`SELECT message_id, user_id, session_id, type, content, image, timestamp, request_id
		 FROM messages WHERE user_id = ? AND session_id = ? AND request_id = ?
		 ORDER BY seq ASC`,
		userID, sessionID, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to find request messages: %w", err)
	}
	return messages, nil
}

// DeleteSession removes a session and its messages atomically.
func (s *SQLiteStore) DeleteSession(ctx context.Context, userID, sessionID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE user_id = ? AND session_id = ?`, userID, sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// UpsertPreview sets a session's preview, creating the session if needed.
func (s *SQLiteStore) UpsertPreview(ctx context.Context, session *domain.Session) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO sessions (user_id, session_id, created_at, updated_at, preview)
		 VALUES (:user_id, :session_id, :created_at, :updated_at, :preview)
		 ON CONFLICT (user_id, session_id)
		 DO UPDATE SET preview = excluded.preview, updated_at = excluded.updated_at`,
		session)
	if err != nil {
		return fmt.Errorf("failed to update preview: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
