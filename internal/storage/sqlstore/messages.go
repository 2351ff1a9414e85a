package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/autama/autama/backend/internal/model/chat"
)

// MessageStore implements chat.MessageStore.
type MessageStore struct {
	db *sql.DB
}

var _ chat.MessageStore = (*MessageStore)(nil)

// Append stores messages atomically in order.
func (s *MessageStore) Append(ctx context.Context, messages ...chat.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range messages {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, session_id, persona_id, user_id, sender, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.SessionID, m.PersonaID, m.UserID, m.Sender, m.Content, toUnix(m.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to store message: %w", err)
		}
	}
	return tx.Commit()
}

func (s *MessageStore) ListBySession(ctx context.Context, sessionID string) ([]chat.Message, error) {
	return s.query(ctx, `SELECT id, session_id, persona_id, user_id, sender, content, created_at
		FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
}

func (s *MessageStore) List(ctx context.Context) ([]chat.Message, error) {
	return s.query(ctx, `SELECT id, session_id, persona_id, user_id, sender, content, created_at
		FROM messages ORDER BY seq`)
}

func (s *MessageStore) query(ctx context.Context, query string, args ...any) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var (
			m       chat.Message
			userID  sql.NullString
			created int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.PersonaID, &userID, &m.Sender, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.UserID = userID.String
		m.CreatedAt = fromUnix(created)
		out = append(out, m)
	}
	return out, rows.Err()
}
