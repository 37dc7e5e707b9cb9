package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

func (s *sqlDB) GetConversation(phone string) (*models.Conversation, error) {
	c := &models.Conversation{Phone: phone}
	var step, mode string
	var clientName, lastRaw sql.NullString
	err := s.db.QueryRow(s.rebind(`SELECT step, mode, client_name, current_question_index, ai_question_count, last_message_raw, created_at, updated_at
		FROM conversations WHERE phone = ?`), phone).
		Scan(&step, &mode, &clientName, &c.CurrentQuestionIndex, &c.AIQuestionCount, &lastRaw, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error(s.name+".GetConversation: query failed", "phone", phone, "error", err)
		return nil, fmt.Errorf("failed to get conversation for %s: %w", phone, err)
	}
	c.Step = models.Step(step)
	c.Mode = models.Mode(mode)
	c.ClientName = clientName.String
	c.LastMessageRaw = lastRaw.String

	rows, err := s.db.Query(s.rebind(`SELECT variable, value FROM conversation_responses WHERE phone = ? ORDER BY position`), phone)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses for %s: %w", phone, err)
	}
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.Variable, &a.Value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan response row: %w", err)
		}
		c.Responses = append(c.Responses, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate response rows: %w", err)
	}

	rows, err = s.db.Query(s.rebind(`SELECT role, content, created_at FROM conversation_messages WHERE phone = ? ORDER BY seq`), phone)
	if err != nil {
		return nil, fmt.Errorf("failed to query message history for %s: %w", phone, err)
	}
	defer rows.Close()
	for rows.Next() {
		var m models.MessageTurn
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		c.MessageHistory = append(c.MessageHistory, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	slog.Debug(s.name+".GetConversation: loaded", "phone", phone, "step", c.Step, "history", len(c.MessageHistory))
	return c, nil
}

// SaveConversation upserts the conversation row, rewrites its responses and
// appends history turns beyond those already stored.
func (s *sqlDB) SaveConversation(c *models.Conversation) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(s.rebind(`INSERT INTO conversations (phone, step, mode, client_name, current_question_index, ai_question_count, last_message_raw, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (phone) DO UPDATE SET
			step = excluded.step,
			mode = excluded.mode,
			client_name = excluded.client_name,
			current_question_index = excluded.current_question_index,
			ai_question_count = excluded.ai_question_count,
			last_message_raw = excluded.last_message_raw,
			updated_at = excluded.updated_at`),
		c.Phone, string(c.Step), string(c.Mode), nilIfEmpty(c.ClientName), c.CurrentQuestionIndex, c.AIQuestionCount,
		nilIfEmpty(c.LastMessageRaw), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		slog.Error(s.name+".SaveConversation: upsert failed", "phone", c.Phone, "error", err)
		return fmt.Errorf("failed to save conversation for %s: %w", c.Phone, err)
	}

	if _, err := tx.Exec(s.rebind(`DELETE FROM conversation_responses WHERE phone = ?`), c.Phone); err != nil {
		return fmt.Errorf("failed to clear responses for %s: %w", c.Phone, err)
	}
	for i, a := range c.Responses {
		if _, err := tx.Exec(s.rebind(`INSERT INTO conversation_responses (phone, position, variable, value) VALUES (?, ?, ?, ?)`),
			c.Phone, i, a.Variable, a.Value); err != nil {
			return fmt.Errorf("failed to insert response %s for %s: %w", a.Variable, c.Phone, err)
		}
	}

	var stored int
	if err := tx.QueryRow(s.rebind(`SELECT COUNT(*) FROM conversation_messages WHERE phone = ?`), c.Phone).Scan(&stored); err != nil {
		return fmt.Errorf("failed to count messages for %s: %w", c.Phone, err)
	}
	if stored > len(c.MessageHistory) {
		if _, err := tx.Exec(s.rebind(`DELETE FROM conversation_messages WHERE phone = ? AND seq >= ?`), c.Phone, len(c.MessageHistory)); err != nil {
			return fmt.Errorf("failed to truncate messages for %s: %w", c.Phone, err)
		}
		stored = len(c.MessageHistory)
	}
	for i := stored; i < len(c.MessageHistory); i++ {
		m := c.MessageHistory[i]
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		if _, err := tx.Exec(s.rebind(`INSERT INTO conversation_messages (phone, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (phone, seq) DO UPDATE SET role = excluded.role, content = excluded.content, created_at = excluded.created_at`),
			c.Phone, i, m.Role, m.Content, m.Timestamp); err != nil {
			return fmt.Errorf("failed to insert message %d for %s: %w", i, c.Phone, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation for %s: %w", c.Phone, err)
	}
	slog.Debug(s.name+".SaveConversation: saved", "phone", c.Phone, "step", c.Step, "appended", len(c.MessageHistory)-stored)
	return nil
}

func (s *sqlDB) DeleteConversation(phone string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, q := range []string{
		`DELETE FROM conversation_messages WHERE phone = ?`,
		`DELETE FROM conversation_responses WHERE phone = ?`,
		`DELETE FROM conversations WHERE phone = ?`,
	} {
		if _, err := tx.Exec(s.rebind(q), phone); err != nil {
			slog.Error(s.name+".DeleteConversation: delete failed", "phone", phone, "error", err)
			return fmt.Errorf("failed to delete conversation for %s: %w", phone, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation delete for %s: %w", phone, err)
	}
	slog.Debug(s.name+".DeleteConversation: deleted", "phone", phone)
	return nil
}

func (s *sqlDB) ListConversations() ([]models.Conversation, error) {
	rows, err := s.db.Query(`SELECT phone FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	var phones []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan conversation phone: %w", err)
		}
		phones = append(phones, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	out := make([]models.Conversation, 0, len(phones))
	for _, p := range phones {
		c, err := s.GetConversation(p)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}
