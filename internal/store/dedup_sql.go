package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Compile-time checks that both database stores implement DedupRepo.
var (
	_ DedupRepo = (*SQLiteStore)(nil)
	_ DedupRepo = (*PostgresStore)(nil)
)

func (s *sqlDB) IsDuplicate(messageID string) (bool, error) {
	var id string
	err := s.db.QueryRow(s.rebind(`SELECT message_id FROM inbound_dedup WHERE message_id = ?`), messageID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return true, nil
}

func (s *sqlDB) RecordInbound(messageID, phone string) (bool, error) {
	res, err := s.db.Exec(
		s.rebind(`INSERT INTO inbound_dedup (message_id, phone, received_at) VALUES (?, ?, ?) ON CONFLICT (message_id) DO NOTHING`),
		messageID, phone, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	return n == 1, nil
}

func (s *sqlDB) MarkProcessed(messageID string) error {
	_, err := s.db.Exec(
		s.rebind(`UPDATE inbound_dedup SET processed_at = ? WHERE message_id = ?`),
		time.Now(), messageID,
	)
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

func (s *sqlDB) PurgeInbound(before time.Time) (int64, error) {
	res, err := s.db.Exec(s.rebind(`DELETE FROM inbound_dedup WHERE received_at < ?`), before)
	if err != nil {
		return 0, fmt.Errorf("purge inbound failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge inbound failed: %w", err)
	}
	return n, nil
}
