package store

import "time"

// DedupRecord is one row of the inbound ledger: a transport message id seen from a phone.
type DedupRecord struct {
	MessageID   string     `json:"message_id"`
	Phone       string     `json:"phone"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// DedupRepo is the inbound ledger that drops transport redeliveries.
type DedupRepo interface {
	IsDuplicate(messageID string) (bool, error)

	// RecordInbound claims messageID. It reports false when the id was already
	// claimed, which makes the current delivery a redelivery.
	RecordInbound(messageID, phone string) (bool, error)

	// MarkProcessed stamps processed_at once the orchestrator has handled the message.
	MarkProcessed(messageID string) error

	// PurgeInbound deletes records received before cutoff and returns how many were removed.
	PurgeInbound(before time.Time) (int64, error)
}
