// Package store provides storage backends for conversations, the flow
// configuration, operator settings and the knowledge base.
//
// It includes an in-memory store for tests and SQLite and PostgreSQL backends
// for production.
package store

import (
	"errors"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// ErrQuestionNotFound is returned when a flow question id does not exist.
var ErrQuestionNotFound = errors.New("flow question not found")

// ErrDocumentNotFound is returned when a knowledge document id does not exist.
var ErrDocumentNotFound = errors.New("knowledge document not found")

// ConversationRepo persists per-phone interview state.
type ConversationRepo interface {
	// GetConversation returns (nil, nil) when no conversation exists for phone.
	GetConversation(phone string) (*models.Conversation, error)
	// SaveConversation writes a full snapshot. Concurrent writers race with last-write-wins.
	SaveConversation(c *models.Conversation) error
	DeleteConversation(phone string) error
	ListConversations() ([]models.Conversation, error)
}

// FlowRepo persists the active flow configuration and its MANUAL questions.
type FlowRepo interface {
	// GetActiveFlowConfig creates the default configuration on first use.
	GetActiveFlowConfig() (*models.FlowConfig, error)
	SaveFlowConfig(cfg *models.FlowConfig) error
	// ListQuestions returns questions in ascending order.
	ListQuestions(flowConfigID int64) ([]models.FlowQuestion, error)
	// AddQuestion assigns an id and appends the question after the current last one.
	AddQuestion(q *models.FlowQuestion) error
	UpdateQuestion(q models.FlowQuestion) error
	DeleteQuestion(id string) error
	// ReorderQuestions assigns order 1..n following ids.
	ReorderQuestions(flowConfigID int64, ids []string) error
}

// SettingsRepo persists operator key/value settings.
type SettingsRepo interface {
	GetSettings() (models.Settings, error)
	SetSetting(key, value string) error
}

// KnowledgeRepo persists reference documents for oracle prompts.
type KnowledgeRepo interface {
	AddKnowledgeDocument(d *models.KnowledgeDocument) error
	ListKnowledgeDocuments() ([]models.KnowledgeDocument, error)
	ActiveKnowledgeDocuments() ([]models.KnowledgeDocument, error)
	SetKnowledgeDocumentActive(id int64, active bool) error
	DeleteKnowledgeDocument(id int64) error
}

// Store is the full storage surface used by the application.
type Store interface {
	ConversationRepo
	FlowRepo
	SettingsRepo
	KnowledgeRepo
	DedupRepo
	Close() error
}

// Opts holds configuration options for database-backed stores.
type Opts struct {
	DSN string // database connection string or SQLite file path
}

// Option defines a function for configuring store options.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// IsPostgresDSN reports whether dsn addresses a PostgreSQL server rather than a SQLite file.
func IsPostgresDSN(dsn string) bool {
	for _, prefix := range []string{"postgres://", "postgresql://", "host=", "user=", "dbname="} {
		if len(dsn) >= len(prefix) && dsn[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
