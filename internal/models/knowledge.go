package models

import "time"

// KnowledgeDocument is reference text injected into oracle prompts.
type KnowledgeDocument struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	FileName  string    `json:"file_name,omitempty"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary,omitempty"`
	Category  string    `json:"category,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
