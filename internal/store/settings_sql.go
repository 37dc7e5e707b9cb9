package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

func (s *sqlDB) GetSettings() (models.Settings, error) {
	rows, err := s.db.Query(`SELECT name, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()
	out := models.Settings{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *sqlDB) SetSetting(key, value string) error {
	_, err := s.db.Exec(s.rebind(`INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`), key, value)
	if err != nil {
		slog.Error(s.name+".SetSetting: upsert failed", "key", key, "error", err)
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

func (s *sqlDB) AddKnowledgeDocument(d *models.KnowledgeDocument) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	err := s.db.QueryRow(s.rebind(`INSERT INTO knowledge_documents (title, file_name, content, summary, category, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		d.Title, nilIfEmpty(d.FileName), d.Content, nilIfEmpty(d.Summary), nilIfEmpty(d.Category), d.IsActive, d.CreatedAt).Scan(&d.ID)
	if err != nil {
		slog.Error(s.name+".AddKnowledgeDocument: insert failed", "title", d.Title, "error", err)
		return fmt.Errorf("failed to insert knowledge document: %w", err)
	}
	return nil
}

func (s *sqlDB) ListKnowledgeDocuments() ([]models.KnowledgeDocument, error) {
	return s.queryDocuments(`SELECT id, title, file_name, content, summary, category, is_active, created_at
		FROM knowledge_documents ORDER BY created_at DESC, id DESC`)
}

func (s *sqlDB) ActiveKnowledgeDocuments() ([]models.KnowledgeDocument, error) {
	return s.queryDocuments(s.rebind(`SELECT id, title, file_name, content, summary, category, is_active, created_at
		FROM knowledge_documents WHERE is_active = ? ORDER BY created_at DESC, id DESC`), true)
}

func (s *sqlDB) queryDocuments(query string, args ...interface{}) ([]models.KnowledgeDocument, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge documents: %w", err)
	}
	defer rows.Close()
	var out []models.KnowledgeDocument
	for rows.Next() {
		var d models.KnowledgeDocument
		var fileName, summary, category sql.NullString
		if err := rows.Scan(&d.ID, &d.Title, &fileName, &d.Content, &summary, &category, &d.IsActive, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge document: %w", err)
		}
		d.FileName, d.Summary, d.Category = fileName.String, summary.String, category.String
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqlDB) SetKnowledgeDocumentActive(id int64, active bool) error {
	res, err := s.db.Exec(s.rebind(`UPDATE knowledge_documents SET is_active = ? WHERE id = ?`), active, id)
	if err != nil {
		return fmt.Errorf("failed to update knowledge document %d: %w", id, err)
	}
	return requireAffected(res, ErrDocumentNotFound)
}

func (s *sqlDB) DeleteKnowledgeDocument(id int64) error {
	res, err := s.db.Exec(s.rebind(`DELETE FROM knowledge_documents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge document %d: %w", id, err)
	}
	return requireAffected(res, ErrDocumentNotFound)
}
