package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

func (s *sqlDB) GetActiveFlowConfig() (*models.FlowConfig, error) {
	var cfg models.FlowConfig
	var mode, postAction string
	err := s.db.QueryRow(s.rebind(`SELECT id, mode, ai_question_count, ai_max_questions, post_action, title_template, description_template, is_active, updated_at
		FROM flow_configs WHERE is_active = ? ORDER BY id LIMIT 1`), true).
		Scan(&cfg.ID, &mode, &cfg.AIQuestionCount, &cfg.AIMaxQuestions, &postAction,
			&cfg.TitleTemplate, &cfg.DescriptionTemplate, &cfg.IsActive, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Info(s.name+".GetActiveFlowConfig: no active config, creating defaults")
		cfg = models.DefaultFlowConfig()
		if err := s.SaveFlowConfig(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err != nil {
		slog.Error(s.name+".GetActiveFlowConfig: query failed", "error", err)
		return nil, fmt.Errorf("failed to get active flow config: %w", err)
	}
	cfg.Mode = models.Mode(mode)
	cfg.PostAction = models.PostAction(postAction)
	return &cfg, nil
}

func (s *sqlDB) SaveFlowConfig(cfg *models.FlowConfig) error {
	cfg.UpdatedAt = time.Now()
	if cfg.ID == 0 {
		err := s.db.QueryRow(s.rebind(`INSERT INTO flow_configs (mode, ai_question_count, ai_max_questions, post_action, title_template, description_template, is_active, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			string(cfg.Mode), cfg.AIQuestionCount, cfg.AIMaxQuestions, string(cfg.PostAction),
			cfg.TitleTemplate, cfg.DescriptionTemplate, cfg.IsActive, cfg.UpdatedAt).Scan(&cfg.ID)
		if err != nil {
			slog.Error(s.name+".SaveFlowConfig: insert failed", "error", err)
			return fmt.Errorf("failed to insert flow config: %w", err)
		}
		slog.Debug(s.name+".SaveFlowConfig: inserted", "id", cfg.ID, "mode", cfg.Mode)
		return nil
	}
	_, err := s.db.Exec(s.rebind(`UPDATE flow_configs SET mode = ?, ai_question_count = ?, ai_max_questions = ?, post_action = ?,
		title_template = ?, description_template = ?, is_active = ?, updated_at = ? WHERE id = ?`),
		string(cfg.Mode), cfg.AIQuestionCount, cfg.AIMaxQuestions, string(cfg.PostAction),
		cfg.TitleTemplate, cfg.DescriptionTemplate, cfg.IsActive, cfg.UpdatedAt, cfg.ID)
	if err != nil {
		slog.Error(s.name+".SaveFlowConfig: update failed", "id", cfg.ID, "error", err)
		return fmt.Errorf("failed to update flow config %d: %w", cfg.ID, err)
	}
	slog.Debug(s.name+".SaveFlowConfig: updated", "id", cfg.ID, "mode", cfg.Mode)
	return nil
}

func (s *sqlDB) ListQuestions(flowConfigID int64) ([]models.FlowQuestion, error) {
	rows, err := s.db.Query(s.rebind(`SELECT id, flow_config_id, question, variable_name, position, is_required
		FROM flow_questions WHERE flow_config_id = ? ORDER BY position, id`), flowConfigID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow questions: %w", err)
	}
	defer rows.Close()
	var out []models.FlowQuestion
	for rows.Next() {
		var q models.FlowQuestion
		if err := rows.Scan(&q.ID, &q.FlowConfigID, &q.Question, &q.VariableName, &q.Order, &q.IsRequired); err != nil {
			return nil, fmt.Errorf("failed to scan flow question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flow questions: %w", err)
	}
	return out, nil
}

func (s *sqlDB) AddQuestion(q *models.FlowQuestion) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	var last int
	if err := s.db.QueryRow(s.rebind(`SELECT COALESCE(MAX(position), 0) FROM flow_questions WHERE flow_config_id = ?`), q.FlowConfigID).Scan(&last); err != nil {
		return fmt.Errorf("failed to read last question order: %w", err)
	}
	q.Order = last + 1
	_, err := s.db.Exec(s.rebind(`INSERT INTO flow_questions (id, flow_config_id, question, variable_name, position, is_required) VALUES (?, ?, ?, ?, ?, ?)`),
		q.ID, q.FlowConfigID, q.Question, q.VariableName, q.Order, q.IsRequired)
	if err != nil {
		slog.Error(s.name+".AddQuestion: insert failed", "error", err)
		return fmt.Errorf("failed to insert flow question: %w", err)
	}
	slog.Debug(s.name+".AddQuestion: added", "id", q.ID, "order", q.Order)
	return nil
}

func (s *sqlDB) UpdateQuestion(q models.FlowQuestion) error {
	res, err := s.db.Exec(s.rebind(`UPDATE flow_questions SET question = ?, variable_name = ?, is_required = ? WHERE id = ?`),
		q.Question, q.VariableName, q.IsRequired, q.ID)
	if err != nil {
		return fmt.Errorf("failed to update flow question %s: %w", q.ID, err)
	}
	return requireAffected(res, ErrQuestionNotFound)
}

func (s *sqlDB) DeleteQuestion(id string) error {
	res, err := s.db.Exec(s.rebind(`DELETE FROM flow_questions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete flow question %s: %w", id, err)
	}
	return requireAffected(res, ErrQuestionNotFound)
}

func (s *sqlDB) ReorderQuestions(flowConfigID int64, ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for i, id := range ids {
		res, err := tx.Exec(s.rebind(`UPDATE flow_questions SET position = ? WHERE id = ? AND flow_config_id = ?`), i+1, id, flowConfigID)
		if err != nil {
			return fmt.Errorf("failed to reorder flow question %s: %w", id, err)
		}
		if err := requireAffected(res, ErrQuestionNotFound); err != nil {
			return fmt.Errorf("question %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit question order: %w", err)
	}
	slog.Debug(s.name+".ReorderQuestions: reordered", "flow_config_id", flowConfigID, "count", len(ids))
	return nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
