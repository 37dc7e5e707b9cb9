package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// InMemoryStore is a process-local Store used by tests and ephemeral runs.
// Values are copied on the way in and out so callers never share state.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.Conversation
	flowConfig    *models.FlowConfig
	questions     map[string]models.FlowQuestion
	settings      models.Settings
	documents     map[int64]models.KnowledgeDocument
	nextDocID     int64
	dedup         map[string]DedupRecord
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]models.Conversation),
		questions:     make(map[string]models.FlowQuestion),
		settings:      models.Settings{},
		documents:     make(map[int64]models.KnowledgeDocument),
		dedup:         make(map[string]DedupRecord),
	}
}

func copyConversation(c models.Conversation) models.Conversation {
	c.Responses = append(models.Responses(nil), c.Responses...)
	c.MessageHistory = append([]models.MessageTurn(nil), c.MessageHistory...)
	return c
}

func (s *InMemoryStore) GetConversation(phone string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[phone]
	if !ok {
		return nil, nil
	}
	cp := copyConversation(c)
	return &cp, nil
}

func (s *InMemoryStore) SaveConversation(c *models.Conversation) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.Phone] = copyConversation(*c)
	return nil
}

func (s *InMemoryStore) DeleteConversation(phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, phone)
	return nil
}

func (s *InMemoryStore) ListConversations() ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, copyConversation(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemoryStore) GetActiveFlowConfig() (*models.FlowConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flowConfig == nil {
		cfg := models.DefaultFlowConfig()
		cfg.ID = 1
		cfg.UpdatedAt = time.Now()
		s.flowConfig = &cfg
	}
	cp := *s.flowConfig
	return &cp, nil
}

func (s *InMemoryStore) SaveFlowConfig(cfg *models.FlowConfig) error {
	if cfg.ID == 0 {
		cfg.ID = 1
	}
	cfg.UpdatedAt = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.flowConfig = &cp
	return nil
}

func (s *InMemoryStore) ListQuestions(flowConfigID int64) ([]models.FlowQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.FlowQuestion
	for _, q := range s.questions {
		if q.FlowConfigID == flowConfigID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) AddQuestion(q *models.FlowQuestion) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last := 0
	for _, existing := range s.questions {
		if existing.FlowConfigID == q.FlowConfigID && existing.Order > last {
			last = existing.Order
		}
	}
	q.Order = last + 1
	s.questions[q.ID] = *q
	return nil
}

func (s *InMemoryStore) UpdateQuestion(q models.FlowQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.questions[q.ID]
	if !ok {
		return ErrQuestionNotFound
	}
	existing.Question = q.Question
	existing.VariableName = q.VariableName
	existing.IsRequired = q.IsRequired
	s.questions[q.ID] = existing
	return nil
}

func (s *InMemoryStore) DeleteQuestion(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return ErrQuestionNotFound
	}
	delete(s.questions, id)
	return nil
}

func (s *InMemoryStore) ReorderQuestions(flowConfigID int64, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if q, ok := s.questions[id]; !ok || q.FlowConfigID != flowConfigID {
			return ErrQuestionNotFound
		}
	}
	for i, id := range ids {
		q := s.questions[id]
		q.Order = i + 1
		s.questions[id] = q
	}
	return nil
}

func (s *InMemoryStore) GetSettings() (models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(models.Settings, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *InMemoryStore) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *InMemoryStore) AddKnowledgeDocument(d *models.KnowledgeDocument) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDocID++
	d.ID = s.nextDocID
	s.documents[d.ID] = *d
	return nil
}

func (s *InMemoryStore) ListKnowledgeDocuments() ([]models.KnowledgeDocument, error) {
	return s.documentsWhere(func(models.KnowledgeDocument) bool { return true }), nil
}

func (s *InMemoryStore) ActiveKnowledgeDocuments() ([]models.KnowledgeDocument, error) {
	return s.documentsWhere(func(d models.KnowledgeDocument) bool { return d.IsActive }), nil
}

func (s *InMemoryStore) documentsWhere(keep func(models.KnowledgeDocument) bool) []models.KnowledgeDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.KnowledgeDocument
	for _, d := range s.documents {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *InMemoryStore) SetKnowledgeDocumentActive(id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return ErrDocumentNotFound
	}
	d.IsActive = active
	s.documents[id] = d
	return nil
}

func (s *InMemoryStore) DeleteKnowledgeDocument(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(s.documents, id)
	return nil
}

func (s *InMemoryStore) IsDuplicate(messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dedup[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(messageID, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[messageID]; ok {
		return false, nil
	}
	s.dedup[messageID] = DedupRecord{MessageID: messageID, Phone: phone, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.dedup[messageID]; ok {
		now := time.Now()
		r.ProcessedAt = &now
		s.dedup[messageID] = r
	}
	return nil
}

func (s *InMemoryStore) PurgeInbound(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.dedup {
		if r.ReceivedAt.Before(before) {
			delete(s.dedup, id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
