package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gsPatrick/api-camilamoura/internal/config"
	"github.com/gsPatrick/api-camilamoura/internal/flow"
	"github.com/gsPatrick/api-camilamoura/internal/models"
	"github.com/gsPatrick/api-camilamoura/internal/store"
)

// maxRequestBody caps admin request bodies; knowledge documents are the largest.
const maxRequestBody = 4 << 20

// editableSettings are the keys PUT /admin/settings accepts.
var editableSettings = map[string]bool{
	models.SettingEthicsNotice:     true,
	models.SettingHasLawyerMessage: true,
	models.SettingInPersonMessage:  true,
	models.SettingTargetListID:     true,
	models.SettingUrgentLabelID:    true,
	models.SettingSpecialtiesJSON:  true,
	models.SettingSystemPrompt:     true,
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst); err != nil {
		slog.Warn("Server.decodeJSON: invalid body", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return false
	}
	return true
}

// writeStoreError maps store errors to responses.
func writeStoreError(w http.ResponseWriter, op string, err error) {
	var validation models.ValidationError
	switch {
	case errors.Is(err, store.ErrQuestionNotFound), errors.Is(err, store.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Server."+op+": store error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "ok"}))
}

// flowConfigView is the flow configuration together with its MANUAL questions.
type flowConfigView struct {
	models.FlowConfig
	Questions []models.FlowQuestion `json:"questions"`
}

func (s *Server) getFlowConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.st.GetActiveFlowConfig()
	if err != nil {
		writeStoreError(w, "getFlowConfigHandler", err)
		return
	}
	questions, err := s.st.ListQuestions(cfg.ID)
	if err != nil {
		writeStoreError(w, "getFlowConfigHandler", err)
		return
	}
	if questions == nil {
		questions = []models.FlowQuestion{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(flowConfigView{FlowConfig: *cfg, Questions: questions}))
}

// flowConfigUpdate carries the operator-editable fields; absent fields keep their value.
type flowConfigUpdate struct {
	Mode                *models.Mode       `json:"mode"`
	AIQuestionCount     *int               `json:"ai_question_count"`
	AIMaxQuestions      *int               `json:"ai_max_questions"`
	PostAction          *models.PostAction `json:"post_action"`
	TitleTemplate       *string            `json:"title_template"`
	DescriptionTemplate *string            `json:"description_template"`
}

func (u flowConfigUpdate) apply(cfg *models.FlowConfig) {
	if u.Mode != nil {
		cfg.Mode = *u.Mode
	}
	if u.AIQuestionCount != nil {
		cfg.AIQuestionCount = *u.AIQuestionCount
	}
	if u.AIMaxQuestions != nil {
		cfg.AIMaxQuestions = *u.AIMaxQuestions
	}
	if u.PostAction != nil {
		cfg.PostAction = *u.PostAction
	}
	if u.TitleTemplate != nil {
		cfg.TitleTemplate = *u.TitleTemplate
	}
	if u.DescriptionTemplate != nil {
		cfg.DescriptionTemplate = *u.DescriptionTemplate
	}
}

func (s *Server) updateFlowConfigHandler(w http.ResponseWriter, r *http.Request) {
	var update flowConfigUpdate
	if !decodeJSON(w, r, &update) {
		return
	}
	cfg, err := s.st.GetActiveFlowConfig()
	if err != nil {
		writeStoreError(w, "updateFlowConfigHandler", err)
		return
	}
	update.apply(cfg)
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.st.SaveFlowConfig(cfg); err != nil {
		writeStoreError(w, "updateFlowConfigHandler", err)
		return
	}
	slog.Info("Server.updateFlowConfigHandler: flow config updated", "mode", cfg.Mode, "post_action", cfg.PostAction)
	writeJSONResponse(w, http.StatusOK, models.Success(cfg))
}

func (s *Server) addQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var q models.FlowQuestion
	if !decodeJSON(w, r, &q) {
		return
	}
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := s.st.GetActiveFlowConfig()
	if err != nil {
		writeStoreError(w, "addQuestionHandler", err)
		return
	}
	q.ID = ""
	q.FlowConfigID = cfg.ID
	if err := s.st.AddQuestion(&q); err != nil {
		writeStoreError(w, "addQuestionHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(q))
}

func (s *Server) updateQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var q models.FlowQuestion
	if !decodeJSON(w, r, &q) {
		return
	}
	q.ID = r.PathValue("id")
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.st.UpdateQuestion(q); err != nil {
		writeStoreError(w, "updateQuestionHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(q))
}

func (s *Server) deleteQuestionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.st.DeleteQuestion(r.PathValue("id")); err != nil {
		writeStoreError(w, "deleteQuestionHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Question deleted", nil))
}

func (s *Server) reorderQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	cfg, err := s.st.GetActiveFlowConfig()
	if err != nil {
		writeStoreError(w, "reorderQuestionsHandler", err)
		return
	}
	if err := s.st.ReorderQuestions(cfg.ID, body.IDs); err != nil {
		writeStoreError(w, "reorderQuestionsHandler", err)
		return
	}
	questions, err := s.st.ListQuestions(cfg.ID)
	if err != nil {
		writeStoreError(w, "reorderQuestionsHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(questions))
}

// previewSample is the fictitious case rendered by the template preview.
var previewSample = struct {
	phone, name string
	cls         models.Classification
	responses   models.Responses
}{
	phone: "5571999999999",
	name:  "Maria da Silva",
	cls: models.Classification{
		Type:    "Previdenciário",
		Urgency: models.UrgencyNormal,
		Summary: "Cliente teve o auxílio-doença negado pelo INSS e quer recorrer.",
	},
	responses: models.Responses{
		{Variable: "nome", Value: "Maria da Silva"},
		{Variable: "relato", Value: "Meu auxílio-doença foi negado no mês passado e não consigo trabalhar."},
	},
}

func (s *Server) previewHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TitleTemplate       string `json:"title_template"`
		DescriptionTemplate string `json:"description_template"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.TitleTemplate == "" || body.DescriptionTemplate == "" {
		cfg, err := s.st.GetActiveFlowConfig()
		if err != nil {
			writeStoreError(w, "previewHandler", err)
			return
		}
		if body.TitleTemplate == "" {
			body.TitleTemplate = cfg.TitleTemplate
		}
		if body.DescriptionTemplate == "" {
			body.DescriptionTemplate = cfg.DescriptionTemplate
		}
	}
	data := flow.TemplateData(previewSample.phone, previewSample.name, previewSample.cls, previewSample.responses)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{
		"title":       strings.ToUpper(flow.Render(body.TitleTemplate, data)),
		"description": flow.Render(body.DescriptionTemplate, data),
	}))
}

func (s *Server) boardHandler(w http.ResponseWriter, r *http.Request) {
	if s.board == nil {
		writeError(w, http.StatusServiceUnavailable, "Board not configured")
		return
	}
	var (
		lists  []models.BoardList
		labels []models.BoardLabel
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		lists, err = s.board.Lists(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		labels, err = s.board.Labels(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Error("Server.boardHandler: board request failed", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to load board data")
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"lists":  lists,
		"labels": labels,
	}))
}

func (s *Server) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := s.st.GetSettings()
	if err != nil {
		writeStoreError(w, "getSettingsHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(settings))
}

func (s *Server) updateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if !decodeJSON(w, r, &body) {
		return
	}
	for key := range body {
		if !editableSettings[key] {
			writeError(w, http.StatusBadRequest, "unknown setting: "+key)
			return
		}
	}
	if raw, ok := body[models.SettingSpecialtiesJSON]; ok && strings.TrimSpace(raw) != "" {
		if _, err := config.ParseCategories(raw); err != nil {
			writeError(w, http.StatusBadRequest, models.SettingSpecialtiesJSON+": "+err.Error())
			return
		}
	}
	for key, value := range body {
		if err := s.st.SetSetting(key, value); err != nil {
			writeStoreError(w, "updateSettingsHandler", err)
			return
		}
	}
	slog.Info("Server.updateSettingsHandler: settings updated", "count", len(body))
	s.getSettingsHandler(w, r)
}

func (s *Server) listConversationsHandler(w http.ResponseWriter, r *http.Request) {
	convs, err := s.st.ListConversations()
	if err != nil {
		writeStoreError(w, "listConversationsHandler", err)
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(convs))
}

func (s *Server) deleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	phone := r.PathValue("phone")
	if err := s.st.DeleteConversation(phone); err != nil {
		writeStoreError(w, "deleteConversationHandler", err)
		return
	}
	slog.Info("Server.deleteConversationHandler: conversation reset", "phone", phone)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation deleted", nil))
}

func (s *Server) listKnowledgeHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := s.st.ListKnowledgeDocuments()
	if err != nil {
		writeStoreError(w, "listKnowledgeHandler", err)
		return
	}
	if docs == nil {
		docs = []models.KnowledgeDocument{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(docs))
}

func (s *Server) addKnowledgeHandler(w http.ResponseWriter, r *http.Request) {
	var doc models.KnowledgeDocument
	if !decodeJSON(w, r, &doc) {
		return
	}
	if strings.TrimSpace(doc.Title) == "" || strings.TrimSpace(doc.Content) == "" {
		writeError(w, http.StatusBadRequest, "title and content are required")
		return
	}
	doc.ID = 0
	doc.IsActive = true
	if err := s.st.AddKnowledgeDocument(&doc); err != nil {
		writeStoreError(w, "addKnowledgeHandler", err)
		return
	}
	slog.Info("Server.addKnowledgeHandler: document added", "id", doc.ID, "title", doc.Title)
	writeJSONResponse(w, http.StatusCreated, models.Success(doc))
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return id, true
}

func (s *Server) toggleKnowledgeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		IsActive bool `json:"is_active"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.st.SetKnowledgeDocumentActive(id, body.IsActive); err != nil {
		writeStoreError(w, "toggleKnowledgeHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{"id": id, "is_active": body.IsActive}))
}

func (s *Server) deleteKnowledgeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.st.DeleteKnowledgeDocument(id); err != nil {
		writeStoreError(w, "deleteKnowledgeHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Document deleted", nil))
}
