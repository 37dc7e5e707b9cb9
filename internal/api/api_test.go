package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/genai"
	"github.com/gsPatrick/api-camilamoura/internal/models"
	"github.com/gsPatrick/api-camilamoura/internal/store"
	"github.com/gsPatrick/api-camilamoura/internal/testutil"
	"github.com/gsPatrick/api-camilamoura/internal/triage"
)

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

type fakeBoard struct {
	lists  []models.BoardList
	labels []models.BoardLabel
	err    error
}

func (f *fakeBoard) Lists(ctx context.Context) ([]models.BoardList, error) {
	return f.lists, f.err
}

func (f *fakeBoard) Labels(ctx context.Context) ([]models.BoardLabel, error) {
	return f.labels, nil
}

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore, http.Handler) {
	t.Helper()
	st := store.NewInMemoryStore()
	b := &fakeBoard{
		lists:  []models.BoardList{{ID: "L1", Name: "Triagem"}},
		labels: []models.BoardLabel{{ID: "lab-urg", Name: "URGENTE", Color: "red"}},
	}
	srv := NewServer(st, b)
	return srv, st, srv.Handler()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	_, _, h := newTestServer(t)
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	testutil.AssertJSONResponse(t, rr, "ok")
}

func TestWebhookMounted(t *testing.T) {
	var called bool
	srv := NewServer(store.NewInMemoryStore(), nil, WithWebhook("/webhook/zapi", func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	h := srv.Handler()

	rr := serve(h, httptest.NewRequest(http.MethodPost, "/webhook/zapi", strings.NewReader("{}")))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook")
	if !called {
		t.Error("webhook handler not called")
	}
	rr = serve(h, httptest.NewRequest(http.MethodPost, "/webhook/twilio", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unmounted webhook")
}

func TestFlowConfig_GetAndUpdate(t *testing.T) {
	_, st, h := newTestServer(t)
	testutil.SeedQuestions(t, st, models.FlowQuestion{Question: "Qual é o seu nome?", VariableName: "nome"})

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/admin/flow-config", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get flow config")
	var view flowConfigView
	testutil.MustUnmarshalJSON(t, testutil.AssertJSONResponse(t, rr, "ok"), &view)
	if view.Mode != models.DefaultMode || len(view.Questions) != 1 {
		t.Errorf("view = %+v", view)
	}

	rr = serve(h, testutil.NewJSONRequest(t, http.MethodPut, "/admin/flow-config", `{"mode":"MANUAL","post_action":"AI_RESPONSE"}`))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "update flow config")
	cfg, _ := st.GetActiveFlowConfig()
	if cfg.Mode != models.ModeManual || cfg.PostAction != models.PostActionAIResponse {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.TitleTemplate != models.DefaultTitleTemplate {
		t.Errorf("absent field changed: %q", cfg.TitleTemplate)
	}

	rr = serve(h, testutil.NewJSONRequest(t, http.MethodPut, "/admin/flow-config", `{"mode":"FREESTYLE"}`))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid mode")
	testutil.AssertJSONResponse(t, rr, "error")

	rr = serve(h, testutil.NewJSONRequest(t, http.MethodPut, "/admin/flow-config", `{`))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid JSON")
}

func TestQuestions_CRUDAndReorder(t *testing.T) {
	_, st, h := newTestServer(t)

	var created []models.FlowQuestion
	for _, q := range []models.FlowQuestion{
		{Question: "Qual é o seu nome?", VariableName: "nome"},
		{Question: "Qual a sua cidade?", VariableName: "cidade"},
	} {
		rr := serve(h, testutil.NewJSONRequest(t, http.MethodPost, "/admin/flow-config/questions", q))
		testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "add question")
		var got models.FlowQuestion
		testutil.MustUnmarshalJSON(t, testutil.AssertJSONResponse(t, rr, "ok"), &got)
		created = append(created, got)
	}
	if created[0].ID == "" || created[1].Order != 2 {
		t.Fatalf("created = %+v", created)
	}

	rr := serve(h, testutil.NewJSONRequest(t, http.MethodPost, "/admin/flow-config/questions", `{"question":"sem variável"}`))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid question")

	rr = serve(h, testutil.NewJSONRequest(t, http.MethodPut, "/admin/flow-config/questions-order",
		map[string][]string{"ids": {created[1].ID, created[0].ID}}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "reorder")
	cfg, _ := st.GetActiveFlowConfig()
	qs, _ := st.ListQuestions(cfg.ID)
	if qs[0].VariableName != "cidade" {
		t.Errorf("order after reorder = %+v", qs)
	}

	rr = serve(h, testutil.NewJSONRequest(t, http.MethodPut, "/admin/flow-config/questions/"+created[0].ID,
		models.FlowQuestion{Question: "Como você se chama?", VariableName: "nome"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "update question")

	rr = serve(h, testutil.NewJSONRequest(t, http.MethodPut, "/admin/flow-config/questions/missing",
		models.FlowQuestion{Question: "x", VariableName: "y"}))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "update missing question")

	rr = serve(h, httptest.NewRequest(http.MethodDelete, "/admin/flow-config/questions/"+created[1].ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "delete question")
	rr = serve(h, httptest.NewRequest(http.MethodDelete, "/admin/flow-config/questions/"+created[1].ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "delete twice")

	qs, _ = st.ListQuestions(cfg.ID)
	if len(qs) != 1 || qs[0].Question != "Como você se chama?" {
		t.Errorf("questions = %+v", qs)
	}
}

func TestPreview(t *testing.T) {
	_, _, h := newTestServer(t)
	rr := serve(h, testutil.NewJSONRequest(t, http.MethodPost, "/admin/flow-config/preview",
		`{"title_template":"{nome} - {area}","description_template":"Tel: {telefone}\n{desconhecido}Urgência: {urgencia}"}`))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "preview")
	var got map[string]string
	testutil.MustUnmarshalJSON(t, testutil.AssertJSONResponse(t, rr, "ok"), &got)
	if got["title"] != "MARIA DA SILVA - PREVIDENCIÁRIO" {
		t.Errorf("title = %q", got["title"])
	}
	if got["description"] != "Tel: 5571999999999\nUrgência: Normal" {
		t.Errorf("description = %q", got["description"])
	}

	rr = serve(h, testutil.NewJSONRequest(t, http.MethodPost, "/admin/flow-config/preview", `{}`))
	testutil.MustUnmarshalJSON(t, testutil.AssertJSONResponse(t, rr, "ok"), &got)
	if got["title"] != "MARIA DA SILVA: 5571999999999" {
		t.Errorf("default title = %q", got["title"])
	}
}

func TestBoard(t *testing.T) {
	_, _, h := newTestServer(t)
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/admin/board", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "board")
	var got struct {
		Lists  []models.BoardList  `json:"lists"`
		Labels []models.BoardLabel `json:"labels"`
	}
	testutil.MustUnmarshalJSON(t, testutil.AssertJSONResponse(t, rr, "ok"), &got)
	if len(got.Lists) != 1 || len(got.Labels) != 1 || got.Labels[0].ID != "lab-urg" {
		t.Errorf("board = %+v", got)
	}

	failing := NewServer(store.NewInMemoryStore(), &fakeBoard{err: errors.New("trello down")}).Handler()
	rr = serve(failing, httptest.NewRequest(http.MethodGet, "/admin/board", nil))
	testutil.AssertHTTPStatus(t, http.StatusBadGateway, rr.Code, "board failure")

	unconfigured := NewServer(store.NewInMemoryStore(), nil).Handler()
	rr = serve(unconfigured, httptest.NewRequest(http.MethodGet, "/admin/board", nil))
	testutil.AssertHTTPStatus(t, http.StatusServiceUnavailable, rr.Code, "no board")
}

func TestSettings(t *testing.T) {
	_, st, h := newTestServer(t)

	rr := serve(h, testutil.NewJSONRequest(t, http.MethodPut, "/admin/settings",
		map[string]string{models.SettingEthicsNotice: "Aviso ético", models.SettingTargetListID: "L1"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "update settings")
	var got models.Settings
	testutil.MustUnmarshalJSON(t, testutil.AssertJSONResponse(t, rr, "ok"), &got)
	if got[models.SettingTargetListID] != "L1" {
		t.Errorf("settings = %v", got)
	}

	rr = serve(h, testutil.NewJSONRequest(t, http.MethodPut, "/admin/settings", map[string]string{"OPENAI_API_KEY": "x"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "unknown key")

	rr = serve(h, testutil.NewJSONRequest(t, http.MethodPut, "/admin/settings", map[string]string{models.SettingSpecialtiesJSON: "Previdenciário"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid specialties")

	settings, _ := st.GetSettings()
	if settings[models.SettingEthicsNotice] != "Aviso ético" || settings[models.SettingSpecialtiesJSON] != "" {
		t.Errorf("stored settings = %v", settings)
	}

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/admin/settings", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get settings")
}

type stubCompleter struct {
	reply  string
	system string
}

func (c *stubCompleter) Complete(ctx context.Context, system string, msgs []genai.Message, opts genai.CompletionOptions) (string, error) {
	c.system = system
	return c.reply, nil
}

func TestSettings_SpecialtiesReachClassifier(t *testing.T) {
	formats := map[string]string{
		"names":   `["BPC/LOAS","Trabalhista"]`,
		"objects": `[{"id":1,"name":"BPC/LOAS","keywords":"idoso, loas","rules":"Idosos > 65 anos"},{"id":2,"name":"Trabalhista","keywords":"demissão"}]`,
	}
	for name, raw := range formats {
		t.Run(name, func(t *testing.T) {
			_, st, h := newTestServer(t)
			rr := serve(h, testutil.NewJSONRequest(t, http.MethodPut, "/admin/settings", map[string]string{models.SettingSpecialtiesJSON: raw}))
			testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "update specialties")

			settings, err := st.GetSettings()
			if err != nil {
				t.Fatal(err)
			}
			oracle := &stubCompleter{reply: `{"type":"BPC/LOAS","urgency":"Normal","summary":"idoso sem renda"}`}
			got := triage.NewService(oracle, nil, nil).Classify(context.Background(), settings, "Sou idoso e não tenho renda")
			if got.Type != "BPC/LOAS" {
				t.Errorf("classified as %q, want BPC/LOAS", got.Type)
			}
			if !strings.Contains(oracle.system, "Trabalhista") {
				t.Error("configured specialties missing from classification prompt")
			}
		})
	}
}

func TestConversations(t *testing.T) {
	_, st, h := newTestServer(t)
	conv := models.NewConversation("5571999887766", models.ModeManual, testNow)
	if err := st.SaveConversation(conv); err != nil {
		t.Fatal(err)
	}

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/admin/conversations", nil))
	var convs []models.Conversation
	testutil.MustUnmarshalJSON(t, testutil.AssertJSONResponse(t, rr, "ok"), &convs)
	if len(convs) != 1 || convs[0].Phone != "5571999887766" {
		t.Errorf("conversations = %+v", convs)
	}

	rr = serve(h, httptest.NewRequest(http.MethodDelete, "/admin/conversations/5571999887766", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "delete conversation")
	if got, _ := st.GetConversation("5571999887766"); got != nil {
		t.Errorf("conversation still stored: %+v", got)
	}
}

func TestKnowledge(t *testing.T) {
	_, st, h := newTestServer(t)

	rr := serve(h, testutil.NewJSONRequest(t, http.MethodPost, "/admin/knowledge",
		models.KnowledgeDocument{Title: "BPC/LOAS", Content: "Requisitos do benefício assistencial."}))
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "add document")
	var doc models.KnowledgeDocument
	testutil.MustUnmarshalJSON(t, testutil.AssertJSONResponse(t, rr, "ok"), &doc)
	if doc.ID == 0 || !doc.IsActive {
		t.Fatalf("doc = %+v", doc)
	}

	rr = serve(h, testutil.NewJSONRequest(t, http.MethodPost, "/admin/knowledge", models.KnowledgeDocument{Title: "vazio"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing content")

	path := "/admin/knowledge/" + itoa(doc.ID)
	rr = serve(h, testutil.NewJSONRequest(t, http.MethodPut, path+"/active", `{"is_active":false}`))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "toggle")
	if active, _ := st.ActiveKnowledgeDocuments(); len(active) != 0 {
		t.Errorf("active documents = %+v", active)
	}

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/admin/knowledge", nil))
	var docs []models.KnowledgeDocument
	testutil.MustUnmarshalJSON(t, testutil.AssertJSONResponse(t, rr, "ok"), &docs)
	if len(docs) != 1 {
		t.Errorf("documents = %+v", docs)
	}

	rr = serve(h, httptest.NewRequest(http.MethodDelete, path, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "delete document")
	rr = serve(h, httptest.NewRequest(http.MethodDelete, path, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "delete twice")
	rr = serve(h, httptest.NewRequest(http.MethodDelete, "/admin/knowledge/abc", nil))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "bad id")
}

func TestRun_RejectsUnknownChannel(t *testing.T) {
	_, _, _, _, err := openChannel(context.Background(), Opts{Channel: "telegram"}, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown channel") {
		t.Errorf("err = %v", err)
	}
}

func TestOpenStore_DefaultsToMemory(t *testing.T) {
	st, err := openStore(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*store.InMemoryStore); !ok {
		t.Errorf("store = %T, want *store.InMemoryStore", st)
	}
}
