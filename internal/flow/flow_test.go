package flow

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/board"
	"github.com/gsPatrick/api-camilamoura/internal/config"
	"github.com/gsPatrick/api-camilamoura/internal/models"
	"github.com/gsPatrick/api-camilamoura/internal/store"
)

const testPhone = "5571999887766"

type sentMessage struct {
	to, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return f.err
}

func (f *fakeSender) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.body
	}
	return out
}

type fakeClassifier struct {
	classification models.Classification
	followUps      []models.FollowUp
	evaluations    []models.Evaluation
	chatReply      string
	chatErr        error

	classifyCalls int
	followUpCalls int
	evaluateCalls int
	chatCalls     int
	lastContext   string
	lastRemaining int
}

func (f *fakeClassifier) Classify(ctx context.Context, settings models.Settings, fullContext string) models.Classification {
	f.classifyCalls++
	f.lastContext = fullContext
	return f.classification
}

func (f *fakeClassifier) GenerateFollowUp(ctx context.Context, settings models.Settings, history []models.MessageTurn, remaining int) models.FollowUp {
	f.followUpCalls++
	f.lastRemaining = remaining
	if f.followUpCalls <= len(f.followUps) {
		return f.followUps[f.followUpCalls-1]
	}
	return models.FollowUp{}
}

func (f *fakeClassifier) EvaluateAndFollowUp(ctx context.Context, settings models.Settings, history []models.MessageTurn) models.Evaluation {
	f.evaluateCalls++
	if f.evaluateCalls <= len(f.evaluations) {
		return f.evaluations[f.evaluateCalls-1]
	}
	return models.Evaluation{}
}

func (f *fakeClassifier) Chat(ctx context.Context, settings models.Settings, history []models.MessageTurn) (string, error) {
	f.chatCalls++
	return f.chatReply, f.chatErr
}

type fakeBoard struct {
	searchResults []models.Ticket
	searchErr     error
	lists         []models.BoardList
	labels        []models.BoardLabel
	createErr     error

	searches []string
	created  []models.CardRequest
	comments map[string][]string
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		lists: []models.BoardList{{ID: "L0", Name: "Arquivo"}, {ID: "L1", Name: "Triagem"}},
		labels: []models.BoardLabel{
			{ID: "lab-prev", Name: "Previdenciário", Color: "green"},
			{ID: "lab-urg", Name: "URGENTE", Color: "orange"},
		},
		comments: make(map[string][]string),
	}
}

func (f *fakeBoard) Search(ctx context.Context, query string) ([]models.Ticket, error) {
	f.searches = append(f.searches, query)
	return f.searchResults, f.searchErr
}

func (f *fakeBoard) Lists(ctx context.Context) ([]models.BoardList, error) { return f.lists, nil }

func (f *fakeBoard) Labels(ctx context.Context) ([]models.BoardLabel, error) { return f.labels, nil }

func (f *fakeBoard) CreateCard(ctx context.Context, req models.CardRequest) (*models.Ticket, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &models.Ticket{ID: "card-1", ListID: req.ListID, Name: req.Title, Desc: req.Description}, nil
}

func (f *fakeBoard) Comment(ctx context.Context, cardID, text string) error {
	f.comments[cardID] = append(f.comments[cardID], text)
	return nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(ctx context.Context, url, contentType string) (string, error) {
	return f.text, f.err
}

func (f fakeTranscriber) TranscribeReader(ctx context.Context, r io.Reader, contentType string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return f.text, f.err
}

type harness struct {
	store      *store.InMemoryStore
	sender     *fakeSender
	classifier *fakeClassifier
	board      *fakeBoard
	orch       *Orchestrator
	profile    *config.Profile
}

func newHarness(t *testing.T, cfg models.FlowConfig, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:   store.NewInMemoryStore(),
		sender:  &fakeSender{},
		board:   newFakeBoard(),
		profile: config.Default(),
		classifier: &fakeClassifier{classification: models.Classification{
			Type: "Previdenciário", Urgency: models.UrgencyNormal, Summary: "Pedido de aposentadoria negado.",
		}},
	}
	if err := h.store.SaveFlowConfig(&cfg); err != nil {
		t.Fatalf("SaveFlowConfig failed: %v", err)
	}
	opts = append([]Option{WithProfile(h.profile)}, opts...)
	h.orch = NewOrchestrator(h.store, h.sender, h.classifier, h.board, opts...)
	return h
}

func (h *harness) say(t *testing.T, text string) {
	t.Helper()
	if err := h.orch.HandleInbound(context.Background(), models.InboundEvent{Phone: testPhone, Text: text}); err != nil {
		t.Fatalf("HandleInbound(%q) failed: %v", text, err)
	}
}

func (h *harness) conversation(t *testing.T) *models.Conversation {
	t.Helper()
	c, err := h.store.GetConversation(testPhone)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	return c
}

func flowConfig(mode models.Mode, post models.PostAction) models.FlowConfig {
	cfg := models.DefaultFlowConfig()
	cfg.Mode = mode
	cfg.PostAction = post
	return cfg
}

func TestHandleInbound_ExistingTicketOnlyComments(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionWaitContact))
	h.board.searchResults = []models.Ticket{{ID: "T9", Name: "MARIA: " + testPhone}}

	h.say(t, "Oi, alguma novidade?")

	if got := h.board.comments["T9"]; len(got) != 1 || !strings.Contains(got[0], "Oi, alguma novidade?") {
		t.Errorf("comments = %v, want one comment with the message", got)
	}
	if c := h.conversation(t); c != nil {
		t.Errorf("conversation created: %+v", c)
	}
	if n := len(h.sender.bodies()); n != 0 {
		t.Errorf("sent %d messages, want 0", n)
	}
}

func TestHandleInbound_IgnoresOwnAndEmptyMessages(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionWaitContact))
	ctx := context.Background()
	if err := h.orch.HandleInbound(ctx, models.InboundEvent{Phone: testPhone, Text: "eco", FromMe: true}); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.HandleInbound(ctx, models.InboundEvent{Phone: testPhone, Text: "   "}); err != nil {
		t.Fatal(err)
	}
	if len(h.board.searches) != 0 || len(h.sender.bodies()) != 0 {
		t.Errorf("expected no activity, searches=%v sent=%v", h.board.searches, h.sender.bodies())
	}
}

func TestHandleInbound_SearchFailureCountsAsNoMatch(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionWaitContact))
	h.board.searchErr = errors.New("board down")

	h.say(t, "Olá")

	if c := h.conversation(t); c == nil || c.Step != models.StepCollecting {
		t.Fatalf("expected collecting conversation, got %+v", c)
	}
}

func TestManualFlow_SendsWelcomeAndEachQuestion(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeManual, models.PostActionWaitContact))
	cfg, _ := h.store.GetActiveFlowConfig()
	for _, q := range []models.FlowQuestion{
		{Question: "Qual seu nome?", VariableName: "nome"},
		{Question: "Qual sua cidade?", VariableName: "cidade"},
		{Question: "O que aconteceu?", VariableName: "relato"},
	} {
		q.FlowConfigID = cfg.ID
		if err := h.store.AddQuestion(&q); err != nil {
			t.Fatal(err)
		}
	}

	h.say(t, "Oi")
	h.say(t, "maria  da silva!!")
	h.say(t, "Salvador")

	sent := h.sender.bodies()
	if len(sent) != 4 {
		t.Fatalf("sent %d messages before the last answer, want 4: %q", len(sent), sent)
	}
	if sent[1] != "Qual seu nome?" || sent[3] != "O que aconteceu?" {
		t.Errorf("unexpected questions: %q", sent)
	}
	if c := h.conversation(t); c.ClientName != "Maria Da Silva" {
		t.Errorf("ClientName = %q", c.ClientName)
	}

	h.say(t, "Tive o benefício negado")

	if h.classifier.classifyCalls != 1 {
		t.Fatalf("classify calls = %d, want 1", h.classifier.classifyCalls)
	}
	if !strings.Contains(h.classifier.lastContext, "cidade: Salvador") ||
		!strings.HasSuffix(h.classifier.lastContext, "Última mensagem: Tive o benefício negado") {
		t.Errorf("unexpected context %q", h.classifier.lastContext)
	}
	if len(h.board.created) != 1 {
		t.Fatalf("created %d tickets, want 1", len(h.board.created))
	}
	card := h.board.created[0]
	if card.Title != "MARIA  DA SILVA!!: "+testPhone {
		t.Errorf("title = %q", card.Title)
	}
	if card.ListID != "L1" {
		t.Errorf("list = %q, want intake list L1", card.ListID)
	}
	if c := h.conversation(t); c != nil {
		t.Errorf("conversation should be deleted after WAIT_CONTACT, got %+v", c)
	}
}

func TestManualFlow_FallbackAsksNameThenNarrative(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeManual, models.PostActionWaitContact))

	h.say(t, "Oi")
	h.say(t, "123")
	h.say(t, "joão pereira")

	sent := h.sender.bodies()
	if len(sent) != 4 {
		t.Fatalf("sent %q", sent)
	}
	if sent[1] != h.profile.Messages.AskName || sent[2] != h.profile.Messages.AskName {
		t.Errorf("expected name asked twice, got %q", sent)
	}
	if !strings.Contains(sent[3], "João") || strings.Contains(sent[3], "{nome}") {
		t.Errorf("narrative prompt not personalized: %q", sent[3])
	}

	h.say(t, "Fui demitido sem receber nada")

	if len(h.board.created) != 1 {
		t.Fatalf("created %d tickets", len(h.board.created))
	}
	if !strings.Contains(h.board.created[0].Description, "Fui demitido sem receber nada") {
		t.Errorf("description missing narrative: %q", h.board.created[0].Description)
	}
}

func TestAIFixedFlow_StopsWhenSufficient(t *testing.T) {
	cfg := flowConfig(models.ModeAIFixed, models.PostActionWaitContact)
	cfg.AIQuestionCount = 3
	h := newHarness(t, cfg)
	h.classifier.followUps = []models.FollowUp{{Question: "Quando o benefício foi negado?"}, {}}

	h.say(t, "Oi")
	h.say(t, "Meu nome é Ana Souza e meu benefício foi negado")
	if h.classifier.lastRemaining != 3 {
		t.Errorf("remaining = %d, want 3", h.classifier.lastRemaining)
	}
	if h.classifier.classifyCalls != 0 {
		t.Fatal("finalized too early")
	}
	h.say(t, "Em março")

	if h.classifier.followUpCalls != 2 || h.classifier.classifyCalls != 1 {
		t.Errorf("followUps=%d classify=%d, want 2 and 1", h.classifier.followUpCalls, h.classifier.classifyCalls)
	}
	if len(h.board.created) != 1 || !strings.HasPrefix(h.board.created[0].Title, "ANA SOUZA") {
		t.Errorf("unexpected tickets %+v", h.board.created)
	}
}

func TestAIFixedFlow_BudgetExhausted(t *testing.T) {
	cfg := flowConfig(models.ModeAIFixed, models.PostActionWaitContact)
	cfg.AIQuestionCount = 1
	h := newHarness(t, cfg)
	h.classifier.followUps = []models.FollowUp{{Question: "Pergunta 1?"}, {Question: "Pergunta 2?"}}

	h.say(t, "Oi")
	h.say(t, "Relato")
	h.say(t, "Resposta")

	if h.classifier.followUpCalls != 1 || h.classifier.classifyCalls != 1 {
		t.Errorf("followUps=%d classify=%d, want 1 and 1", h.classifier.followUpCalls, h.classifier.classifyCalls)
	}
}

func TestAIFixedFlow_FollowUpCloseSkipsTicket(t *testing.T) {
	cfg := flowConfig(models.ModeAIFixed, models.PostActionWaitContact)
	cfg.AIQuestionCount = 3
	h := newHarness(t, cfg)
	h.classifier.followUps = []models.FollowUp{{ShouldClose: true, CloseReason: models.CloseReasonHasLawyer}}

	h.say(t, "Oi")
	h.say(t, "Meu advogado entrou com o processo e quero saber do andamento")

	if h.classifier.followUpCalls != 1 {
		t.Errorf("followUps = %d, want 1", h.classifier.followUpCalls)
	}
	if len(h.board.created) != 0 {
		t.Errorf("created %d tickets, want 0", len(h.board.created))
	}
	sent := h.sender.bodies()
	if last := sent[len(sent)-1]; last != h.profile.Messages.HasLawyer {
		t.Errorf("last message = %q, want has-lawyer text", last)
	}
	if c := h.conversation(t); c != nil {
		t.Errorf("conversation not deleted: %+v", c)
	}
}

func TestClassifierClose_ManualAndAIFixed(t *testing.T) {
	tests := []struct {
		name string
		cfg  func() models.FlowConfig
		msgs []string
	}{
		{
			name: "manual",
			cfg:  func() models.FlowConfig { return flowConfig(models.ModeManual, models.PostActionWaitContact) },
			msgs: []string{"Oi", "João Pereira", "Quero me divorciar"},
		},
		{
			name: "ai fixed",
			cfg: func() models.FlowConfig {
				cfg := flowConfig(models.ModeAIFixed, models.PostActionAIResponse)
				cfg.AIQuestionCount = 1
				return cfg
			},
			msgs: []string{"Oi", "Quero me divorciar", "Casados há dez anos"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.cfg())
			h.classifier.followUps = []models.FollowUp{{Question: "Há filhos menores?"}}
			h.classifier.classification = models.Classification{
				Type: models.CategoryOther, Urgency: models.UrgencyNormal, ShouldClose: true, CloseReason: models.CloseReasonOutsideArea,
			}

			for _, m := range tt.msgs {
				h.say(t, m)
			}

			if h.classifier.classifyCalls != 1 {
				t.Fatalf("classify calls = %d, want 1", h.classifier.classifyCalls)
			}
			if len(h.board.created) != 0 {
				t.Errorf("created %d tickets, want 0", len(h.board.created))
			}
			sent := h.sender.bodies()
			if last := sent[len(sent)-1]; last != h.profile.Messages.OutsideArea {
				t.Errorf("last message = %q, want outside-area text", last)
			}
			if c := h.conversation(t); c != nil {
				t.Errorf("conversation not deleted: %+v", c)
			}
		})
	}
}

func TestAIDynamicFlow_SingleEvaluation(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionWaitContact))
	h.classifier.evaluations = []models.Evaluation{{NeedsMoreInfo: false}}

	h.say(t, "Oi")
	h.say(t, "Meu auxílio-doença foi cortado")

	if h.classifier.evaluateCalls != 1 || h.classifier.classifyCalls != 1 {
		t.Errorf("evaluate=%d classify=%d, want 1 and 1", h.classifier.evaluateCalls, h.classifier.classifyCalls)
	}
}

func TestAIDynamicFlow_OracleCloseSkipsTicket(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionWaitContact))
	h.classifier.evaluations = []models.Evaluation{{ShouldClose: true, CloseReason: models.CloseReasonHasLawyer}}

	h.say(t, "Oi")
	h.say(t, "Já tenho advogado, só queria uma segunda opinião")

	if len(h.board.created) != 0 {
		t.Errorf("created %d tickets, want 0", len(h.board.created))
	}
	sent := h.sender.bodies()
	if last := sent[len(sent)-1]; last != h.profile.Messages.HasLawyer {
		t.Errorf("last message = %q, want has-lawyer text", last)
	}
	if c := h.conversation(t); c != nil {
		t.Errorf("conversation not deleted: %+v", c)
	}
}

func TestFinalize_ClassifierCloseUsesSettingOverride(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionWaitContact))
	h.classifier.classification = models.Classification{ShouldClose: true, CloseReason: models.CloseReasonHasLawyer}
	if err := h.store.SetSetting(models.SettingHasLawyerMessage, "Procure seu advogado."); err != nil {
		t.Fatal(err)
	}

	h.say(t, "Oi")
	h.say(t, "Meu advogado sumiu")

	sent := h.sender.bodies()
	if sent[len(sent)-1] != "Procure seu advogado." {
		t.Errorf("sent %q", sent)
	}
	if len(h.board.created) != 0 {
		t.Error("ticket created for closed case")
	}
}

func TestFinalize_UrgentCaseGetsInPersonNoticeAndLabels(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionWaitContact))
	h.classifier.classification = models.Classification{
		Type: "Previdenciário", Urgency: models.UrgencyHigh, Summary: "Benefício cortado",
	}

	h.say(t, "Oi")
	h.say(t, "Cortaram meu benefício ontem")

	sent := h.sender.bodies()
	found := false
	for _, s := range sent {
		if s == h.profile.Messages.InPerson {
			found = true
		}
	}
	if !found {
		t.Errorf("in-person notice not sent: %q", sent)
	}
	labels := h.board.created[0].LabelIDs
	if len(labels) != 2 || labels[0] != "lab-prev" || labels[1] != "lab-urg" {
		t.Errorf("labels = %v, want [lab-prev lab-urg]", labels)
	}
}

func TestFinalize_TicketFailureKeepsConversation(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionWaitContact))
	h.board.createErr = errors.New("trello 500")

	h.say(t, "Oi")
	err := h.orch.HandleInbound(context.Background(), models.InboundEvent{Phone: testPhone, Text: "Meu relato"})
	if err == nil {
		t.Fatal("expected error from ticket failure")
	}
	c := h.conversation(t)
	if c == nil || c.Step != models.StepProcessing {
		t.Fatalf("conversation = %+v, want PROCESSING", c)
	}

	h.board.createErr = nil
	h.say(t, "Alguma novidade?")
	if len(h.board.created) != 1 {
		t.Errorf("retry created %d tickets, want 1", len(h.board.created))
	}
}

func TestAIResponse_ChatAndMirror(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionAIResponse))
	h.classifier.chatReply = "A equipe vai analisar seus documentos."

	h.say(t, "Oi")
	h.say(t, "Sou Carlos e fui demitido")

	c := h.conversation(t)
	if c == nil || c.Step != models.StepAIChat {
		t.Fatalf("conversation = %+v, want AI_CHAT", c)
	}

	h.say(t, "Preciso levar documentos?")

	sent := h.sender.bodies()
	if sent[len(sent)-1] != h.classifier.chatReply {
		t.Errorf("last sent = %q", sent[len(sent)-1])
	}
	mirror := h.board.comments["card-1"]
	if len(mirror) != 1 || !strings.Contains(mirror[0], "Preciso levar documentos?") || !strings.Contains(mirror[0], h.classifier.chatReply) {
		t.Errorf("mirror comments = %q", mirror)
	}
	if len(h.board.searches) != 2 {
		t.Errorf("searches = %v, want one per interview message and none while chatting", h.board.searches)
	}
}

func TestAIResponse_ChatTakesPrecedenceOverTicketComment(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionAIResponse))
	h.classifier.chatReply = "Sim, traga o laudo."

	h.say(t, "Oi")
	h.say(t, "Sou Carlos e fui demitido")
	h.board.searchResults = []models.Ticket{{ID: "card-1", Name: "CARLOS: " + testPhone}}

	h.say(t, "Preciso levar o laudo?")

	if h.classifier.chatCalls != 1 {
		t.Fatalf("chat calls = %d, want 1", h.classifier.chatCalls)
	}
	for _, c := range h.board.comments["card-1"] {
		if c == strings.ReplaceAll(h.profile.Messages.NewClientMessage, "{mensagem}", "Preciso levar o laudo?") {
			t.Errorf("chat message was filed as a new-client comment: %q", c)
		}
	}
	if c := h.conversation(t); c == nil || c.Step != models.StepAIChat {
		t.Errorf("conversation = %+v, want AI_CHAT", c)
	}
}

func TestChat_FailureLeavesHistory(t *testing.T) {
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionAIResponse))
	h.say(t, "Oi")
	h.say(t, "Relato")
	before := len(h.conversation(t).MessageHistory)

	h.classifier.chatErr = errors.New("oracle down")
	h.say(t, "Olá?")

	if after := len(h.conversation(t).MessageHistory); after != before {
		t.Errorf("history grew from %d to %d", before, after)
	}
	sent := h.sender.bodies()
	if sent[len(sent)-1] != h.profile.Messages.ChatUnavailable {
		t.Errorf("last sent = %q", sent[len(sent)-1])
	}
}

func TestHandleInbound_AudioTranscription(t *testing.T) {
	cfg := flowConfig(models.ModeAIDynamic, models.PostActionWaitContact)

	h := newHarness(t, cfg, WithTranscriber(fakeTranscriber{err: errors.New("bad audio")}))
	if err := h.orch.HandleInbound(context.Background(), models.InboundEvent{Phone: testPhone, AudioURL: "http://a/1.ogg"}); err != nil {
		t.Fatal(err)
	}
	if sent := h.sender.bodies(); len(sent) != 1 || sent[0] != h.profile.Messages.AudioFailed {
		t.Errorf("sent %q, want audio failure notice", sent)
	}

	h = newHarness(t, cfg, WithTranscriber(fakeTranscriber{text: "olá, preciso de ajuda"}))
	if err := h.orch.HandleInbound(context.Background(), models.InboundEvent{Phone: testPhone, AudioURL: "http://a/1.ogg"}); err != nil {
		t.Fatal(err)
	}
	if c := h.conversation(t); c == nil {
		t.Error("transcribed audio did not start a conversation")
	}

	h = newHarness(t, cfg, WithTranscriber(fakeTranscriber{text: "áudio baixado"}))
	if err := h.orch.HandleInbound(context.Background(), models.InboundEvent{Phone: testPhone, AudioData: []byte("OggS")}); err != nil {
		t.Fatal(err)
	}
	if c := h.conversation(t); c == nil {
		t.Error("in-process audio did not start a conversation")
	}
}

func TestRecentTicketGraceWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, flowConfig(models.ModeAIDynamic, models.PostActionWaitContact), WithClock(func() time.Time { return now }))

	h.say(t, "Oi")
	h.say(t, "Relato completo")
	if len(h.board.created) != 1 {
		t.Fatal("ticket not created")
	}

	h.say(t, "Esqueci de dizer uma coisa")
	if got := h.board.comments["card-1"]; len(got) != 1 {
		t.Errorf("comments within grace = %v", got)
	}

	now = now.Add(h.profile.RecentTicketGrace + time.Second)
	h.say(t, "Oi de novo")
	if c := h.conversation(t); c == nil {
		t.Error("expected a new conversation after the grace window")
	}
}

func TestRender(t *testing.T) {
	data := models.Responses{{Variable: "nome", Value: "Maria"}, {Variable: "telefone", Value: testPhone}}
	if got := Render("{nome} - {telefone}", data); got != "Maria - "+testPhone {
		t.Errorf("Render = %q", got)
	}
	if got := Render("{NOME}|{desconhecido}|{telefone}", data); got != "Maria||"+testPhone {
		t.Errorf("Render = %q", got)
	}
}

func TestTemplateData_ResponsesOverlay(t *testing.T) {
	responses := models.Responses{{Variable: "relato", Value: "texto"}, {Variable: "area", Value: "Trabalhista"}}
	data := TemplateData(testPhone, "Ana", models.Classification{Type: "Consumidor"}, responses)

	if got := Render("{nome}|{area}|{urgencia}|{relato}", data); got != "Ana|Trabalhista|Normal|texto" {
		t.Errorf("rendered %q", got)
	}
}

func TestRequiresInPerson(t *testing.T) {
	o := NewOrchestrator(store.NewInMemoryStore(), &fakeSender{}, &fakeClassifier{}, newFakeBoard())
	tests := []struct {
		name string
		cls  models.Classification
		want bool
	}{
		{"incapacity category", models.Classification{Type: "incapacidade", Urgency: models.UrgencyNormal}, true},
		{"keyword in summary", models.Classification{Type: "Previdenciário", Summary: "Sofreu ACIDENTE de trabalho"}, true},
		{"high urgency", models.Classification{Type: "Consumidor", Urgency: models.UrgencyHigh}, true},
		{"keyword without accent", models.Classification{Type: "Previdenciário", Summary: "Aguardando pericia do INSS"}, true},
		{"plain case", models.Classification{Type: "Consumidor", Urgency: models.UrgencyNormal, Summary: "no keywords"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.requiresInPerson(tt.cls); got != tt.want {
				t.Errorf("requiresInPerson = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTargetList(t *testing.T) {
	b := newFakeBoard()
	o := NewOrchestrator(store.NewInMemoryStore(), &fakeSender{}, &fakeClassifier{}, b)
	ctx := context.Background()

	if id, _ := o.targetList(ctx, models.Settings{models.SettingTargetListID: "CFG"}); id != "CFG" {
		t.Errorf("configured list = %q", id)
	}
	if id, _ := o.targetList(ctx, nil); id != "L1" {
		t.Errorf("intake list = %q, want L1", id)
	}
	b.lists = []models.BoardList{{ID: "A", Name: "Feito"}}
	if id, _ := o.targetList(ctx, nil); id != "A" {
		t.Errorf("fallback list = %q, want A", id)
	}
	b.lists = nil
	if _, err := o.targetList(ctx, nil); !errors.Is(err, board.ErrNoLists) {
		t.Errorf("err = %v, want ErrNoLists", err)
	}
}

func TestNames(t *testing.T) {
	if got := cleanName("  josé   da silva 2!"); got != "José Da Silva" {
		t.Errorf("cleanName = %q", got)
	}
	tests := map[string]string{
		"Meu nome é Maria Souza e fui demitida": "Maria Souza",
		"me chamo carlos, tenho 50 anos":         "Carlos",
		"Sou Pedro":                              "Pedro",
		"sou aposentado e preciso de ajuda":      "",
		"Fui demitido ontem":                     "",
	}
	for in, want := range tests {
		if got := extractIntroName(in); got != want {
			t.Errorf("extractIntroName(%q) = %q, want %q", in, got, want)
		}
	}
}
