// Package flow drives the intake conversation: it routes every inbound
// message to a chat reply, an existing-ticket comment or the next interview
// step, and finalizes completed interviews into board tickets.
package flow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/config"
	"github.com/gsPatrick/api-camilamoura/internal/models"
)

var errAudioMissing = errors.New("voice note payload missing")

// Sender delivers a text message to a phone number.
type Sender interface {
	SendMessage(ctx context.Context, to, body string) error
}

// Classifier is the oracle-backed triage surface used by the conversation flow.
type Classifier interface {
	Classify(ctx context.Context, settings models.Settings, fullContext string) models.Classification
	GenerateFollowUp(ctx context.Context, settings models.Settings, history []models.MessageTurn, remaining int) models.FollowUp
	EvaluateAndFollowUp(ctx context.Context, settings models.Settings, history []models.MessageTurn) models.Evaluation
	Chat(ctx context.Context, settings models.Settings, history []models.MessageTurn) (string, error)
}

// Board is the ticket board surface used for lookup and ticket creation.
type Board interface {
	Search(ctx context.Context, query string) ([]models.Ticket, error)
	Lists(ctx context.Context) ([]models.BoardList, error)
	Labels(ctx context.Context) ([]models.BoardLabel, error)
	CreateCard(ctx context.Context, req models.CardRequest) (*models.Ticket, error)
	Comment(ctx context.Context, cardID, text string) error
}

// Transcriber converts a voice note into text, either by URL or from bytes already in hand.
type Transcriber interface {
	Transcribe(ctx context.Context, url, contentType string) (string, error)
	TranscribeReader(ctx context.Context, r io.Reader, contentType string) (string, error)
}

// Store is the persistence surface the flow needs.
type Store interface {
	GetConversation(phone string) (*models.Conversation, error)
	SaveConversation(c *models.Conversation) error
	DeleteConversation(phone string) error
	GetActiveFlowConfig() (*models.FlowConfig, error)
	ListQuestions(flowConfigID int64) ([]models.FlowQuestion, error)
	GetSettings() (models.Settings, error)
}

// Opts holds optional collaborators for the Orchestrator.
type Opts struct {
	Transcriber Transcriber
	Profile     *config.Profile
	Clock       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Opts)

// WithTranscriber enables voice note handling.
func WithTranscriber(t Transcriber) Option {
	return func(o *Opts) { o.Transcriber = t }
}

// WithProfile sets the office profile used for texts and routing rules.
func WithProfile(p *config.Profile) Option {
	return func(o *Opts) { o.Profile = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Clock = now }
}

// Orchestrator handles inbound client messages one at a time per phone.
// Callers must serialize HandleInbound calls for the same phone.
type Orchestrator struct {
	store       Store
	sender      Sender
	classifier  Classifier
	board       Board
	transcriber Transcriber
	profile     *config.Profile
	recent      *recentTickets
	now         func() time.Time
}

// NewOrchestrator wires the conversation flow.
func NewOrchestrator(st Store, sender Sender, classifier Classifier, b Board, opts ...Option) *Orchestrator {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Profile == nil {
		cfg.Profile = config.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Orchestrator{
		store:       st,
		sender:      sender,
		classifier:  classifier,
		board:       b,
		transcriber: cfg.Transcriber,
		profile:     cfg.Profile,
		recent:      newRecentTickets(cfg.Profile.RecentTicketGrace, cfg.Clock),
		now:         cfg.Clock,
	}
}

// Turn is the configuration snapshot read once per inbound message.
type Turn struct {
	Config    models.FlowConfig
	Questions []models.FlowQuestion
	Settings  models.Settings
	Message   string
}

// HandleInbound processes one inbound event end to end.
func (o *Orchestrator) HandleInbound(ctx context.Context, ev models.InboundEvent) error {
	if ev.FromMe || ev.Phone == "" {
		slog.Debug("Orchestrator.HandleInbound: ignoring event", "fromMe", ev.FromMe, "id", ev.ID)
		return nil
	}

	text := strings.TrimSpace(ev.Text)
	if ev.HasAudio() {
		transcript, ok := o.transcribe(ctx, ev)
		if !ok {
			return nil
		}
		text = transcript
	}
	if text == "" {
		slog.Debug("Orchestrator.HandleInbound: empty message dropped", "phone", ev.Phone)
		return nil
	}

	conv, err := o.store.GetConversation(ev.Phone)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	// Chat mode wins over the board lookup: the client already has a ticket.
	if conv != nil && conv.Step == models.StepAIChat {
		settings, err := o.store.GetSettings()
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		return o.chat(ctx, conv, settings, text)
	}

	if ticket := o.findTicket(ctx, ev.Phone); ticket != nil {
		slog.Info("Orchestrator.HandleInbound: existing ticket, commenting", "phone", ev.Phone, "ticket", ticket.ID)
		comment := strings.ReplaceAll(o.profile.Messages.NewClientMessage, "{mensagem}", text)
		if err := o.board.Comment(ctx, ticket.ID, comment); err != nil {
			slog.Error("Orchestrator.HandleInbound: comment failed", "ticket", ticket.ID, "error", err)
		}
		return nil
	}

	turn, err := o.loadTurn(text)
	if err != nil {
		return err
	}

	if conv == nil {
		return o.start(ctx, ev.Phone, turn)
	}
	return o.advance(ctx, conv, turn)
}

func (o *Orchestrator) transcribe(ctx context.Context, ev models.InboundEvent) (string, bool) {
	if o.transcriber == nil {
		slog.Warn("Orchestrator.transcribe: no transcriber configured", "phone", ev.Phone)
		o.send(ctx, ev.Phone, o.profile.Messages.AudioFailed)
		return "", false
	}
	var text string
	var err error
	switch {
	case len(ev.AudioData) > 0:
		text, err = o.transcriber.TranscribeReader(ctx, bytes.NewReader(ev.AudioData), ev.AudioContentType)
	case ev.AudioURL != "":
		text, err = o.transcriber.Transcribe(ctx, ev.AudioURL, ev.AudioContentType)
	default:
		err = errAudioMissing
	}
	if err != nil || strings.TrimSpace(text) == "" {
		slog.Warn("Orchestrator.transcribe: transcription failed", "phone", ev.Phone, "error", err)
		o.send(ctx, ev.Phone, o.profile.Messages.AudioFailed)
		return "", false
	}
	slog.Debug("Orchestrator.transcribe: audio transcribed", "phone", ev.Phone, "chars", len(text))
	return strings.TrimSpace(text), true
}

func (o *Orchestrator) loadTurn(text string) (*Turn, error) {
	cfg, err := o.store.GetActiveFlowConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load flow config: %w", err)
	}
	settings, err := o.store.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	// Questions are loaded regardless of the active mode: an older
	// conversation may still be running MANUAL after the mode changed.
	questions, err := o.store.ListQuestions(cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	return &Turn{Config: *cfg, Questions: questions, Settings: settings, Message: text}, nil
}

// start opens a new conversation. The first message only triggers the
// greeting and is not recorded as an answer.
func (o *Orchestrator) start(ctx context.Context, phone string, turn *Turn) error {
	now := o.now()
	conv := models.NewConversation(phone, turn.Config.Mode, now)
	question := strategyFor(conv.Mode).Opening(o, conv, turn)
	conv.Step = models.StepCollecting
	conv.AppendAssistant(question, now)
	if err := o.store.SaveConversation(conv); err != nil {
		return fmt.Errorf("failed to save new conversation: %w", err)
	}
	slog.Info("Orchestrator.start: conversation opened", "phone", phone, "mode", conv.Mode)

	o.send(ctx, phone, turn.Settings.Get(models.SettingEthicsNotice, o.profile.Messages.Welcome))
	o.send(ctx, phone, question)
	return nil
}

func (o *Orchestrator) advance(ctx context.Context, conv *models.Conversation, turn *Turn) error {
	if conv.Mode == "" {
		conv.Mode = turn.Config.Mode
	}
	conv.AppendUser(turn.Message, o.now())

	// A conversation left in PROCESSING failed to produce a ticket; retry it.
	if conv.Step == models.StepProcessing {
		return o.finalize(ctx, conv, turn, outcome{done: true})
	}

	out := strategyFor(conv.Mode).Advance(ctx, o, conv, turn)
	if out.done {
		return o.finalize(ctx, conv, turn, out)
	}

	conv.AppendAssistant(out.question, o.now())
	if err := o.store.SaveConversation(conv); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	o.send(ctx, conv.Phone, out.question)
	return nil
}

// send logs and swallows delivery failures; state is already persisted.
func (o *Orchestrator) send(ctx context.Context, to, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	if err := o.sender.SendMessage(ctx, to, body); err != nil {
		slog.Error("Orchestrator.send: delivery failed", "to", to, "error", err)
	}
}

// personalize replaces {nome} with the client's first name.
func personalize(msg string, conv *models.Conversation) string {
	return Render(msg, models.Responses{{Variable: models.VarName, Value: conv.FirstName()}})
}
