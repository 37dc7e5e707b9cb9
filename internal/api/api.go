// Package api provides the HTTP server and the wiring for the intake assistant.
//
// It exposes the inbound webhooks for the active WhatsApp channel, the health
// check and the operator admin endpoints. Run assembles the store, oracle,
// board, messaging channel, orchestrator and dispatcher into one process.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/board"
	"github.com/gsPatrick/api-camilamoura/internal/config"
	"github.com/gsPatrick/api-camilamoura/internal/flow"
	"github.com/gsPatrick/api-camilamoura/internal/genai"
	"github.com/gsPatrick/api-camilamoura/internal/messaging"
	"github.com/gsPatrick/api-camilamoura/internal/models"
	"github.com/gsPatrick/api-camilamoura/internal/scheduler"
	"github.com/gsPatrick/api-camilamoura/internal/store"
	"github.com/gsPatrick/api-camilamoura/internal/triage"
	"github.com/gsPatrick/api-camilamoura/internal/twiliowhatsapp"
	"github.com/gsPatrick/api-camilamoura/internal/whatsapp"
)

// Default API server configuration values
const (
	DefaultServerAddress = ":8080"
	DefaultChannel       = messaging.ChannelZAPI
	shutdownTimeout      = 15 * time.Second
	readHeaderTimeout    = 10 * time.Second
)

// BoardReader is the board surface the admin endpoints need.
type BoardReader interface {
	Lists(ctx context.Context) ([]models.BoardList, error)
	Labels(ctx context.Context) ([]models.BoardLabel, error)
}

// Opts holds configuration options for the API server and its wiring.
type Opts struct {
	Addr             string
	Channel          string
	Profile          *config.Profile
	ZAPIOptions      []messaging.ZAPIOption
	TwilioOptions    []twiliowhatsapp.Option
	TwilioWebhookURL string
	Webhooks         map[string]http.HandlerFunc
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithChannel selects the WhatsApp transport: zapi, twilio or whatsmeow.
func WithChannel(channel string) Option {
	return func(o *Opts) {
		o.Channel = strings.ToLower(strings.TrimSpace(channel))
	}
}

// WithProfile sets the office profile.
func WithProfile(p *config.Profile) Option {
	return func(o *Opts) {
		o.Profile = p
	}
}

// WithZAPIOptions configures the Z-API channel.
func WithZAPIOptions(opts ...messaging.ZAPIOption) Option {
	return func(o *Opts) {
		o.ZAPIOptions = append(o.ZAPIOptions, opts...)
	}
}

// WithTwilioOptions configures the Twilio channel.
func WithTwilioOptions(opts ...twiliowhatsapp.Option) Option {
	return func(o *Opts) {
		o.TwilioOptions = append(o.TwilioOptions, opts...)
	}
}

// WithTwilioWebhookURL enables X-Twilio-Signature checks against the public webhook URL.
func WithTwilioWebhookURL(u string) Option {
	return func(o *Opts) {
		o.TwilioWebhookURL = u
	}
}

// WithWebhook mounts an inbound webhook handler at POST path.
func WithWebhook(path string, h http.HandlerFunc) Option {
	return func(o *Opts) {
		if o.Webhooks == nil {
			o.Webhooks = make(map[string]http.HandlerFunc)
		}
		o.Webhooks[path] = h
	}
}

// Server serves webhooks and the admin API.
type Server struct {
	st       store.Store
	board    BoardReader
	profile  *config.Profile
	addr     string
	webhooks map[string]http.HandlerFunc
}

// NewServer creates a Server. board may be nil, in which case /admin/board reports 503.
func NewServer(st store.Store, b BoardReader, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultServerAddress}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Profile == nil {
		cfg.Profile = config.Default()
	}
	return &Server{
		st:       st,
		board:    b,
		profile:  cfg.Profile,
		addr:     cfg.Addr,
		webhooks: cfg.Webhooks,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for path, h := range s.webhooks {
		mux.HandleFunc("POST "+path, h)
		slog.Debug("Server.Handler: webhook mounted", "path", path)
	}
	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("GET /admin/flow-config", s.getFlowConfigHandler)
	mux.HandleFunc("PUT /admin/flow-config", s.updateFlowConfigHandler)
	mux.HandleFunc("POST /admin/flow-config/questions", s.addQuestionHandler)
	mux.HandleFunc("PUT /admin/flow-config/questions-order", s.reorderQuestionsHandler)
	mux.HandleFunc("PUT /admin/flow-config/questions/{id}", s.updateQuestionHandler)
	mux.HandleFunc("DELETE /admin/flow-config/questions/{id}", s.deleteQuestionHandler)
	mux.HandleFunc("POST /admin/flow-config/preview", s.previewHandler)

	mux.HandleFunc("GET /admin/board", s.boardHandler)
	mux.HandleFunc("GET /admin/settings", s.getSettingsHandler)
	mux.HandleFunc("PUT /admin/settings", s.updateSettingsHandler)
	mux.HandleFunc("GET /admin/conversations", s.listConversationsHandler)
	mux.HandleFunc("DELETE /admin/conversations/{phone}", s.deleteConversationHandler)

	mux.HandleFunc("GET /admin/knowledge", s.listKnowledgeHandler)
	mux.HandleFunc("POST /admin/knowledge", s.addKnowledgeHandler)
	mux.HandleFunc("PUT /admin/knowledge/{id}/active", s.toggleKnowledgeHandler)
	mux.HandleFunc("DELETE /admin/knowledge/{id}", s.deleteKnowledgeHandler)
	return mux
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Serve: listening", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		slog.Info("Server.Serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	}
}

// Run wires every module and serves until ctx is cancelled.
func Run(ctx context.Context, waOpts []whatsapp.Option, storeOpts []store.Option, genaiOpts []genai.Option, boardOpts []board.Option, apiOpts []Option) error {
	cfg := Opts{Channel: DefaultChannel}
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Profile == nil {
		cfg.Profile = config.Default()
	}

	st, err := openStore(storeOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("api.Run: failed to close store", "error", err)
		}
	}()

	gaClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	boardClient, err := board.NewClient(boardOpts...)
	if err != nil {
		return fmt.Errorf("failed to create board client: %w", err)
	}

	msgService, webhookPath, webhook, cleanup, err := openChannel(ctx, cfg, waOpts)
	if err != nil {
		return err
	}
	defer cleanup()
	if webhook != nil {
		apiOpts = append(apiOpts, WithWebhook(webhookPath, webhook))
	}
	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}

	classifier := triage.NewService(gaClient, st, cfg.Profile)
	orchestrator := flow.NewOrchestrator(st, msgService, classifier, boardClient,
		flow.WithTranscriber(gaClient),
		flow.WithProfile(cfg.Profile))

	dispatcher := messaging.NewDispatcher(orchestrator.HandleInbound, st)
	dispatcher.Start(ctx, msgService.Events())

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob("purge-inbound", scheduler.DefaultPurgeSchedule,
		scheduler.PurgeInboundJob(st, scheduler.DefaultInboundRetention, time.Now)); err != nil {
		return err
	}

	server := NewServer(st, boardClient, apiOpts...)
	serveErr := server.Serve(ctx)

	// Stop intake first so no new events are submitted, then drain.
	if err := msgService.Stop(); err != nil {
		slog.Warn("api.Run: failed to stop messaging service", "error", err)
	}
	dispatcher.Stop()
	return serveErr
}

func openStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		slog.Warn("api.Run: no database configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	case store.IsPostgresDSN(cfg.DSN):
		st, err := store.NewPostgresStore(storeOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return st, nil
	default:
		st, err := store.NewSQLiteStore(storeOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	}
}

// openChannel builds the messaging service for the selected channel and the
// webhook it needs, if any.
func openChannel(ctx context.Context, cfg Opts, waOpts []whatsapp.Option) (messaging.Service, string, http.HandlerFunc, func(), error) {
	noop := func() {}
	switch cfg.Channel {
	case messaging.ChannelZAPI:
		svc, err := messaging.NewZAPIService(cfg.ZAPIOptions...)
		if err != nil {
			return nil, "", nil, noop, fmt.Errorf("failed to create z-api service: %w", err)
		}
		return svc, "/webhook/zapi", svc.WebhookHandler, noop, nil

	case messaging.ChannelTwilio:
		client, err := twiliowhatsapp.NewClient(cfg.TwilioOptions...)
		if err != nil {
			return nil, "", nil, noop, fmt.Errorf("failed to create twilio client: %w", err)
		}
		var validator *twiliowhatsapp.SignatureValidator
		if cfg.TwilioWebhookURL != "" {
			validator = client.SignatureValidator(cfg.TwilioWebhookURL)
		} else {
			slog.Warn("api.Run: TWILIO_WEBHOOK_URL not set, webhook signatures are not verified")
		}
		svc := messaging.NewTwilioService(client, validator)
		return svc, "/webhook/twilio", svc.TwilioWebhookHandler, noop, nil

	case messaging.ChannelWhatsmeow:
		client, err := whatsapp.NewClient(ctx, waOpts...)
		if err != nil {
			return nil, "", nil, noop, fmt.Errorf("failed to create whatsapp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), "", nil, client.Disconnect, nil
	}
	return nil, "", nil, noop, fmt.Errorf("unknown channel %q (want zapi, twilio or whatsmeow)", cfg.Channel)
}
