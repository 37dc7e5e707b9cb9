package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gsPatrick/api-camilamoura/internal/api"
	"github.com/gsPatrick/api-camilamoura/internal/board"
	"github.com/gsPatrick/api-camilamoura/internal/config"
	"github.com/gsPatrick/api-camilamoura/internal/genai"
	"github.com/gsPatrick/api-camilamoura/internal/lockfile"
	"github.com/gsPatrick/api-camilamoura/internal/messaging"
	"github.com/gsPatrick/api-camilamoura/internal/store"
	"github.com/gsPatrick/api-camilamoura/internal/twiliowhatsapp"
	"github.com/gsPatrick/api-camilamoura/internal/util"
	"github.com/gsPatrick/api-camilamoura/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for triagebot state data
	DefaultStateDir = "/var/lib/triagebot"
	// DefaultAppDBFileName is the default SQLite database filename
	DefaultAppDBFileName = "triagebot.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow session database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

// Config holds the merged environment and flag configuration.
type Config struct {
	StateDir         string
	DatabaseDSN      string
	WhatsAppDSN      string
	Channel          string
	Addr             string
	ProfilePath      string
	OpenAIKey        string
	OpenAIModel      string
	TrelloKey        string
	TrelloToken      string
	TrelloBoardID    string
	ZAPIInstanceID   string
	ZAPIToken        string
	ZAPIClientToken  string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
	TwilioWebhookURL string
	QROutput         string
	NumericCode      bool
	Debug            bool
	GenAIDebug       bool
}

func main() {
	if err := run(); err != nil {
		var lockErr *lockfile.LockError
		if errors.As(err, &lockErr) {
			fmt.Fprintln(os.Stderr, lockErr.Error())
		}
		slog.Error("triagebot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("triagebot exited successfully")
}

func run() error {
	cfg := loadEnvironmentConfig()
	cfg, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], cfg)
	if err != nil {
		return err
	}
	initializeLogger(cfg.Debug)

	profile, err := config.Load(cfg.ProfilePath)
	if err != nil {
		return fmt.Errorf("failed to load office profile: %w", err)
	}

	lock, err := lockfile.AcquireLock(cfg.StateDir, cfg.Channel)
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping triagebot", "channel", cfg.Channel, "addr", cfg.Addr, "office", profile.OfficeName)
	slog.Debug("Final configuration", "state_dir", cfg.StateDir, "postgres", store.IsPostgresDSN(cfg.DatabaseDSN), "profile", cfg.ProfilePath)
	return api.Run(ctx,
		buildWhatsAppOptions(cfg),
		buildStoreOptions(cfg),
		buildGenAIOptions(cfg),
		buildBoardOptions(cfg),
		buildAPIOptions(cfg, profile))
}

// initializeLogger installs the default text logger.
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	return Config{
		StateDir:         util.StringEnv("TRIAGE_STATE_DIR", DefaultStateDir),
		DatabaseDSN:      os.Getenv("DATABASE_URL"),
		WhatsAppDSN:      os.Getenv("WHATSAPP_DB_DSN"),
		Channel:          util.StringEnv("TRIAGE_CHANNEL", messaging.ChannelZAPI),
		Addr:             util.StringEnv("TRIAGE_ADDR", api.DefaultServerAddress),
		ProfilePath:      os.Getenv("TRIAGE_PROFILE"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		TrelloKey:        os.Getenv("TRELLO_KEY"),
		TrelloToken:      os.Getenv("TRELLO_TOKEN"),
		TrelloBoardID:    os.Getenv("TRELLO_BOARD_ID"),
		ZAPIInstanceID:   os.Getenv("ZAPI_INSTANCE_ID"),
		ZAPIToken:        os.Getenv("ZAPI_TOKEN"),
		ZAPIClientToken:  os.Getenv("ZAPI_CLIENT_TOKEN"),
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioWebhookURL: os.Getenv("TWILIO_WEBHOOK_URL"),
		Debug:            util.ParseBoolEnv("TRIAGE_DEBUG", false),
		GenAIDebug:       util.ParseBoolEnv("TRIAGE_GENAI_DEBUG", false),
	}
}

// parseCommandLineFlags applies flags over the environment configuration.
// Paths derived from the state directory are resolved after parsing so
// -state-dir moves them too.
func parseCommandLineFlags(fs *flag.FlagSet, args []string, env Config) (Config, error) {
	cfg := env
	fs.StringVar(&cfg.StateDir, "state-dir", env.StateDir, "state directory for triagebot data (overrides $TRIAGE_STATE_DIR)")
	fs.StringVar(&cfg.DatabaseDSN, "db-dsn", env.DatabaseDSN, "Postgres DSN or SQLite path (overrides $DATABASE_URL)")
	fs.StringVar(&cfg.WhatsAppDSN, "wa-dsn", env.WhatsAppDSN, "whatsmeow session database DSN (overrides $WHATSAPP_DB_DSN)")
	fs.StringVar(&cfg.Channel, "channel", env.Channel, "WhatsApp channel: zapi, twilio or whatsmeow (overrides $TRIAGE_CHANNEL)")
	fs.StringVar(&cfg.Addr, "addr", env.Addr, "HTTP listen address (overrides $TRIAGE_ADDR)")
	fs.StringVar(&cfg.ProfilePath, "profile", env.ProfilePath, "office profile YAML file (overrides $TRIAGE_PROFILE)")
	fs.StringVar(&cfg.OpenAIKey, "openai-api-key", env.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", env.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)")
	fs.StringVar(&cfg.QROutput, "qr-output", "", "path to write the whatsmeow login QR code")
	fs.BoolVar(&cfg.NumericCode, "numeric-code", false, "print the raw whatsmeow login code instead of a QR code")
	fs.BoolVar(&cfg.Debug, "debug", env.Debug, "enable debug logging (overrides $TRIAGE_DEBUG)")
	fs.BoolVar(&cfg.GenAIDebug, "genai-debug", env.GenAIDebug, "write oracle requests to the state directory (overrides $TRIAGE_GENAI_DEBUG)")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = filepath.Join(cfg.StateDir, DefaultAppDBFileName)
	}
	if cfg.WhatsAppDSN == "" {
		cfg.WhatsAppDSN = "file:" + filepath.Join(cfg.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	}
	return cfg, nil
}

// buildWhatsAppOptions constructs whatsmeow session options
func buildWhatsAppOptions(cfg Config) []whatsapp.Option {
	waOpts := []whatsapp.Option{whatsapp.WithDBDSN(cfg.WhatsAppDSN)}
	if cfg.QROutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(cfg.QROutput))
	}
	if cfg.NumericCode {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	return waOpts
}

// buildStoreOptions picks the store backend from the DSN shape
func buildStoreOptions(cfg Config) []store.Option {
	if store.IsPostgresDSN(cfg.DatabaseDSN) {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return []store.Option{store.WithPostgresDSN(cfg.DatabaseDSN)}
	}
	slog.Debug("Configuring SQLite store", "db_path", cfg.DatabaseDSN)
	return []store.Option{store.WithSQLiteDSN(cfg.DatabaseDSN)}
}

// buildGenAIOptions constructs oracle client options
func buildGenAIOptions(cfg Config) []genai.Option {
	genaiOpts := []genai.Option{genai.WithAPIKey(cfg.OpenAIKey)}
	if cfg.OpenAIModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(cfg.OpenAIModel))
	}
	if cfg.GenAIDebug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(true, cfg.StateDir))
	}
	return genaiOpts
}

// buildBoardOptions constructs Trello client options
func buildBoardOptions(cfg Config) []board.Option {
	return []board.Option{
		board.WithCredentials(cfg.TrelloKey, cfg.TrelloToken),
		board.WithBoardID(cfg.TrelloBoardID),
	}
}

// buildAPIOptions constructs API server and channel options
func buildAPIOptions(cfg Config, profile *config.Profile) []api.Option {
	apiOpts := []api.Option{
		api.WithAddr(cfg.Addr),
		api.WithChannel(cfg.Channel),
		api.WithProfile(profile),
	}
	switch cfg.Channel {
	case messaging.ChannelZAPI:
		zapiOpts := []messaging.ZAPIOption{messaging.WithZAPICredentials(cfg.ZAPIInstanceID, cfg.ZAPIToken)}
		if cfg.ZAPIClientToken != "" {
			zapiOpts = append(zapiOpts, messaging.WithZAPIClientToken(cfg.ZAPIClientToken))
		}
		apiOpts = append(apiOpts, api.WithZAPIOptions(zapiOpts...))
	case messaging.ChannelTwilio:
		apiOpts = append(apiOpts, api.WithTwilioOptions(
			twiliowhatsapp.WithAccountSID(cfg.TwilioSID),
			twiliowhatsapp.WithAuthToken(cfg.TwilioToken),
			twiliowhatsapp.WithFromWhats(cfg.TwilioFrom),
		))
		if cfg.TwilioWebhookURL != "" {
			apiOpts = append(apiOpts, api.WithTwilioWebhookURL(cfg.TwilioWebhookURL))
		}
	}
	return apiOpts
}
