// Package whatsapp wraps the whatsmeow client for the native WhatsApp channel.
//
// It pairs the device on first run, sends text messages and downloads voice notes.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gsPatrick/api-camilamoura/internal/store"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// Sender delivers one WhatsApp text to a phone number.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // whatsmeow session database
	QRPath      string // where to write the pairing QR code; stdout when empty
	NumericCode bool   // print the raw pairing code instead of a QR code
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow session database DSN.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) {
		o.DBDSN = dsn
	}
}

// WithQRCodeOutput writes the pairing QR code to path instead of stdout.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) {
		o.QRPath = path
	}
}

// WithNumericCode prints the raw pairing code instead of a QR code.
func WithNumericCode() Option {
	return func(o *Opts) {
		o.NumericCode = true
	}
}

// driverFor picks the database/sql driver for a whatsmeow DSN.
func driverFor(dsn string) string {
	if store.IsPostgresDSN(dsn) {
		return "postgres"
	}
	return "sqlite3"
}

// Client is a connected whatsmeow session.
type Client struct {
	waClient *whatsmeow.Client
}

var _ Sender = (*Client)(nil)

// NewClient opens the session store and connects, pairing the device first
// when the store holds no session.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DBDSN == "" {
		return nil, errors.New("whatsapp session database DSN not set")
	}
	driver := driverFor(cfg.DBDSN)
	if driver == "sqlite3" && !strings.Contains(cfg.DBDSN, "foreign_keys") {
		slog.Warn("whatsapp.NewClient: SQLite DSN without _foreign_keys=on; whatsmeow requires foreign keys", "dsn", cfg.DBDSN)
	}

	container, err := sqlstore.New(ctx, driver, cfg.DBDSN, slogLogger{module: "whatsmeow.db"})
	if err != nil {
		return nil, fmt.Errorf("failed to open whatsapp session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load whatsapp device: %w", err)
	}
	waClient := whatsmeow.NewClient(device, slogLogger{module: "whatsmeow"})

	if waClient.Store.ID == nil {
		if err := pair(ctx, waClient, cfg); err != nil {
			waClient.Disconnect()
			return nil, err
		}
		slog.Info("whatsapp.NewClient: device paired")
		return &Client{waClient: waClient}, nil
	}
	if err := waClient.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to whatsapp: %w", err)
	}
	slog.Info("whatsapp.NewClient: connected", "jid", waClient.Store.ID.String())
	return &Client{waClient: waClient}, nil
}

// pair renders each pairing code until the QR channel reports an outcome.
// Anything other than a successful scan is an error.
func pair(ctx context.Context, waClient *whatsmeow.Client, cfg Opts) error {
	qrChan, err := waClient.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to start whatsapp pairing: %w", err)
	}
	if err := waClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect to whatsapp for pairing: %w", err)
	}

	out := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			return fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		out = f
	}

	slog.Info("whatsapp.pair: scan the code with the office phone")
	last := ""
	for evt := range qrChan {
		last = evt.Event
		if evt.Event != "code" {
			slog.Info("whatsapp.pair: pairing event", "event", evt.Event)
			continue
		}
		if cfg.NumericCode {
			fmt.Fprintln(out, evt.Code)
		} else {
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, out)
		}
	}
	if last != "success" {
		return fmt.Errorf("whatsapp pairing did not complete: %s", last)
	}
	return nil
}

// SendMessage sends a text to a phone number given as digits.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if to == "" {
		return errors.New("recipient cannot be empty")
	}
	if body == "" {
		return errors.New("message body cannot be empty")
	}
	jid := types.NewJID(to, types.DefaultUserServer)
	if _, err := c.waClient.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(body)}); err != nil {
		return fmt.Errorf("failed to send whatsapp message to %s: %w", to, err)
	}
	slog.Debug("Client.SendMessage: sent", "to", to, "body_length", len(body))
	return nil
}

// DownloadAudio fetches and decrypts a voice note.
func (c *Client) DownloadAudio(ctx context.Context, audio *waE2E.AudioMessage) ([]byte, error) {
	data, err := c.waClient.Download(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	return data, nil
}

// AddEventHandler registers a whatsmeow event handler.
func (c *Client) AddEventHandler(fn func(evt interface{})) uint32 {
	return c.waClient.AddEventHandler(fn)
}

// RemoveEventHandler removes a handler registered with AddEventHandler.
func (c *Client) RemoveEventHandler(id uint32) {
	c.waClient.RemoveEventHandler(id)
}

// Disconnect closes the WhatsApp connection.
func (c *Client) Disconnect() {
	c.waClient.Disconnect()
}

// slogLogger routes whatsmeow's printf-style logging into slog.
type slogLogger struct {
	module string
}

var _ waLog.Logger = slogLogger{}

func (l slogLogger) Debugf(msg string, args ...interface{}) {
	slog.Debug(fmt.Sprintf(msg, args...), "module", l.module)
}

func (l slogLogger) Infof(msg string, args ...interface{}) {
	// whatsmeow is chatty at info; keep it out of the default log level.
	slog.Debug(fmt.Sprintf(msg, args...), "module", l.module)
}

func (l slogLogger) Warnf(msg string, args ...interface{}) {
	slog.Warn(fmt.Sprintf(msg, args...), "module", l.module)
}

func (l slogLogger) Errorf(msg string, args ...interface{}) {
	slog.Error(fmt.Sprintf(msg, args...), "module", l.module)
}

func (l slogLogger) Sub(module string) waLog.Logger {
	return slogLogger{module: l.module + "/" + module}
}

// MockClient records sent messages without a WhatsApp connection (for tests).
type MockClient struct {
	mu   sync.Mutex
	sent []SentMessage
	Err  error
}

// SentMessage is one message recorded by MockClient.
type SentMessage struct {
	To   string
	Body string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentMessage{To: to, Body: body})
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockClient) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}
