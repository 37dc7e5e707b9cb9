// Package twiliowhatsapp sends WhatsApp messages through Twilio and verifies
// the signature of Twilio webhooks.
package twiliowhatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers one WhatsApp text to a phone number.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sender number, with or without the "whatsapp:" prefix.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// resolveOpts applies opts and fills unset fields from TWILIO_* variables.
func resolveOpts(opts []Option) Opts {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	fallback := func(v *string, key string) {
		if *v == "" {
			*v = os.Getenv(key)
		}
	}
	fallback(&cfg.AccountSID, "TWILIO_ACCOUNT_SID")
	fallback(&cfg.AuthToken, "TWILIO_AUTH_TOKEN")
	fallback(&cfg.FromWhats, "TWILIO_FROM_NUMBER")
	return cfg
}

// Client sends through the Twilio Messages API from one WhatsApp sender.
type Client struct {
	client    *twilio.RestClient
	authToken string
	fromWhats string // "whatsapp:+5571999990000"
}

var _ Sender = (*Client)(nil)

// NewClient builds a Client. Credentials missing from opts are read from the environment.
func NewClient(opts ...Option) (*Client, error) {
	cfg := resolveOpts(opts)
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("twilio account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, errors.New("twilio sender number must be provided")
	}
	slog.Debug("twiliowhatsapp.NewClient: client created", "from", WhatsAppAddress(cfg.FromWhats))
	return &Client{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
		authToken: cfg.AuthToken,
		fromWhats: WhatsAppAddress(cfg.FromWhats),
	}, nil
}

// WhatsAppAddress converts a phone number into Twilio's "whatsapp:+<digits>" address form.
func WhatsAppAddress(phone string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:")
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return "whatsapp:" + phone
}

// PhoneFromAddress strips the "whatsapp:" prefix and any non-digits from a Twilio address.
func PhoneFromAddress(addr string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, strings.TrimPrefix(addr, "whatsapp:"))
}

// SendMessage queues body for delivery to the phone number to.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(WhatsAppAddress(to))
	params.SetFrom(c.fromWhats)
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send to %s: %w", to, err)
	}
	if resp == nil {
		return nil
	}
	// Twilio may accept the request and still reject the message itself.
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio rejected message to %s: code %d %s", to, *resp.ErrorCode, msg)
	}
	if resp.Sid != nil {
		slog.Debug("Client.SendMessage: queued", "to", to, "sid", *resp.Sid)
	}
	return nil
}

// SignatureValidator returns a validator for webhooks Twilio posts to webhookURL,
// signed with this client's auth token.
func (c *Client) SignatureValidator(webhookURL string) *SignatureValidator {
	return NewSignatureValidator(c.authToken, webhookURL)
}

// SignatureValidator checks the X-Twilio-Signature header of inbound webhooks.
type SignatureValidator struct {
	validator  twilioClient.RequestValidator
	webhookURL string
}

// NewSignatureValidator validates requests addressed to webhookURL, the public
// URL Twilio is configured to call.
func NewSignatureValidator(authToken, webhookURL string) *SignatureValidator {
	return &SignatureValidator{
		validator:  twilioClient.NewRequestValidator(authToken),
		webhookURL: webhookURL,
	}
}

// Valid reports whether signature matches the posted form params.
func (v *SignatureValidator) Valid(params map[string]string, signature string) bool {
	return v.validator.Validate(v.webhookURL, params, signature)
}

// MockClient records sent messages for tests. A non-nil Err fails every send.
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
