package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// DefaultZAPIBaseURL is the Z-API endpoint root.
const DefaultZAPIBaseURL = "https://api.z-api.io"

// ZAPIOpts holds configuration for the Z-API transport.
type ZAPIOpts struct {
	InstanceID  string
	Token       string
	ClientToken string // optional account security token sent as Client-Token
	BaseURL     string
	HTTPClient  *http.Client
}

// ZAPIOption configures a ZAPIService.
type ZAPIOption func(*ZAPIOpts)

// WithZAPICredentials sets the instance id and token.
func WithZAPICredentials(instanceID, token string) ZAPIOption {
	return func(o *ZAPIOpts) {
		o.InstanceID = instanceID
		o.Token = token
	}
}

// WithZAPIClientToken sets the Client-Token header value.
func WithZAPIClientToken(token string) ZAPIOption {
	return func(o *ZAPIOpts) { o.ClientToken = token }
}

// WithZAPIBaseURL overrides the API root (tests).
func WithZAPIBaseURL(u string) ZAPIOption {
	return func(o *ZAPIOpts) { o.BaseURL = u }
}

// WithZAPIHTTPClient sets the HTTP client used for sends.
func WithZAPIHTTPClient(c *http.Client) ZAPIOption {
	return func(o *ZAPIOpts) { o.HTTPClient = c }
}

// ZAPIService implements Service over the Z-API HTTP gateway. Inbound
// messages arrive through WebhookHandler.
type ZAPIService struct {
	endpoint    string
	clientToken string
	httpClient  *http.Client
	stream      *eventStream
}

// NewZAPIService creates a Z-API transport.
func NewZAPIService(opts ...ZAPIOption) (*ZAPIService, error) {
	cfg := ZAPIOpts{BaseURL: DefaultZAPIBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.InstanceID == "" || cfg.Token == "" {
		return nil, fmt.Errorf("z-api instance id and token must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ZAPIService{
		endpoint:    fmt.Sprintf("%s/instances/%s/token/%s", strings.TrimRight(cfg.BaseURL, "/"), cfg.InstanceID, cfg.Token),
		clientToken: cfg.ClientToken,
		httpClient:  cfg.HTTPClient,
		stream:      newEventStream("ZAPIService"),
	}, nil
}

// ValidateAndCanonicalizeRecipient returns the digits of a phone number.
func (s *ZAPIService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalPhone(recipient)
}

// Start is a no-op; Z-API pushes events through the webhook.
func (s *ZAPIService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channel.
func (s *ZAPIService) Stop() error {
	s.stream.close()
	return nil
}

// Events returns inbound messages received by the webhook.
func (s *ZAPIService) Events() <-chan models.InboundEvent {
	return s.stream.events()
}

type zapiSendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// SendMessage posts a text message to /send-text.
func (s *ZAPIService) SendMessage(ctx context.Context, to string, body string) error {
	if s.stream.isStopped() {
		return ErrServiceStopped
	}
	phone, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(zapiSendRequest{Phone: phone, Message: body})
	if err != nil {
		return fmt.Errorf("failed to encode z-api request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/send-text", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build z-api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.clientToken != "" {
		req.Header.Set("Client-Token", s.clientToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("z-api send failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("z-api send returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	slog.Debug("ZAPIService.SendMessage: sent", "to", phone, "body_length", len(body))
	return nil
}

type zapiWebhook struct {
	MessageID string `json:"messageId"`
	Phone     string `json:"phone"`
	FromMe    bool   `json:"fromMe"`
	IsGroup   bool   `json:"isGroup"`
	Moment    int64  `json:"momment"` // epoch milliseconds; spelled this way by Z-API
	Text      *struct {
		Message string `json:"message"`
	} `json:"text"`
	Audio *struct {
		AudioURL string `json:"audioUrl"`
		MimeType string `json:"mimeType"`
	} `json:"audio"`
}

// WebhookHandler accepts Z-API "on message received" callbacks. It always
// acknowledges well-formed payloads with 200; processing happens downstream.
func (s *ZAPIService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	var payload zapiWebhook
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&payload); err != nil {
		slog.Warn("ZAPIService.WebhookHandler: invalid payload", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if ev, ok := payload.event(); ok {
		s.stream.emit(ev)
	} else {
		slog.Debug("ZAPIService.WebhookHandler: ignoring callback", "phone", payload.Phone, "group", payload.IsGroup)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(models.Accepted()); err != nil {
		slog.Debug("ZAPIService.WebhookHandler: ack not written", "error", err)
	}
}

func (p zapiWebhook) event() (models.InboundEvent, bool) {
	if p.Phone == "" || p.IsGroup {
		return models.InboundEvent{}, false
	}
	ev := models.InboundEvent{
		ID:         p.MessageID,
		Channel:    ChannelZAPI,
		Phone:      phoneNumberRegex.ReplaceAllString(p.Phone, ""),
		FromMe:     p.FromMe,
		ReceivedAt: time.Now(),
	}
	if p.Moment > 0 {
		ev.ReceivedAt = time.UnixMilli(p.Moment)
	}
	if p.Text != nil {
		ev.Text = p.Text.Message
	}
	if p.Audio != nil && p.Audio.AudioURL != "" {
		ev.AudioURL = p.Audio.AudioURL
		ev.AudioContentType = p.Audio.MimeType
	}
	return ev, true
}
