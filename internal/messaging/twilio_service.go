package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/models"
	"github.com/gsPatrick/api-camilamoura/internal/twiliowhatsapp"
)

// signatureValidator verifies X-Twilio-Signature headers.
type signatureValidator interface {
	Valid(params map[string]string, signature string) bool
}

// TwilioService implements the Service interface using Twilio API
type TwilioService struct {
	client    twiliowhatsapp.Sender
	validator signatureValidator
	stream    *eventStream
}

// NewTwilioService creates a TwilioService. A nil validator accepts every webhook.
func NewTwilioService(client twiliowhatsapp.Sender, validator *twiliowhatsapp.SignatureValidator) *TwilioService {
	s := &TwilioService{
		client: client,
		stream: newEventStream("TwilioService"),
	}
	if validator != nil {
		s.validator = validator
	}
	return s
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp phone number.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := CanonicalPhone(strings.TrimPrefix(recipient, "whatsapp:"))
	if err != nil {
		return "", err
	}
	if canonical != recipient {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op for Twilio; inbound messages arrive through the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channel.
func (s *TwilioService) Stop() error {
	s.stream.close()
	return nil
}

// SendMessage sends a message via Twilio
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.stream.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// Events returns inbound messages received by the webhook.
func (s *TwilioService) Events() <-chan models.InboundEvent {
	return s.stream.events()
}

// TwilioWebhookHandler handles inbound Twilio webhook requests and emits
// them on the Events channel.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		if !s.validator.Valid(params, r.Header.Get("X-Twilio-Signature")) {
			slog.Warn("Twilio webhook signature rejected", "from", r.PostForm.Get("From"))
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	ev := models.InboundEvent{
		ID:         r.FormValue("MessageSid"),
		Channel:    ChannelTwilio,
		Phone:      twiliowhatsapp.PhoneFromAddress(r.FormValue("From")),
		Text:       r.FormValue("Body"),
		ReceivedAt: time.Now(),
	}
	if n, _ := strconv.Atoi(r.FormValue("NumMedia")); n > 0 {
		if ct := r.FormValue("MediaContentType0"); strings.HasPrefix(ct, "audio/") {
			ev.AudioURL = r.FormValue("MediaUrl0")
			ev.AudioContentType = ct
		}
	}

	if ev.Phone == "" || (ev.Text == "" && ev.AudioURL == "") {
		slog.Warn("Twilio webhook missing fields", "from", r.FormValue("From"), "num_media", r.FormValue("NumMedia"))
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	slog.Info("Inbound WhatsApp message from Twilio", "from", ev.Phone, "audio", ev.AudioURL != "")
	s.stream.emit(ev)

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
