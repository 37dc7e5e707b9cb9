// Package messaging provides the WhatsApp channel abstraction: outbound
// delivery, inbound event streams for each transport and the dispatcher that
// feeds inbound events to the conversation flow.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// Constants for channel buffering.
const (
	// DefaultChannelBufferSize defines the buffer size for inbound event channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an emit waits on a full channel
	DefaultChannelTimeout = 1 * time.Second
)

// Channel names carried on InboundEvent.Channel.
const (
	ChannelZAPI      = "zapi"
	ChannelTwilio    = "twilio"
	ChannelWhatsmeow = "whatsmeow"
)

var (
	// ErrServiceStopped is returned when sending through a stopped service.
	ErrServiceStopped = errors.New("messaging service stopped")
	// ErrNotStarted is returned when events are submitted to a dispatcher that is not running.
	ErrNotStarted = errors.New("dispatcher not started")
)

var phoneNumberRegex = regexp.MustCompile(`\D`)

// Service is one WhatsApp transport: Z-API, Twilio or a native whatsmeow session.
type Service interface {
	// ValidateAndCanonicalizeRecipient reduces a phone number to the form the transport sends to.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)
	SendMessage(ctx context.Context, to string, body string) error
	// Start attaches the transport's inbound source, if it has one of its own.
	Start(ctx context.Context) error
	// Stop detaches the inbound source and closes Events. Later sends fail with ErrServiceStopped.
	Stop() error
	// Events delivers client messages in arrival order.
	Events() <-chan models.InboundEvent
}

// CanonicalPhone strips every non-digit from recipient and requires at least 6 digits.
func CanonicalPhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

// eventStream is the inbound channel shared by every transport. Emits never
// block longer than DefaultChannelTimeout and are dropped after close.
type eventStream struct {
	name    string
	mu      sync.RWMutex
	ch      chan models.InboundEvent
	stopped bool
}

func newEventStream(name string) *eventStream {
	return &eventStream{name: name, ch: make(chan models.InboundEvent, DefaultChannelBufferSize)}
}

func (s *eventStream) emit(ev models.InboundEvent) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		slog.Warn(s.name+" dropping inbound event (service stopped)", "phone", ev.Phone)
		return false
	}
	select {
	case s.ch <- ev:
		slog.Debug(s.name+" emitted inbound event", "phone", ev.Phone, "id", ev.ID)
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn(s.name+" events channel blocked, dropping message", "phone", ev.Phone, "timeout", DefaultChannelTimeout)
		return false
	}
}

func (s *eventStream) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// close is idempotent.
func (s *eventStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.ch)
}

func (s *eventStream) events() <-chan models.InboundEvent {
	return s.ch
}
