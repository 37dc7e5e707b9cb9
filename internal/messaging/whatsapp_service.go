package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/models"
	"github.com/gsPatrick/api-camilamoura/internal/whatsapp"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
)

// audioDownloader fetches voice note bytes from WhatsApp's media servers.
type audioDownloader interface {
	DownloadAudio(ctx context.Context, audio *waE2E.AudioMessage) ([]byte, error)
}

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client     whatsapp.Sender
	waClient   *whatsapp.Client // set when running against a real session
	downloader audioDownloader
	stream     *eventStream
	handlerID  uint32
	wg         sync.WaitGroup
	ctx        context.Context
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client: client,
		stream: newEventStream("WhatsAppService"),
		ctx:    context.Background(),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		service.downloader = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return service
}

// ValidateAndCanonicalizeRecipient returns the digits of a phone number.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalPhone(recipient)
}

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	s.ctx = ctx
	if s.waClient == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
		return nil
	}
	s.handlerID = s.waClient.AddEventHandler(s.handleEvent)
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop unregisters the event handler, waits for pending downloads and closes the event channel.
func (s *WhatsAppService) Stop() error {
	if s.waClient != nil {
		s.waClient.RemoveEventHandler(s.handlerID)
	}
	s.wg.Wait()
	s.stream.close()
	slog.Info("WhatsAppService stopped and channel closed")
	return nil
}

// SendMessage sends a text message.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	if s.stream.isStopped() {
		return ErrServiceStopped
	}
	phone, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, phone, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", phone)
		return err
	}
	return nil
}

// Events returns inbound client messages.
func (s *WhatsAppService) Events() <-chan models.InboundEvent {
	return s.stream.events()
}

func (s *WhatsAppService) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		s.handleIncomingMessage(v)
	case *events.Connected:
		slog.Info("WhatsAppService connected")
	case *events.Disconnected:
		slog.Warn("WhatsAppService disconnected")
	}
}

// handleIncomingMessage converts text and voice messages into inbound events.
// Voice notes are downloaded off the whatsmeow event goroutine.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsGroup {
		return
	}
	ev := models.InboundEvent{
		ID:         evt.Info.ID,
		Channel:    ChannelWhatsmeow,
		Phone:      evt.Info.Sender.User,
		FromMe:     evt.Info.IsFromMe,
		ReceivedAt: evt.Info.Timestamp,
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	switch {
	case evt.Message.GetConversation() != "":
		ev.Text = evt.Message.GetConversation()
	case evt.Message.GetExtendedTextMessage().GetText() != "":
		ev.Text = evt.Message.GetExtendedTextMessage().GetText()
	case evt.Message.GetAudioMessage() != nil:
		s.downloadAndEmit(ev, evt.Message.GetAudioMessage())
		return
	default:
		slog.Debug("WhatsAppService ignoring non-text message", "from", ev.Phone)
		return
	}
	s.stream.emit(ev)
}

func (s *WhatsAppService) downloadAndEmit(ev models.InboundEvent, audio *waE2E.AudioMessage) {
	ev.AudioContentType = audio.GetMimetype()
	if s.downloader == nil {
		slog.Warn("WhatsAppService cannot download audio without a session", "from", ev.Phone)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
		defer cancel()
		data, err := s.downloader.DownloadAudio(ctx, audio)
		if err != nil {
			// The event still reaches the flow, which asks the client to type instead.
			slog.Error("WhatsAppService audio download failed", "from", ev.Phone, "error", err)
		}
		ev.AudioData = data
		s.stream.emit(ev)
	}()
}
