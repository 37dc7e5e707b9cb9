package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// chat answers a client whose case is already registered and mirrors the
// exchange onto their ticket. A failed reply leaves the history untouched.
func (o *Orchestrator) chat(ctx context.Context, conv *models.Conversation, settings models.Settings, text string) error {
	now := o.now()
	history := make([]models.MessageTurn, len(conv.MessageHistory), len(conv.MessageHistory)+1)
	copy(history, conv.MessageHistory)
	history = append(history, models.MessageTurn{Role: models.RoleUser, Content: text, Timestamp: now})

	reply, err := o.classifier.Chat(ctx, settings, history)
	if err != nil || strings.TrimSpace(reply) == "" {
		slog.Warn("Orchestrator.chat: no reply", "phone", conv.Phone, "error", err)
		o.send(ctx, conv.Phone, o.profile.Messages.ChatUnavailable)
		return nil
	}

	conv.AppendUser(text, now)
	conv.AppendAssistant(reply, o.now())
	if err := o.store.SaveConversation(conv); err != nil {
		return fmt.Errorf("failed to save chat turn: %w", err)
	}
	o.send(ctx, conv.Phone, reply)

	if ticket := o.findTicket(ctx, conv.Phone); ticket != nil {
		mirror := strings.NewReplacer("{cliente}", text, "{assistente}", reply).Replace(o.profile.Messages.ChatMirror)
		if err := o.board.Comment(ctx, ticket.ID, mirror); err != nil {
			slog.Error("Orchestrator.chat: mirror comment failed", "ticket", ticket.ID, "error", err)
		}
	}
	return nil
}
