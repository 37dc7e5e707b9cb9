package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// finalize classifies a completed interview and either closes it or files a ticket.
// When ticket creation fails the conversation stays in PROCESSING so the
// next client message retries.
func (o *Orchestrator) finalize(ctx context.Context, conv *models.Conversation, turn *Turn, out outcome) error {
	conv.Step = models.StepProcessing
	if err := o.store.SaveConversation(conv); err != nil {
		return fmt.Errorf("failed to save conversation before finalize: %w", err)
	}
	o.send(ctx, conv.Phone, o.profile.Messages.Processing)

	fullContext := conv.Responses.Lines() + "\nÚltima mensagem: " + turn.Message
	cls := o.classifier.Classify(ctx, turn.Settings, fullContext)
	if out.close {
		cls.ShouldClose = true
		if cls.CloseReason == "" {
			cls.CloseReason = out.closeReason
		}
	}

	clientName := firstNonEmpty(conv.ClientName, cls.ClientName, conv.Phone)
	conv.Responses.Set("area", cls.Type)
	conv.Responses.Set("resumo", cls.Summary)
	conv.Responses.Set("urgencia", cls.Urgency)

	if cls.ShouldClose {
		slog.Info("Orchestrator.finalize: closing case", "phone", conv.Phone, "reason", cls.CloseReason)
		if err := o.store.DeleteConversation(conv.Phone); err != nil {
			return fmt.Errorf("failed to delete closed conversation: %w", err)
		}
		o.send(ctx, conv.Phone, o.closeMessage(cls.CloseReason, turn.Settings))
		return nil
	}

	if o.requiresInPerson(cls) {
		slog.Info("Orchestrator.finalize: in-person routing", "phone", conv.Phone, "type", cls.Type, "urgency", cls.Urgency)
		o.send(ctx, conv.Phone, turn.Settings.Get(models.SettingInPersonMessage, o.profile.Messages.InPerson))
	}

	ticket, err := o.createTicket(ctx, conv, turn, cls, clientName)
	if err != nil {
		slog.Error("Orchestrator.finalize: ticket creation failed", "phone", conv.Phone, "error", err)
		if saveErr := o.store.SaveConversation(conv); saveErr != nil {
			slog.Error("Orchestrator.finalize: save after failure", "phone", conv.Phone, "error", saveErr)
		}
		return err
	}
	o.recent.put(conv.Phone, ticket)

	if conv.ClientName == "" {
		conv.ClientName = clientName
	}
	switch turn.Config.PostAction {
	case models.PostActionAIResponse:
		conv.Step = models.StepAIChat
		if err := o.store.SaveConversation(conv); err != nil {
			return fmt.Errorf("failed to save conversation for chat: %w", err)
		}
		o.send(ctx, conv.Phone, personalize(o.profile.Messages.CaseRegistered, conv))
	default:
		if err := o.store.DeleteConversation(conv.Phone); err != nil {
			return fmt.Errorf("failed to delete finalized conversation: %w", err)
		}
		o.send(ctx, conv.Phone, personalize(o.profile.Messages.Forwarded, conv))
	}
	return nil
}

func (o *Orchestrator) closeMessage(reason string, settings models.Settings) string {
	switch reason {
	case models.CloseReasonHasLawyer:
		return settings.Get(models.SettingHasLawyerMessage, o.profile.Messages.HasLawyer)
	case models.CloseReasonOutsideArea:
		return o.profile.Messages.OutsideArea
	default:
		return o.profile.Messages.GenericClose
	}
}

// requiresInPerson reports whether the case needs an in-person first meeting.
func (o *Orchestrator) requiresInPerson(cls models.Classification) bool {
	if cls.Urgency == models.UrgencyHigh {
		return true
	}
	if o.profile.IncapacityCategory != "" && fold(cls.Type) == fold(o.profile.IncapacityCategory) {
		return true
	}
	summary := fold(cls.Summary)
	for _, kw := range o.profile.InPersonKeywords {
		if kw = fold(strings.TrimSpace(kw)); kw != "" && strings.Contains(summary, kw) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
