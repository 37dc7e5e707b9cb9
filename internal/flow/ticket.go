package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gsPatrick/api-camilamoura/internal/board"
	"github.com/gsPatrick/api-camilamoura/internal/models"
)

var tokenPattern = regexp.MustCompile(`\{([\p{L}\p{N}_]+)\}`)

// Render replaces every {token} in tmpl with the matching value from data.
// Token names match case-insensitively; later entries win over earlier ones.
// Unknown tokens render as the empty string.
func Render(tmpl string, data models.Responses) string {
	values := make(map[string]string, len(data))
	for _, a := range data {
		values[strings.ToLower(a.Variable)] = a.Value
	}
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(tok string) string {
		return values[strings.ToLower(tok[1:len(tok)-1])]
	})
}

// TemplateData builds the substitution data for ticket templates: the
// classification fields first, overlaid by the collected responses.
func TemplateData(phone, clientName string, cls models.Classification, responses models.Responses) models.Responses {
	area := cls.Type
	if area == "" {
		area = models.CategoryGeneral
	}
	urgency := cls.Urgency
	if urgency == "" {
		urgency = models.UrgencyNormal
	}
	narrative, _ := responses.Get(models.VarNarrative)
	data := models.Responses{
		{Variable: "nome", Value: clientName},
		{Variable: "telefone", Value: phone},
		{Variable: "area", Value: area},
		{Variable: "resumo", Value: cls.Summary},
		{Variable: "urgencia", Value: urgency},
		{Variable: "relato", Value: narrative},
	}
	for _, a := range responses {
		data.Set(a.Variable, a.Value)
	}
	return data
}

// createTicket files the finalized interview on the board.
func (o *Orchestrator) createTicket(ctx context.Context, conv *models.Conversation, turn *Turn, cls models.Classification, clientName string) (*models.Ticket, error) {
	listID, err := o.targetList(ctx, turn.Settings)
	if err != nil {
		return nil, err
	}
	data := TemplateData(conv.Phone, clientName, cls, conv.Responses)
	req := models.CardRequest{
		ListID:      listID,
		Title:       strings.ToUpper(Render(turn.Config.TitleTemplate, data)),
		Description: Render(turn.Config.DescriptionTemplate, data),
		LabelIDs:    o.ticketLabels(ctx, cls, turn.Settings),
	}
	ticket, err := o.board.CreateCard(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	slog.Info("Orchestrator.createTicket: ticket created", "phone", conv.Phone, "ticket", ticket.ID, "labels", len(req.LabelIDs))
	return ticket, nil
}

// targetList picks the configured list, else the first intake-looking list, else the first list.
func (o *Orchestrator) targetList(ctx context.Context, settings models.Settings) (string, error) {
	if id := strings.TrimSpace(settings.Get(models.SettingTargetListID, "")); id != "" {
		return id, nil
	}
	lists, err := o.board.Lists(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list board lists: %w", err)
	}
	if len(lists) == 0 {
		return "", board.ErrNoLists
	}
	if re, err := regexp.Compile(o.profile.IntakeListPattern); err == nil && o.profile.IntakeListPattern != "" {
		for _, l := range lists {
			if re.MatchString(l.Name) {
				return l.ID, nil
			}
		}
	}
	return lists[0].ID, nil
}

// ticketLabels returns the category label and, for urgent cases, the urgent label.
// Label lookup failures only cost the labels.
func (o *Orchestrator) ticketLabels(ctx context.Context, cls models.Classification, settings models.Settings) []string {
	configuredUrgent := strings.TrimSpace(settings.Get(models.SettingUrgentLabelID, ""))
	urgent := cls.Urgency == models.UrgencyHigh

	labels, err := o.board.Labels(ctx)
	if err != nil {
		slog.Warn("Orchestrator.ticketLabels: label lookup failed", "error", err)
		labels = nil
	}

	var ids []string
	add := func(id string) {
		for _, existing := range ids {
			if existing == id {
				return
			}
		}
		ids = append(ids, id)
	}

	for _, l := range labels {
		if cls.Type != "" && fold(l.Name) == fold(cls.Type) {
			add(l.ID)
			break
		}
	}
	if !urgent {
		return ids
	}
	if configuredUrgent != "" {
		add(configuredUrgent)
		return ids
	}
	re, _ := regexp.Compile(o.profile.UrgentLabelPattern)
	for _, l := range labels {
		if (re != nil && o.profile.UrgentLabelPattern != "" && re.MatchString(l.Name)) ||
			(o.profile.UrgentLabelColor != "" && l.Color == o.profile.UrgentLabelColor) {
			add(l.ID)
			break
		}
	}
	return ids
}
