// Package triage wraps the text-generation oracle for the intake interview:
// case classification, follow-up question generation, sufficiency evaluation
// and post-triage chat.
//
// Every call except Chat fails open to a deterministic fallback, so an oracle
// outage degrades the interview instead of interrupting it.
package triage

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/gsPatrick/api-camilamoura/internal/config"
	"github.com/gsPatrick/api-camilamoura/internal/genai"
	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// Completer is the oracle capability used by the service.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, msgs []genai.Message, opts genai.CompletionOptions) (string, error)
}

// KnowledgeProvider supplies active reference documents.
type KnowledgeProvider interface {
	ActiveKnowledgeDocuments() ([]models.KnowledgeDocument, error)
}

// Call parameters per oracle task.
var (
	classifyOptions = genai.CompletionOptions{JSONMode: true, Temperature: 0, MaxTokens: 400}
	followUpOptions = genai.CompletionOptions{Temperature: 0.7, MaxTokens: 200}
	evaluateOptions = genai.CompletionOptions{JSONMode: true, Temperature: 0.5, MaxTokens: 300}
	chatOptions     = genai.CompletionOptions{Temperature: 0.7, MaxTokens: 500}
)

// closeSentinel prefixes follow-up replies that ask to end the interview.
const closeSentinel = "ENCERRAR"

// summaryFallbackChars bounds the summary used when classification fails.
const summaryFallbackChars = 100

// Service performs oracle-backed triage tasks.
type Service struct {
	oracle    Completer
	knowledge KnowledgeProvider
	profile   *config.Profile
}

// NewService creates a triage service. knowledge may be nil.
func NewService(oracle Completer, knowledge KnowledgeProvider, profile *config.Profile) *Service {
	if profile == nil {
		profile = config.Default()
	}
	return &Service{oracle: oracle, knowledge: knowledge, profile: profile}
}

// Classify categorizes the interview content. It never fails: on any oracle
// or parse error it returns the general-category fallback.
func (s *Service) Classify(ctx context.Context, settings models.Settings, fullContext string) models.Classification {
	fallback := models.Classification{
		Type:    models.CategoryGeneral,
		Urgency: models.UrgencyNormal,
		Summary: truncateRunes(fullContext, summaryFallbackChars),
	}
	categories := s.categories(settings)
	prompt := s.classifyPrompt(categories)
	raw, err := s.oracle.Complete(ctx, prompt, []genai.Message{{Role: models.RoleUser, Content: `Relato: "` + fullContext + `"`}}, classifyOptions)
	if err != nil {
		slog.Warn("Service.Classify: oracle failed, using fallback", "error", err)
		return fallback
	}
	var out models.Classification
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		slog.Warn("Service.Classify: malformed response, using fallback", "error", err)
		return fallback
	}
	out.Type = canonicalCategory(out.Type, categories)
	out.Urgency = normalizeUrgency(out.Urgency)
	out.ClientName = cleanNullable(out.ClientName)
	out.CloseReason = normalizeCloseReason(out.CloseReason)
	if strings.TrimSpace(out.Summary) == "" {
		out.Summary = fallback.Summary
	}
	slog.Debug("Service.Classify: classified", "type", out.Type, "urgency", out.Urgency, "should_close", out.ShouldClose)
	return out
}

// GenerateFollowUp asks for one more interview question given the remaining
// budget. A reply of "ENCERRAR|<reason>" becomes a close decision. Sufficiency,
// an empty reply and oracle failure all yield the zero FollowUp.
func (s *Service) GenerateFollowUp(ctx context.Context, settings models.Settings, history []models.MessageTurn, remaining int) models.FollowUp {
	prompt := s.followUpPrompt(settings, remaining)
	raw, err := s.oracle.Complete(ctx, prompt, toMessages(models.History(history).Recent(s.profile.History.FollowUp)), followUpOptions)
	if err != nil {
		slog.Warn("Service.GenerateFollowUp: oracle failed, treating as sufficient", "error", err)
		return models.FollowUp{}
	}
	reply := strings.TrimSpace(raw)
	switch {
	case reply == "":
		return models.FollowUp{}
	case strings.HasPrefix(strings.ToUpper(reply), closeSentinel):
		_, reason, _ := strings.Cut(reply, "|")
		slog.Info("Service.GenerateFollowUp: oracle asked to end interview", "reply", reply)
		return models.FollowUp{ShouldClose: true, CloseReason: normalizeCloseReason(reason)}
	case strings.Contains(strings.ToUpper(reply), models.FollowUpSufficient):
		return models.FollowUp{}
	}
	return models.FollowUp{Question: reply}
}

// EvaluateAndFollowUp judges whether the interview has enough information.
// On failure it returns {NeedsMoreInfo: false}.
func (s *Service) EvaluateAndFollowUp(ctx context.Context, settings models.Settings, history []models.MessageTurn) models.Evaluation {
	prompt := s.evaluatePrompt(settings)
	raw, err := s.oracle.Complete(ctx, prompt, toMessages(models.History(history).Recent(s.profile.History.Evaluate)), evaluateOptions)
	if err != nil {
		slog.Warn("Service.EvaluateAndFollowUp: oracle failed, finishing interview", "error", err)
		return models.Evaluation{}
	}
	var out models.Evaluation
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		slog.Warn("Service.EvaluateAndFollowUp: malformed response, finishing interview", "error", err)
		return models.Evaluation{}
	}
	out.Question = strings.TrimSpace(out.Question)
	out.CloseReason = normalizeCloseReason(out.CloseReason)
	return out
}

// Chat answers a post-triage message. Unlike the interview calls it reports
// failure so the caller can send a holding message instead.
func (s *Service) Chat(ctx context.Context, settings models.Settings, history []models.MessageTurn) (string, error) {
	reply, err := s.oracle.Complete(ctx, s.chatPrompt(settings), toMessages(models.History(history).Recent(s.profile.History.Chat)), chatOptions)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", genai.ErrNoChoicesReturned
	}
	return reply, nil
}

func toMessages(history models.History) []genai.Message {
	out := make([]genai.Message, 0, len(history))
	for _, t := range history {
		out = append(out, genai.Message{Role: t.Role, Content: t.Content})
	}
	return out
}
