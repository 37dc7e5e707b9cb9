package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// outcome is the result of feeding one client answer to a strategy.
type outcome struct {
	question    string // next question to send when not done
	done        bool   // interview finished; finalize
	close       bool   // oracle decided the case must be closed
	closeReason string
}

// strategy implements one interview mode.
type strategy interface {
	// Opening prepares conv for its first question and returns it.
	Opening(o *Orchestrator, conv *models.Conversation, turn *Turn) string
	// Advance records the client's answer in conv and decides what comes next.
	Advance(ctx context.Context, o *Orchestrator, conv *models.Conversation, turn *Turn) outcome
}

func strategyFor(mode models.Mode) strategy {
	switch mode {
	case models.ModeManual:
		return manualStrategy{}
	case models.ModeAIFixed:
		return aiFixedStrategy{}
	default:
		return aiDynamicStrategy{}
	}
}

// manualStrategy walks the configured question list in order. Without
// questions it falls back to asking the name and then the narrative.
type manualStrategy struct{}

func (manualStrategy) Opening(o *Orchestrator, conv *models.Conversation, turn *Turn) string {
	if len(turn.Questions) == 0 {
		conv.CurrentQuestionIndex = models.FallbackAskName
		return o.profile.Messages.AskName
	}
	conv.CurrentQuestionIndex = 0
	return turn.Questions[0].Question
}

func (manualStrategy) Advance(ctx context.Context, o *Orchestrator, conv *models.Conversation, turn *Turn) outcome {
	idx := conv.CurrentQuestionIndex
	switch {
	case idx == models.FallbackAskName:
		name := cleanName(turn.Message)
		if name == "" {
			return outcome{question: o.profile.Messages.AskName}
		}
		conv.ClientName = name
		conv.Responses.Set(models.VarName, name)
		conv.CurrentQuestionIndex = models.FallbackAskNarrative
		return outcome{question: personalize(o.profile.Messages.AskNarrative, conv)}
	case idx < 0:
		conv.Responses.Set(models.VarNarrative, turn.Message)
		return outcome{done: true}
	case idx >= len(turn.Questions):
		// The question list shrank under this conversation.
		return outcome{done: true}
	}

	q := turn.Questions[idx]
	conv.Responses.Set(q.VariableName, turn.Message)
	if isNameVariable(q.VariableName) {
		conv.ClientName = cleanName(turn.Message)
	}
	conv.CurrentQuestionIndex = idx + 1
	if conv.CurrentQuestionIndex < len(turn.Questions) {
		return outcome{question: turn.Questions[conv.CurrentQuestionIndex].Question}
	}
	return outcome{done: true}
}

// aiFixedStrategy asks up to AIQuestionCount oracle follow-ups after the narrative.
type aiFixedStrategy struct{}

func (aiFixedStrategy) Opening(o *Orchestrator, conv *models.Conversation, turn *Turn) string {
	conv.AIQuestionCount = 0
	return o.profile.Messages.DescribeSituation
}

func (aiFixedStrategy) Advance(ctx context.Context, o *Orchestrator, conv *models.Conversation, turn *Turn) outcome {
	asked := recordNarrative(conv, turn.Message)
	budget := turn.Config.AIQuestionCount
	if asked >= budget {
		return outcome{done: true}
	}
	fu := o.classifier.GenerateFollowUp(ctx, turn.Settings, conv.MessageHistory, budget-asked)
	switch {
	case fu.ShouldClose:
		slog.Info("aiFixedStrategy.Advance: oracle closed case", "phone", conv.Phone, "reason", fu.CloseReason)
		return outcome{done: true, close: true, closeReason: fu.CloseReason}
	case fu.Sufficient():
		slog.Debug("aiFixedStrategy.Advance: narrative sufficient", "phone", conv.Phone, "asked", asked)
		return outcome{done: true}
	}
	return outcome{question: fu.Question}
}

// aiDynamicStrategy lets the oracle decide after every answer, up to AIMaxQuestions.
type aiDynamicStrategy struct{}

func (aiDynamicStrategy) Opening(o *Orchestrator, conv *models.Conversation, turn *Turn) string {
	conv.AIQuestionCount = 0
	return o.profile.Messages.DescribeSituation
}

func (aiDynamicStrategy) Advance(ctx context.Context, o *Orchestrator, conv *models.Conversation, turn *Turn) outcome {
	asked := recordNarrative(conv, turn.Message)
	if asked >= turn.Config.AIMaxQuestions {
		return outcome{done: true}
	}
	ev := o.classifier.EvaluateAndFollowUp(ctx, turn.Settings, conv.MessageHistory)
	if ev.ShouldClose {
		slog.Info("aiDynamicStrategy.Advance: oracle closed case", "phone", conv.Phone, "reason", ev.CloseReason)
		return outcome{done: true, close: true, closeReason: ev.CloseReason}
	}
	if ev.NeedsMoreInfo && ev.Question != "" {
		return outcome{question: ev.Question}
	}
	return outcome{done: true}
}

// recordNarrative stores the first answer as the narrative and later ones as
// numbered complements. It returns how many follow-ups had been asked before
// this answer and counts the answer.
func recordNarrative(conv *models.Conversation, msg string) int {
	asked := conv.AIQuestionCount
	if asked == 0 {
		if name := extractIntroName(msg); name != "" && conv.ClientName == "" {
			conv.ClientName = name
		}
		conv.Responses.Set(models.VarNarrative, msg)
	} else {
		conv.Responses.Set(fmt.Sprintf("complemento_%d", asked), msg)
	}
	conv.AIQuestionCount++
	return asked
}
