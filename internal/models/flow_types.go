// Package models defines flow configuration types to avoid circular imports.
package models

import "time"

// Mode selects the interview strategy.
type Mode string

// PostAction selects what happens to a conversation after its ticket is created.
type PostAction string

// Interview modes.
const (
	ModeManual    Mode = "MANUAL"
	ModeAIFixed   Mode = "AI_FIXED"
	ModeAIDynamic Mode = "AI_DYNAMIC"
)

// Post-finalization actions.
const (
	PostActionAIResponse  PostAction = "AI_RESPONSE"
	PostActionWaitContact PostAction = "WAIT_CONTACT"
)

// Defaults applied when the active flow configuration is first created.
const (
	DefaultMode                = ModeAIDynamic
	DefaultAIQuestionCount     = 3
	DefaultAIMaxQuestions      = 5
	DefaultPostAction          = PostActionWaitContact
	DefaultTitleTemplate       = "{nome}: {telefone}"
	DefaultDescriptionTemplate = "**Área:** {area}\n**Telefone:** {telefone}\n**Resumo:** {resumo}\n\n---\n**Relato Original:**\n{relato}"
)

// Valid reports whether m is a known interview mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeManual, ModeAIFixed, ModeAIDynamic:
		return true
	}
	return false
}

// Valid reports whether p is a known post action.
func (p PostAction) Valid() bool {
	return p == PostActionAIResponse || p == PostActionWaitContact
}

// FlowConfig is the single active, operator-managed interview configuration.
type FlowConfig struct {
	ID                  int64      `json:"id"`
	Mode                Mode       `json:"mode"`
	AIQuestionCount     int        `json:"ai_question_count"`
	AIMaxQuestions      int        `json:"ai_max_questions"`
	PostAction          PostAction `json:"post_action"`
	TitleTemplate       string     `json:"title_template"`
	DescriptionTemplate string     `json:"description_template"`
	IsActive            bool       `json:"is_active"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DefaultFlowConfig returns the configuration used when none has been saved.
func DefaultFlowConfig() FlowConfig {
	return FlowConfig{
		Mode:                DefaultMode,
		AIQuestionCount:     DefaultAIQuestionCount,
		AIMaxQuestions:      DefaultAIMaxQuestions,
		PostAction:          DefaultPostAction,
		TitleTemplate:       DefaultTitleTemplate,
		DescriptionTemplate: DefaultDescriptionTemplate,
		IsActive:            true,
	}
}

// Validate checks the fields an operator can change.
func (f FlowConfig) Validate() error {
	if !f.Mode.Valid() {
		return ValidationError("mode must be MANUAL, AI_FIXED or AI_DYNAMIC")
	}
	if !f.PostAction.Valid() {
		return ValidationError("post_action must be AI_RESPONSE or WAIT_CONTACT")
	}
	if f.AIQuestionCount < 0 || f.AIMaxQuestions < 0 {
		return ValidationError("question budgets must not be negative")
	}
	return nil
}

// FlowQuestion is one step of the MANUAL interview.
type FlowQuestion struct {
	ID           string `json:"id"`
	FlowConfigID int64  `json:"flow_config_id"`
	Question     string `json:"question"`
	VariableName string `json:"variable_name"`
	Order        int    `json:"order"`
	IsRequired   bool   `json:"is_required"`
}

// Validate checks a question before it is stored.
func (q FlowQuestion) Validate() error {
	if q.Question == "" {
		return ValidationError("question is required")
	}
	if q.VariableName == "" {
		return ValidationError("variable_name is required")
	}
	return nil
}

// ValidationError is returned for operator input that fails validation.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }
