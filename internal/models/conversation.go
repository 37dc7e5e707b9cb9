package models

import (
	"strings"
	"time"
)

// Step is the position of a conversation in the intake state machine.
type Step string

const (
	StepInitial    Step = "INITIAL"
	StepCollecting Step = "COLLECTING"
	StepProcessing Step = "PROCESSING"
	StepAIChat     Step = "AI_CHAT"
)

// Question index sentinels used by MANUAL mode when no questions are configured.
const (
	FallbackAskName      = -1
	FallbackAskNarrative = -2
)

// Roles recorded in the message history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Well-known response variables.
const (
	VarName      = "nome"
	VarNarrative = "relato"
)

// MessageTurn is one entry of a conversation's message history.
type MessageTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// History is a conversation's message turns, oldest first.
type History []MessageTurn

// Recent returns at most the last n turns. n <= 0 means all of them.
func (h History) Recent(n int) History {
	if n <= 0 || len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// Answer is a single collected response keyed by its variable name.
type Answer struct {
	Variable string `json:"variable"`
	Value    string `json:"value"`
}

// Responses is an insertion-ordered mapping of variable name to answer text.
type Responses []Answer

// Set stores value under variable, keeping the original position if the
// variable was already answered.
func (r *Responses) Set(variable, value string) {
	for i := range *r {
		if (*r)[i].Variable == variable {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, Answer{Variable: variable, Value: value})
}

// Get returns the value stored under variable.
func (r Responses) Get(variable string) (string, bool) {
	for _, a := range r {
		if a.Variable == variable {
			return a.Value, true
		}
	}
	return "", false
}

// Lines renders the responses as "key: value" lines in insertion order.
func (r Responses) Lines() string {
	var b strings.Builder
	for _, a := range r {
		b.WriteString(a.Variable)
		b.WriteString(": ")
		b.WriteString(a.Value)
		b.WriteString("\n")
	}
	return b.String()
}

// Conversation is the persisted interview state for one phone number.
type Conversation struct {
	Phone                string        `json:"phone"`
	Step                 Step          `json:"step"`
	Mode                 Mode          `json:"mode"` // interview mode fixed at creation
	ClientName           string        `json:"client_name,omitempty"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	Responses            Responses     `json:"responses"`
	MessageHistory       History       `json:"message_history"`
	AIQuestionCount      int           `json:"ai_question_count"`
	LastMessageRaw       string        `json:"last_message_raw,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// NewConversation returns a conversation in its initial state.
func NewConversation(phone string, mode Mode, now time.Time) *Conversation {
	return &Conversation{
		Phone:     phone,
		Step:      StepInitial,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendUser records an inbound client message.
func (c *Conversation) AppendUser(content string, now time.Time) {
	c.MessageHistory = append(c.MessageHistory, MessageTurn{Role: RoleUser, Content: content, Timestamp: now})
	c.LastMessageRaw = content
}

// AppendAssistant records an outbound assistant message.
func (c *Conversation) AppendAssistant(content string, now time.Time) {
	c.MessageHistory = append(c.MessageHistory, MessageTurn{Role: RoleAssistant, Content: content, Timestamp: now})
}

// FirstName returns the first word of the client name.
func (c *Conversation) FirstName() string {
	fields := strings.Fields(c.ClientName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
