package models

// Urgency levels produced by classification.
const (
	UrgencyHigh   = "Alta"
	UrgencyNormal = "Normal"
)

// Close reasons produced by classification or evaluation.
const (
	CloseReasonHasLawyer   = "has_lawyer"
	CloseReasonOutsideArea = "outside_area"
)

// CategoryOther is the catch-all category the classifier may return.
const CategoryOther = "OUTROS"

// CategoryGeneral is the category used when classification fails.
const CategoryGeneral = "Geral"

// Classification is the transient result of classifying a finished interview.
type Classification struct {
	ClientName  string `json:"client_name"`
	Type        string `json:"type"`
	Urgency     string `json:"urgency"`
	Summary     string `json:"summary"`
	ShouldClose bool   `json:"should_close"`
	CloseReason string `json:"close_reason"`
}

// Evaluation is the result of judging whether an interview has enough detail.
type Evaluation struct {
	NeedsMoreInfo bool   `json:"needsMoreInfo"`
	Question      string `json:"question,omitempty"`
	ShouldClose   bool   `json:"shouldClose,omitempty"`
	CloseReason   string `json:"closeReason,omitempty"`
}

// FollowUpSufficient is the oracle's reply when no more questions are needed.
const FollowUpSufficient = "SUFFICIENT"

// FollowUp is the result of asking for one more interview question.
// An empty Question without ShouldClose means the interview has enough detail.
type FollowUp struct {
	Question    string
	ShouldClose bool
	CloseReason string
}

// Sufficient reports whether the interview can be finalized without another question.
func (f FollowUp) Sufficient() bool {
	return f.Question == "" && !f.ShouldClose
}
