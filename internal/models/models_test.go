package models

import (
	"strconv"
	"testing"
	"time"
)

func TestResponsesPreserveInsertionOrder(t *testing.T) {
	var r Responses
	r.Set("nome", "Maria")
	r.Set("cidade", "Salvador")
	r.Set("nome", "Maria Silva")

	if len(r) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(r))
	}
	if r[0].Variable != "nome" || r[0].Value != "Maria Silva" {
		t.Errorf("expected overwritten name at position 0, got %+v", r[0])
	}
	if got := r.Lines(); got != "nome: Maria Silva\ncidade: Salvador\n" {
		t.Errorf("unexpected lines %q", got)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("expected missing variable to be absent")
	}
}

func TestHistoryRecent(t *testing.T) {
	c := NewConversation("5571999887766", ModeManual, time.Now())
	for i := 0; i < 10; i++ {
		c.AppendUser(strconv.Itoa(i), time.Now())
	}
	recent := c.MessageHistory.Recent(6)
	if len(recent) != 6 || recent[0].Content != "4" || recent[5].Content != "9" {
		t.Errorf("expected turns 4..9, got %+v", recent)
	}
	if got := len(c.MessageHistory.Recent(20)); got != 10 {
		t.Errorf("expected full history of 10, got %d", got)
	}
	if got := len(c.MessageHistory.Recent(0)); got != 10 {
		t.Errorf("expected zero window to keep all turns, got %d", got)
	}
}

func TestFirstName(t *testing.T) {
	c := &Conversation{ClientName: "Maria da Silva"}
	if c.FirstName() != "Maria" {
		t.Errorf("expected Maria, got %q", c.FirstName())
	}
	if (&Conversation{}).FirstName() != "" {
		t.Error("expected empty first name")
	}
}

func TestDefaultFlowConfig(t *testing.T) {
	cfg := DefaultFlowConfig()
	if cfg.Mode != ModeAIDynamic || cfg.PostAction != PostActionWaitContact {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	cfg.Mode = "OTHER"
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid mode to fail validation")
	}
}

func TestSettingsGet(t *testing.T) {
	s := Settings{SettingEthicsNotice: "  ", SettingInPersonMessage: "Presencial"}
	if got := s.Get(SettingEthicsNotice, "fallback"); got != "fallback" {
		t.Errorf("blank setting should fall back, got %q", got)
	}
	if got := s.Get(SettingInPersonMessage, "fallback"); got != "Presencial" {
		t.Errorf("expected configured value, got %q", got)
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	if r := Error("boom"); r.Status != "error" || r.Message != "boom" {
		t.Errorf("unexpected error response %+v", r)
	}
	if r := Accepted(); r.Status != "accepted" {
		t.Errorf("unexpected accepted response %+v", r)
	}
}
