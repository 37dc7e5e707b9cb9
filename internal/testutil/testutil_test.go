package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gsPatrick/api-camilamoura/internal/models"
	"github.com/gsPatrick/api-camilamoura/internal/store"
)

// mockTestingT records failures instead of failing the enclosing test.
type mockTestingT struct {
	failed   bool
	fatal    bool
	errorMsg string
}

func (m *mockTestingT) Helper() {}

func (m *mockTestingT) Errorf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func (m *mockTestingT) Fatalf(format string, args ...interface{}) {
	m.failed = true
	m.fatal = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{"matching status codes", 200, 200, false},
		{"different status codes", 200, 404, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertHTTPStatus(mockT, tt.expected, tt.actual, "test context")
			if mockT.failed != tt.shouldFail {
				t.Errorf("failed = %v, want %v (%s)", mockT.failed, tt.shouldFail, mockT.errorMsg)
			}
		})
	}
}

func TestAssertJSONResponse(t *testing.T) {
	tests := []struct {
		name           string
		jsonBody       string
		expectedStatus string
		shouldFail     bool
		wantFatal      bool
	}{
		{"matching status", `{"status":"ok","result":{"a":1}}`, "ok", false, false},
		{"different status", `{"status":"error","message":"boom"}`, "ok", true, false},
		{"invalid JSON", `{`, "ok", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			rr.WriteString(tt.jsonBody)
			mockT := &mockTestingT{}
			result := AssertJSONResponse(mockT, rr, tt.expectedStatus)
			if mockT.failed != tt.shouldFail || mockT.fatal != tt.wantFatal {
				t.Errorf("failed=%v fatal=%v, want %v/%v", mockT.failed, mockT.fatal, tt.shouldFail, tt.wantFatal)
			}
			if tt.name == "matching status" && string(result) != `{"a":1}` {
				t.Errorf("result = %s", result)
			}
		})
	}
}

func TestNewJSONRequest(t *testing.T) {
	req := NewJSONRequest(t, http.MethodPut, "/admin/settings", map[string]string{"k": "v"})
	if req.Method != http.MethodPut || req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("request = %s %v", req.Method, req.Header)
	}
	var body map[string]string
	if err := jsonDecode(req, &body); err != nil || body["k"] != "v" {
		t.Errorf("body = %v, err = %v", body, err)
	}

	raw := NewJSONRequest(t, http.MethodPost, "/x", `{"raw":true}`)
	var rawBody map[string]bool
	if err := jsonDecode(raw, &rawBody); err != nil || !rawBody["raw"] {
		t.Errorf("raw body = %v, err = %v", rawBody, err)
	}
}

func TestSeedQuestions(t *testing.T) {
	st := store.NewInMemoryStore()
	seeded := SeedQuestions(t, st,
		models.FlowQuestion{Question: "Qual é o seu nome?", VariableName: "nome"},
		models.FlowQuestion{Question: "Qual a sua cidade?", VariableName: "cidade"},
	)
	if len(seeded) != 2 || seeded[0].ID == "" || seeded[1].Order != 2 {
		t.Fatalf("seeded = %+v", seeded)
	}
	cfg, _ := st.GetActiveFlowConfig()
	got, _ := st.ListQuestions(cfg.ID)
	if len(got) != 2 || got[0].VariableName != "nome" {
		t.Errorf("stored questions = %+v", got)
	}
}

func TestSeedSettings(t *testing.T) {
	st := store.NewInMemoryStore()
	SeedSettings(t, st, map[string]string{models.SettingEthicsNotice: "Aviso"})
	settings, _ := st.GetSettings()
	if settings[models.SettingEthicsNotice] != "Aviso" {
		t.Errorf("settings = %v", settings)
	}
}

func TestMustUnmarshalJSON(t *testing.T) {
	var target map[string]interface{}
	MustUnmarshalJSON(t, MustMarshalJSON(t, map[string]interface{}{"key": "value", "number": 123}), &target)
	if target["key"] != "value" || target["number"].(float64) != 123 {
		t.Errorf("target = %v", target)
	}

	mockT := &mockTestingT{}
	MustUnmarshalJSON(mockT, []byte("{"), &target)
	if !mockT.fatal {
		t.Error("expected fatal on invalid JSON")
	}
}

func jsonDecode(req *http.Request, target interface{}) error {
	return json.NewDecoder(req.Body).Decode(target)
}
