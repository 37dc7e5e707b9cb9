// Package testutil provides common test helpers for HTTP handlers and stores.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gsPatrick/api-camilamoura/internal/models"
	"github.com/gsPatrick/api-camilamoura/internal/store"
)

// TB is the subset of testing.TB the helpers use.
type TB interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a standard API response and validates its status field.
// The result payload is returned as raw JSON for the caller to decode.
func AssertJSONResponse(t TB, rr *httptest.ResponseRecorder, expectedStatus string) json.RawMessage {
	t.Helper()
	var response struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
		return nil
	}
	if response.Status != expectedStatus {
		t.Errorf("expected status '%s', got '%s' (message %q)", expectedStatus, response.Status, response.Message)
	}
	return response.Result
}

// NewJSONRequest creates an HTTP request with an optional JSON body.
func NewJSONRequest(t TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			reqBody.WriteString(raw)
		} else {
			reqBody.Write(MustMarshalJSON(t, body))
		}
	}
	req := httptest.NewRequest(method, url, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// SeedQuestions appends MANUAL questions to the active flow configuration
// and returns them with their assigned ids and order.
func SeedQuestions(t TB, st store.FlowRepo, questions ...models.FlowQuestion) []models.FlowQuestion {
	t.Helper()
	cfg, err := st.GetActiveFlowConfig()
	if err != nil {
		t.Fatalf("failed to load flow config: %v", err)
		return nil
	}
	out := make([]models.FlowQuestion, 0, len(questions))
	for _, q := range questions {
		q.FlowConfigID = cfg.ID
		if err := st.AddQuestion(&q); err != nil {
			t.Fatalf("failed to add question %q: %v", q.VariableName, err)
			return nil
		}
		out = append(out, q)
	}
	return out
}

// SeedSettings stores operator settings.
func SeedSettings(t TB, st store.SettingsRepo, settings map[string]string) {
	t.Helper()
	for k, v := range settings {
		if err := st.SetSetting(k, v); err != nil {
			t.Fatalf("failed to set %s: %v", k, err)
			return
		}
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
