package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// internalErrorBody is written when a response cannot be encoded.
var internalErrorBody = mustEncode(models.Error("Internal server error"))

func mustEncode(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic("api: cannot encode fallback response: " + err.Error())
	}
	return b
}

// writeJSONResponse encodes response before touching the headers, so an
// encoding failure still produces a well-formed 500.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	body, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: encode failed", "status", statusCode, "error", err)
		body, statusCode = internalErrorBody, http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Debug("Server.writeJSONResponse: client went away", "error", err)
	}
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, statusCode int, msg string) {
	writeJSONResponse(w, statusCode, models.Error(msg))
}
