package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/raglet/raglet/internal/log"
)

// writeJSON writes a JSON response with the given status code.
// Uses buffer-first strategy to ensure headers are only sent after
// successful encoding, so encoding failures can still return a 500.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("failed to write response body", "error", err)
	}
}

// errorResponse is the error body shape clients parse for detail text.
type errorResponse struct {
	Detail string `json:"detail"`
}

// writeError writes a JSON error response with a detail message.
func writeError(w http.ResponseWriter, status int, detail string, logger log.Logger) {
	writeJSON(w, status, errorResponse{Detail: detail}, logger)
}
