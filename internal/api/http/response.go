package http

import (
	"encoding/json"
	"net/http"

	"github.com/JeduDev/lugx/internal/domain"
	"github.com/JeduDev/lugx/internal/logger"
)

// Envelope is the uniform response body for every endpoint.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: message})
}

// writeError maps domain error codes onto HTTP statuses. Storage and
// other unexpected errors are reported generically; the real cause only
// goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch domain.CodeOf(err) {
	case domain.ErrCodeInvalidInterval, domain.ErrCodeInactiveEntity, domain.ErrCodeUnavailable, domain.ErrCodeInvalidState:
		status = http.StatusBadRequest
	case domain.ErrCodeNotFound:
		status = http.StatusNotFound
	case domain.ErrCodeBookingConflict:
		status = http.StatusConflict
	default:
		logger.Error("Internal error handling request", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, Envelope{Success: false, Message: "internal server error"})
		return
	}
	writeJSON(w, status, Envelope{Success: false, Message: err.Error(), Error: string(domain.CodeOf(err))})
}
