package http

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Check answers liveness probes. Clients poll this endpoint to decide
// whether to operate online or queue mutations locally, so it must stay
// cheap and unauthenticated.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, Envelope{Success: false, Message: "database unreachable"})
		return
	}
	writeData(w, http.StatusOK, "", map[string]string{"status": "ok"})
}
