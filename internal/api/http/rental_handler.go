package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/JeduDev/lugx/internal/domain"
	"github.com/JeduDev/lugx/internal/service"
)

type RentalHandler struct {
	svc service.RentalService
}

func NewRentalHandler(svc service.RentalService) *RentalHandler {
	return &RentalHandler{svc: svc}
}

type createRentalRequest struct {
	GarmentID int64     `json:"garment_id"`
	ClientID  *int64    `json:"client_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Cost      *float64  `json:"cost,omitempty"`
	Notes     string    `json:"notes"`
}

type updateRentalRequest struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Status    *string    `json:"status,omitempty"`
	Cost      *float64   `json:"cost,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

func (h *RentalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRentalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.GarmentID <= 0 {
		writeBadRequest(w, "garment_id is required")
		return
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		writeBadRequest(w, "start_time and end_time are required")
		return
	}

	rental, err := h.svc.CreateRental(r.Context(), service.CreateRentalInput{
		GarmentID:      req.GarmentID,
		ClientID:       req.ClientID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Cost:           req.Cost,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "rental created", rental)
}

func (h *RentalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateRentalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	patch := domain.RentalPatch{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Cost:      req.Cost,
		Notes:     req.Notes,
	}
	if req.Status != nil {
		status := domain.RentalStatus(*req.Status)
		if !domain.ValidRentalStatus(status) {
			writeBadRequest(w, "invalid rental status "+*req.Status)
			return
		}
		patch.Status = &status
	}

	rental, err := h.svc.UpdateRental(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "rental updated", rental)
}

func (h *RentalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelRental(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "rental cancelled", nil)
}

func (h *RentalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rental, err := h.svc.GetRental(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", rental)
}

func (h *RentalHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	rentals, err := h.svc.ListActiveRentals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rentals == nil {
		rentals = []domain.Rental{}
	}
	writeData(w, http.StatusOK, "", rentals)
}

func (h *RentalHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.RentalFilter{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "limit", 10),
	}
	if v := r.URL.Query().Get("client_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeBadRequest(w, "invalid client_id")
			return
		}
		filter.ClientID = &id
	}
	if v := r.URL.Query().Get("garment_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeBadRequest(w, "invalid garment_id")
			return
		}
		filter.GarmentID = &id
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "invalid from timestamp")
			return
		}
		filter.From = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "invalid to timestamp")
			return
		}
		filter.To = &t
	}

	rentals, total, err := h.svc.ListRentals(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rentals == nil {
		rentals = []domain.Rental{}
	}
	writeData(w, http.StatusOK, "", map[string]interface{}{
		"rentals": rentals,
		"pagination": map[string]interface{}{
			"page":  filter.Page,
			"limit": filter.PageSize,
			"total": total,
		},
	})
}

func (h *RentalHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.RentalStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", stats)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "id must be a positive number")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
