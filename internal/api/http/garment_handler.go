package http

import (
	"encoding/json"
	"net/http"

	"github.com/JeduDev/lugx/internal/domain"
	"github.com/JeduDev/lugx/internal/repository"
	"github.com/JeduDev/lugx/internal/service"
)

type GarmentHandler struct {
	svc service.GarmentService
}

func NewGarmentHandler(svc service.GarmentService) *GarmentHandler {
	return &GarmentHandler{svc: svc}
}

type garmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Active      *bool  `json:"active,omitempty"`
}

func (h *GarmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req garmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	g := &domain.Garment{
		Name:        req.Name,
		Description: req.Description,
		Status:      domain.GarmentStatus(req.Status),
	}
	if err := h.svc.CreateGarment(r.Context(), g); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "garment created", g)
}

func (h *GarmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	g, err := h.svc.GetGarment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", g)
}

func (h *GarmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	cur, err := h.svc.GetGarment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req garmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Name != "" {
		cur.Name = req.Name
	}
	if req.Description != "" {
		cur.Description = req.Description
	}
	if req.Status != "" {
		cur.Status = domain.GarmentStatus(req.Status)
	}
	if req.Active != nil {
		cur.Active = *req.Active
	}

	if err := h.svc.UpdateGarment(r.Context(), cur); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "garment updated", cur)
}

func (h *GarmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteGarment(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "garment deleted", nil)
}

func (h *GarmentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.GarmentFilter{
		Status:   domain.GarmentStatus(r.URL.Query().Get("status")),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "limit", 10),
	}
	if filter.Status != "" && !domain.ValidGarmentStatus(filter.Status) {
		writeBadRequest(w, "invalid garment status")
		return
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true" || v == "1"
		filter.Active = &active
	}

	garments, total, err := h.svc.ListGarments(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if garments == nil {
		garments = []domain.Garment{}
	}
	writeData(w, http.StatusOK, "", map[string]interface{}{
		"garments": garments,
		"pagination": map[string]interface{}{
			"page":  filter.Page,
			"limit": filter.PageSize,
			"total": total,
		},
	})
}

func (h *GarmentHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	garments, err := h.svc.ListAvailableGarments(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if garments == nil {
		garments = []domain.Garment{}
	}
	writeData(w, http.StatusOK, "", garments)
}
