package http

import (
	"encoding/json"
	"net/http"

	"github.com/JeduDev/lugx/internal/domain"
	"github.com/JeduDev/lugx/internal/repository"
	"github.com/JeduDev/lugx/internal/service"
)

type ClientHandler struct {
	svc service.ClientService
}

func NewClientHandler(svc service.ClientService) *ClientHandler {
	return &ClientHandler{svc: svc}
}

type clientRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Active *bool  `json:"active,omitempty"`
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	c := &domain.Client{Name: req.Name, Email: req.Email, Phone: req.Phone}
	if err := h.svc.CreateClient(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "client created", c)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", c)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	cur, err := h.svc.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Name != "" {
		cur.Name = req.Name
	}
	if req.Email != "" {
		cur.Email = req.Email
	}
	if req.Phone != "" {
		cur.Phone = req.Phone
	}
	if req.Active != nil {
		cur.Active = *req.Active
	}

	if err := h.svc.UpdateClient(r.Context(), cur); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "client updated", cur)
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteClient(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "client deleted", nil)
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.ClientFilter{
		Search:   r.URL.Query().Get("search"),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "limit", 10),
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true" || v == "1"
		filter.Active = &active
	}

	clients, total, err := h.svc.ListClients(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	writeData(w, http.StatusOK, "", map[string]interface{}{
		"clients": clients,
		"pagination": map[string]interface{}{
			"page":  filter.Page,
			"limit": filter.PageSize,
			"total": total,
		},
	})
}
