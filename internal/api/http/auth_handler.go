package http

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/JeduDev/lugx/internal/logger"
	"github.com/JeduDev/lugx/internal/security"
)

// AuthHandler authenticates the admin panel user and issues access tokens.
type AuthHandler struct {
	tokens       security.TokenManager
	username     string
	passwordHash string
}

func NewAuthHandler(tokens security.TokenManager, username, passwordHash string) *AuthHandler {
	return &AuthHandler{tokens: tokens, username: username, passwordHash: passwordHash}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	if req.Username != h.username ||
		bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)) != nil {
		logger.Warn("Failed login attempt", "username", req.Username)
		writeJSON(w, http.StatusUnauthorized, Envelope{Success: false, Message: "invalid credentials"})
		return
	}

	token, err := h.tokens.GenerateAccessToken(req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "login successful", loginResponse{Token: token, Username: req.Username})
}
