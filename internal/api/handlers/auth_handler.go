package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"yam/internal/pkg/errors"
	"yam/internal/platform/identity"
)

type AuthHandler struct {
	provider *identity.Provider
}

func NewAuthHandler(provider *identity.Provider) *AuthHandler {
	return &AuthHandler{provider: provider}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	SessionToken string             `json:"session_token"`
	Identity     *identity.Identity `json:"identity"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	token, ident, err := h.provider.SignIn(req.Email, req.Password)
	if err != nil {
		if err == identity.ErrInvalidCredentials {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid credentials", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Sign-in failed", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{SessionToken: token, Identity: ident})
}

// Logout broadcasts a signed-out notification for the session's subject; any
// live registration flow tracking it moves to its terminal session-ended
// state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing bearer token", nil)
		return
	}

	if err := h.provider.SignOut(parts[1]); err != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired session", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
