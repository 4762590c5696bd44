package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"calendar-mirror/internal/domain"
	"calendar-mirror/internal/middleware"
	"calendar-mirror/internal/service"
)

type AuthHandler struct {
	authService    *service.AuthService
	authMiddleware *middleware.AuthMiddleware
}

func NewAuthHandler(authService *service.AuthService, authMiddleware *middleware.AuthMiddleware) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		authMiddleware: authMiddleware,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.authService.Register(creds.Email, creds.Password)
	if err != nil {
		switch err {
		case domain.ErrInvalidEmail, domain.ErrInvalidPassword:
			writeError(w, http.StatusBadRequest, err.Error())
		case domain.ErrUserAlreadyExists:
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("Error registering user: %v", err)
			writeError(w, http.StatusInternalServerError, "Registration failed")
		}
		return
	}

	if err := h.authMiddleware.SetUserSession(w, r, user.ID); err != nil {
		log.Printf("Failed to set session for user %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.authService.Login(creds.Email, creds.Password)
	if err != nil {
		if err == domain.ErrInvalidPassword {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		log.Printf("Error logging in %s: %v", creds.Email, err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	if err := h.authMiddleware.SetUserSession(w, r, user.ID); err != nil {
		log.Printf("Failed to set session for user %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authMiddleware.ClearSession(w, r); err != nil {
		log.Printf("Error clearing session: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
