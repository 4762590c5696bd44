package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"calendar-mirror/internal/domain"
	"calendar-mirror/internal/middleware"
	"calendar-mirror/internal/service"
)

type SubscriptionHandler struct {
	subService     *service.SubscriptionService
	authMiddleware *middleware.AuthMiddleware
}

func NewSubscriptionHandler(subService *service.SubscriptionService, authMiddleware *middleware.AuthMiddleware) *SubscriptionHandler {
	return &SubscriptionHandler{
		subService:     subService,
		authMiddleware: authMiddleware,
	}
}

type createSubscriptionRequest struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Color string `json:"color"`
}

type subscriptionWithResult struct {
	Subscription *domain.Subscription `json:"subscription"`
	SyncResult   *service.SyncResult  `json:"sync_result"`
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, result, err := h.subService.Create(r.Context(), userID, req.Name, req.URL, req.Color)
	if err != nil {
		switch err {
		case domain.ErrInvalidSubscriptionName, domain.ErrInvalidSubscriptionURL:
			writeError(w, http.StatusBadRequest, err.Error())
		case domain.ErrSubscriptionAlreadyExists:
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("Error creating subscription: %v", err)
			writeError(w, http.StatusInternalServerError, "Error creating subscription")
		}
		return
	}

	writeJSON(w, http.StatusCreated, subscriptionWithResult{Subscription: sub, SyncResult: result})
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	subs, err := h.subService.List(userID)
	if err != nil {
		log.Printf("Error listing subscriptions for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Error listing subscriptions")
		return
	}

	writeJSON(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	subscriptionID := mux.Vars(r)["id"]
	sub, err := h.subService.Get(subscriptionID, userID)
	if err != nil {
		if err == domain.ErrSubscriptionNotFound {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error getting subscription %s: %v", subscriptionID, err)
		writeError(w, http.StatusInternalServerError, "Error getting subscription")
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	subscriptionID := mux.Vars(r)["id"]
	result, err := h.subService.Sync(r.Context(), subscriptionID, userID)
	if err != nil {
		switch err {
		case domain.ErrSubscriptionNotFound:
			writeError(w, http.StatusNotFound, err.Error())
		case domain.ErrSyncDisabled:
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("Error syncing subscription %s: %v", subscriptionID, err)
			writeError(w, http.StatusInternalServerError, "Error syncing subscription")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *SubscriptionHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	results, err := h.subService.SyncAllForUser(r.Context(), userID)
	if err != nil {
		log.Printf("Error syncing subscriptions for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Error syncing subscriptions")
		return
	}

	writeJSON(w, http.StatusOK, results)
}

type updateSubscriptionRequest struct {
	Name        *string `json:"name"`
	Color       *string `json:"color"`
	SyncEnabled *bool   `json:"sync_enabled"`
}

func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req updateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	subscriptionID := mux.Vars(r)["id"]
	sub, err := h.subService.Update(subscriptionID, userID, req.Name, req.Color, req.SyncEnabled)
	if err != nil {
		switch err {
		case domain.ErrSubscriptionNotFound:
			writeError(w, http.StatusNotFound, err.Error())
		case domain.ErrInvalidSubscriptionName, domain.ErrInvalidSubscriptionURL:
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("Error updating subscription %s: %v", subscriptionID, err)
			writeError(w, http.StatusInternalServerError, "Error updating subscription")
		}
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	subscriptionID := mux.Vars(r)["id"]
	if err := h.subService.Delete(subscriptionID, userID); err != nil {
		if err == domain.ErrSubscriptionNotFound {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error deleting subscription %s: %v", subscriptionID, err)
		writeError(w, http.StatusInternalServerError, "Error deleting subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
