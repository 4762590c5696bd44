package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"calendar-mirror/internal/domain"
	"calendar-mirror/internal/middleware"
	"calendar-mirror/internal/service"
	"calendar-mirror/pkg/ratelimit"
)

const (
	feedCacheControl = "private, must-revalidate, max-age=300"
	feedRateLimit    = 60
	feedRateWindow   = time.Minute
	contentTypeICS   = "text/calendar; charset=utf-8"
)

type FeedHandler struct {
	feedService    *service.FeedService
	authMiddleware *middleware.AuthMiddleware
	limiter        *ratelimit.Limiter
	appURL         string
}

func NewFeedHandler(feedService *service.FeedService, authMiddleware *middleware.AuthMiddleware, appURL string) *FeedHandler {
	return &FeedHandler{
		feedService:    feedService,
		authMiddleware: authMiddleware,
		limiter:        ratelimit.NewLimiter(),
		appURL:         strings.TrimRight(appURL, "/"),
	}
}

// ServeFeed handles GET /feed/{token}. Calendar clients poll this endpoint,
// so it speaks plain text on error and honors conditional request headers.
func (h *FeedHandler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if token == "" {
		http.Error(w, "Missing feed token", http.StatusBadRequest)
		return
	}

	if !h.limiter.Allow(clientIP(r), feedRateLimit, feedRateWindow) {
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	ft, err := h.feedService.ResolveToken(token)
	if err != nil {
		switch err {
		case domain.ErrFeedTokenNotFound, domain.ErrFeedTokenInactive, domain.ErrFeedTokenExpired:
			http.Error(w, "Feed not found", http.StatusNotFound)
		default:
			log.Printf("Error resolving feed token: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	feed, err := h.feedService.BuildFeed(ft.UserID)
	if err != nil {
		log.Printf("Error building feed for user %s: %v", ft.UserID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	lastModified := feed.LastModified.Truncate(time.Second)

	w.Header().Set("ETag", feed.ETag)
	w.Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	w.Header().Set("Cache-Control", feedCacheControl)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")

	if notModified(r, feed.ETag, lastModified) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", contentTypeICS)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", feedFilename(feed.Name)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(feed.Body)); err != nil {
		log.Printf("Error writing feed body: %v", err)
		return
	}

	h.feedService.RecordAccess(ft.ID)
}

// MissingToken answers /feed without a token segment.
func (h *FeedHandler) MissingToken(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Missing feed token", http.StatusBadRequest)
}

// notModified implements conditional-GET: an If-None-Match hit or an
// If-Modified-Since at or after the feed's last modification both mean the
// client copy is still fresh.
func notModified(r *http.Request, etag string, lastModified time.Time) bool {
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		return true
	}
	if since := r.Header.Get("If-Modified-Since"); since != "" {
		if t, err := http.ParseTime(since); err == nil && !lastModified.After(t) {
			return true
		}
	}
	return false
}

type createTokenRequest struct {
	ExpiresInDays int `json:"expires_in_days"`
}

type tokenResponse struct {
	domain.FeedToken
	FeedURL string `json:"feed_url"`
}

func (h *FeedHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createTokenRequest
	if r.Body != nil {
		// An empty body means a non-expiring token.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var expiresAt *time.Time
	if req.ExpiresInDays > 0 {
		t := time.Now().UTC().AddDate(0, 0, req.ExpiresInDays)
		expiresAt = &t
	}

	token, err := h.feedService.CreateToken(userID, expiresAt)
	if err != nil {
		log.Printf("Error creating feed token for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Error creating feed token")
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{
		FeedToken: *token,
		FeedURL:   h.appURL + "/feed/" + token.Token,
	})
}

func (h *FeedHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tokens, err := h.feedService.ListTokens(userID)
	if err != nil {
		log.Printf("Error listing feed tokens for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Error listing feed tokens")
		return
	}

	responses := make([]tokenResponse, len(tokens))
	for i, token := range tokens {
		responses[i] = tokenResponse{
			FeedToken: token,
			FeedURL:   h.appURL + "/feed/" + token.Token,
		}
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *FeedHandler) DeactivateToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authMiddleware.GetUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tokenID := mux.Vars(r)["id"]
	if err := h.feedService.DeactivateToken(tokenID, userID); err != nil {
		if err == domain.ErrFeedTokenNotFound {
			writeError(w, http.StatusNotFound, "Feed token not found")
			return
		}
		log.Printf("Error deactivating feed token %s: %v", tokenID, err)
		writeError(w, http.StatusInternalServerError, "Error deactivating feed token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func feedFilename(name string) string {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	return slug + ".ics"
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
