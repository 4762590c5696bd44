package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calendar-mirror/internal/domain"
	"calendar-mirror/internal/middleware"
	"calendar-mirror/internal/service"
)

func newFeedRouter(t *testing.T, tokenRepo *fakeTokenRepo, eventRepo *fakeEventRepo) *mux.Router {
	t.Helper()

	store := sessions.NewCookieStore([]byte("test-session-secret"))
	authMw := middleware.NewAuthMiddleware(store)
	feedService := service.NewFeedService(eventRepo, tokenRepo)
	h := NewFeedHandler(feedService, authMw, "http://localhost:8080")

	r := mux.NewRouter()
	r.HandleFunc("/feed", h.MissingToken).Methods("GET")
	r.HandleFunc("/feed/", h.MissingToken).Methods("GET")
	r.HandleFunc("/feed/{token}", h.ServeFeed).Methods("GET", "HEAD")
	return r
}

func seedFeedFixtures() (*fakeTokenRepo, *fakeEventRepo) {
	tokenRepo := newFakeTokenRepo(&domain.FeedToken{
		ID: "token-1", UserID: "user-1", Token: "feed-secret", IsActive: true,
	})
	eventRepo := &fakeEventRepo{events: []domain.Event{
		{
			ID: "ev-1", UserID: "user-1", Title: "Standup",
			Start: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		},
	}}
	return tokenRepo, eventRepo
}

func TestServeFeed(t *testing.T) {
	tokenRepo, eventRepo := seedFeedFixtures()
	router := newFeedRouter(t, tokenRepo, eventRepo)

	req := httptest.NewRequest("GET", "/feed/feed-secret", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeICS, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
	assert.Equal(t, feedCacheControl, rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "SUMMARY:Standup")
	assert.Equal(t, 1, tokenRepo.accessCount("token-1"))
}

func TestServeFeedConditionalGet(t *testing.T) {
	tokenRepo, eventRepo := seedFeedFixtures()
	router := newFeedRouter(t, tokenRepo, eventRepo)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("GET", "/feed/feed-secret", nil))
	require.Equal(t, http.StatusOK, first.Code)

	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest("GET", "/feed/feed-secret", nil)
	req.Header.Set("If-None-Match", etag)
	second := httptest.NewRecorder()
	router.ServeHTTP(second, req)

	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())
	// A 304 is not a read of the feed.
	assert.Equal(t, 1, tokenRepo.accessCount("token-1"))
}

func TestServeFeedIfModifiedSince(t *testing.T) {
	tokenRepo, eventRepo := seedFeedFixtures()
	router := newFeedRouter(t, tokenRepo, eventRepo)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("GET", "/feed/feed-secret", nil))
	require.Equal(t, http.StatusOK, first.Code)

	req := httptest.NewRequest("GET", "/feed/feed-secret", nil)
	req.Header.Set("If-Modified-Since", first.Header().Get("Last-Modified"))
	second := httptest.NewRecorder()
	router.ServeHTTP(second, req)

	assert.Equal(t, http.StatusNotModified, second.Code)
}

func TestServeFeedUnknownToken(t *testing.T) {
	tokenRepo, eventRepo := seedFeedFixtures()
	router := newFeedRouter(t, tokenRepo, eventRepo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/feed/not-a-token", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeFeedInactiveAndExpiredTokens(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	tokenRepo := newFakeTokenRepo(
		&domain.FeedToken{ID: "t-off", UserID: "user-1", Token: "revoked", IsActive: false},
		&domain.FeedToken{ID: "t-exp", UserID: "user-1", Token: "stale", IsActive: true, ExpiresAt: &expired},
	)
	router := newFeedRouter(t, tokenRepo, &fakeEventRepo{})

	for _, token := range []string{"revoked", "stale"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/feed/"+token, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, "token %s", token)
	}
}

func TestServeFeedMissingToken(t *testing.T) {
	tokenRepo, eventRepo := seedFeedFixtures()
	router := newFeedRouter(t, tokenRepo, eventRepo)

	for _, path := range []string{"/feed", "/feed/"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "path %s", path)
	}
}

func TestServeFeedRateLimit(t *testing.T) {
	tokenRepo, eventRepo := seedFeedFixtures()
	router := newFeedRouter(t, tokenRepo, eventRepo)

	var last int
	for i := 0; i < feedRateLimit+1; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/feed/feed-secret", nil))
		last = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestFeedFilename(t *testing.T) {
	assert.Equal(t, "my-calendar.ics", feedFilename("My Calendar"))
	assert.Equal(t, "work.ics", feedFilename("Work"))
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/feed/x", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))

	plain := httptest.NewRequest("GET", "/feed/x", nil)
	plain.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientIP(plain))
}
