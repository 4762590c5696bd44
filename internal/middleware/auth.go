package middleware

import (
	"net/http"

	"github.com/gorilla/sessions"
)

type AuthMiddleware struct {
	store *sessions.CookieStore
}

func NewAuthMiddleware(store *sessions.CookieStore) *AuthMiddleware {
	return &AuthMiddleware{
		store: store,
	}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.store.Get(r, "session")
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		auth, ok := session.Values["authenticated"].(bool)
		if !ok || !auth {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) GetUserID(r *http.Request) (string, bool) {
	session, err := m.store.Get(r, "session")
	if err != nil {
		return "", false
	}

	userID, ok := session.Values["user_id"].(string)
	return userID, ok && userID != ""
}

func (m *AuthMiddleware) SetUserSession(w http.ResponseWriter, r *http.Request, userID string) error {
	session, err := m.store.Get(r, "session")
	if err != nil {
		return err
	}

	session.Values["authenticated"] = true
	session.Values["user_id"] = userID

	return session.Save(r, w)
}

func (m *AuthMiddleware) ClearSession(w http.ResponseWriter, r *http.Request) error {
	session, err := m.store.Get(r, "session")
	if err != nil {
		return err
	}

	session.Values["authenticated"] = false
	delete(session.Values, "user_id")

	return session.Save(r, w)
}
