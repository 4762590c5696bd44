package domain

import "time"

// FeedToken grants read access to one user's calendar feed without a
// session. The Token value is the credential itself and must be unguessable.
type FeedToken struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Token          string     `json:"token"`
	IsActive       bool       `json:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Usable reports whether the token currently grants access; a nil return
// means it does, otherwise the error names why not.
func (t *FeedToken) Usable(now time.Time) error {
	if !t.IsActive {
		return ErrFeedTokenInactive
	}
	if t.ExpiresAt != nil && now.After(*t.ExpiresAt) {
		return ErrFeedTokenExpired
	}
	return nil
}
