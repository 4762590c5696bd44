package domain

import (
	"strings"
	"time"
)

// Subscription is a remote iCalendar source mirrored for one user.
// LastEtag and LastModified hold the cache validators the remote returned
// on the most recent sync attempt; both empty means never synced.
type Subscription struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Color        string     `json:"color"`
	SyncEnabled  bool       `json:"sync_enabled"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	LastEtag     string     `json:"-"`
	LastModified string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (s *Subscription) Validate() error {
	if s.Name == "" {
		return ErrInvalidSubscriptionName
	}
	if s.URL == "" {
		return ErrInvalidSubscriptionURL
	}
	if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
		return ErrInvalidSubscriptionURL
	}
	if s.UserID == "" {
		return ErrInvalidUserID
	}
	return nil
}

// NeverSynced reports whether no cache validators have been recorded yet.
func (s *Subscription) NeverSynced() bool {
	return s.LastEtag == "" && s.LastModified == ""
}
