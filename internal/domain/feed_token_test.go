package domain

import (
	"errors"
	"testing"
	"time"
)

func TestFeedTokenUsable(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		token FeedToken
		want  error
	}{
		{"active without expiry", FeedToken{IsActive: true}, nil},
		{"active before expiry", FeedToken{IsActive: true, ExpiresAt: &future}, nil},
		{"deactivated", FeedToken{IsActive: false}, ErrFeedTokenInactive},
		{"expired", FeedToken{IsActive: true, ExpiresAt: &past}, ErrFeedTokenExpired},
		{"deactivated and expired", FeedToken{IsActive: false, ExpiresAt: &past}, ErrFeedTokenInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Usable(now); !errors.Is(got, tt.want) {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}
