package handler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"calendar-mirror/internal/domain"
)

// fakeEventRepo is the minimal in-memory event store the handler tests need.
type fakeEventRepo struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *fakeEventRepo) Create(ev *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	r.events = append(r.events, *ev)
	return nil
}

func (r *fakeEventRepo) UpsertImported(ev *domain.Event) error {
	return r.Create(ev)
}

func (r *fakeEventRepo) ImportedFingerprints(subscriptionID, userID string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (r *fakeEventRepo) DeleteImportedByUIDs(subscriptionID, userID string, uids []string) (int, error) {
	return 0, nil
}

func (r *fakeEventRepo) ListByUser(userID string, start, end *time.Time) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.UserID != userID {
			continue
		}
		if start != nil && ev.End.Before(*start) {
			continue
		}
		if end != nil && ev.Start.After(*end) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *fakeEventRepo) ExistsByTitleAndStart(userID, title string, start time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.UserID == userID && ev.Title == title && ev.Start.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

// fakeTokenRepo is an in-memory feed token store that counts accesses.
type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.FeedToken
}

func newFakeTokenRepo(tokens ...*domain.FeedToken) *fakeTokenRepo {
	r := &fakeTokenRepo{tokens: make(map[string]*domain.FeedToken)}
	for _, token := range tokens {
		if token.ID == "" {
			token.ID = uuid.NewString()
		}
		cp := *token
		r.tokens[token.ID] = &cp
	}
	return r
}

func (r *fakeTokenRepo) Create(token *domain.FeedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = time.Now()
	cp := *token
	r.tokens[token.ID] = &cp
	return nil
}

func (r *fakeTokenRepo) GetByToken(token string) (*domain.FeedToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ft := range r.tokens {
		if ft.Token == token {
			cp := *ft
			return &cp, nil
		}
	}
	return nil, domain.ErrFeedTokenNotFound
}

func (r *fakeTokenRepo) GetAllByUserID(userID string) ([]domain.FeedToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FeedToken
	for _, ft := range r.tokens {
		if ft.UserID == userID {
			out = append(out, *ft)
		}
	}
	return out, nil
}

func (r *fakeTokenRepo) RecordAccess(tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ft, ok := r.tokens[tokenID]
	if !ok {
		return domain.ErrFeedTokenNotFound
	}
	now := time.Now()
	ft.AccessCount++
	ft.LastAccessedAt = &now
	return nil
}

func (r *fakeTokenRepo) Deactivate(tokenID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ft, ok := r.tokens[tokenID]
	if !ok || ft.UserID != userID {
		return domain.ErrFeedTokenNotFound
	}
	ft.IsActive = false
	return nil
}

func (r *fakeTokenRepo) accessCount(tokenID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ft, ok := r.tokens[tokenID]; ok {
		return ft.AccessCount
	}
	return 0
}
