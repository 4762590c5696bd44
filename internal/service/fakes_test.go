package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"calendar-mirror/internal/domain"
)

// memEventRepo is an in-memory EventRepository for exercising
// reconciliation without a database.
type memEventRepo struct {
	mu      sync.Mutex
	events  map[string]*domain.Event // keyed by id
	upserts int
	creates int
	failing bool
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: make(map[string]*domain.Event)}
}

func (r *memEventRepo) importKey(ev *domain.Event) string {
	return ev.SourceCalendarID + "|" + ev.SourceEventUID + "|" + ev.UserID
}

func (r *memEventRepo) Create(ev *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return fmt.Errorf("store unavailable")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	cp := *ev
	r.events[ev.ID] = &cp
	r.creates++
	return nil
}

func (r *memEventRepo) UpsertImported(ev *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return fmt.Errorf("store unavailable")
	}

	key := r.importKey(ev)
	for id, existing := range r.events {
		if existing.Imported() && r.importKey(existing) == key {
			cp := *ev
			cp.ID = id
			r.events[id] = &cp
			r.upserts++
			return nil
		}
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	cp := *ev
	r.events[ev.ID] = &cp
	r.upserts++
	return nil
}

func (r *memEventRepo) ImportedFingerprints(subscriptionID, userID string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, fmt.Errorf("store unavailable")
	}

	out := make(map[string]string)
	for _, ev := range r.events {
		if ev.SourceCalendarID == subscriptionID && ev.UserID == userID {
			out[ev.SourceEventUID] = ev.Fingerprint
		}
	}
	return out, nil
}

func (r *memEventRepo) DeleteImportedByUIDs(subscriptionID, userID string, uids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return 0, fmt.Errorf("store unavailable")
	}

	uidSet := make(map[string]struct{}, len(uids))
	for _, uid := range uids {
		uidSet[uid] = struct{}{}
	}

	deleted := 0
	for id, ev := range r.events {
		if ev.SourceCalendarID != subscriptionID || ev.UserID != userID {
			continue
		}
		if _, ok := uidSet[ev.SourceEventUID]; ok {
			delete(r.events, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memEventRepo) ListByUser(userID string, start, end *time.Time) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, fmt.Errorf("store unavailable")
	}

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
		out = append(out, *ev)
	}
	return out, nil
}

func (r *memEventRepo) ExistsByTitleAndStart(userID, title string, start time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.UserID == userID && ev.Title == title && ev.Start.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memEventRepo) imported(subscriptionID, userID string) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Event
	for _, ev := range r.events {
		if ev.SourceCalendarID == subscriptionID && ev.UserID == userID {
			out = append(out, *ev)
		}
	}
	return out
}

func (r *memEventRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts
}

// memSubRepo is an in-memory SubscriptionRepository.
type memSubRepo struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscription
	meta int
}

func newMemSubRepo(subs ...*domain.Subscription) *memSubRepo {
	r := &memSubRepo{subs: make(map[string]*domain.Subscription)}
	for _, sub := range subs {
		if sub.ID == "" {
			sub.ID = uuid.NewString()
		}
		cp := *sub
		r.subs[sub.ID] = &cp
	}
	return r
}

func (r *memSubRepo) Create(sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = time.Now()
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *memSubRepo) GetByID(subscriptionID, userID string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[subscriptionID]
	if !ok || sub.UserID != userID {
		return nil, domain.ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *memSubRepo) GetAllByUserID(userID string) ([]domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *memSubRepo) ListEnabled(userID string) ([]domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Subscription
	for _, sub := range r.subs {
		if sub.SyncEnabled && (userID == "" || sub.UserID == userID) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *memSubRepo) Update(sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub.ID]; !ok {
		return domain.ErrSubscriptionNotFound
	}
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *memSubRepo) UpdateSyncMeta(subscriptionID string, syncAt time.Time, etag, lastModified string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[subscriptionID]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	sub.LastSyncAt = &syncAt
	sub.LastEtag = etag
	sub.LastModified = lastModified
	r.meta++
	return nil
}

func (r *memSubRepo) Delete(subscriptionID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[subscriptionID]
	if !ok || sub.UserID != userID {
		return domain.ErrSubscriptionNotFound
	}
	delete(r.subs, subscriptionID)
	return nil
}

func (r *memSubRepo) ExistsByURL(userID, url string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.UserID == userID && sub.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSubRepo) metaWrites() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta
}

// memTokenRepo is an in-memory FeedTokenRepository.
type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.FeedToken
}

func newMemTokenRepo(tokens ...*domain.FeedToken) *memTokenRepo {
	r := &memTokenRepo{tokens: make(map[string]*domain.FeedToken)}
	for _, token := range tokens {
		if token.ID == "" {
			token.ID = uuid.NewString()
		}
		cp := *token
		r.tokens[token.ID] = &cp
	}
	return r
}

func (r *memTokenRepo) Create(token *domain.FeedToken) error {
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

func (r *memTokenRepo) GetByToken(token string) (*domain.FeedToken, error) {
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

func (r *memTokenRepo) GetAllByUserID(userID string) ([]domain.FeedToken, error) {
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

func (r *memTokenRepo) RecordAccess(tokenID string) error {
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

func (r *memTokenRepo) Deactivate(tokenID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ft, ok := r.tokens[tokenID]
	if !ok || ft.UserID != userID {
		return domain.ErrFeedTokenNotFound
	}
	ft.IsActive = false
	return nil
}

func (r *memTokenRepo) accessCount(tokenID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ft, ok := r.tokens[tokenID]; ok {
		return ft.AccessCount
	}
	return 0
}
