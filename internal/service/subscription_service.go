package service

import (
	"context"
	"fmt"

	"calendar-mirror/internal/domain"
	"calendar-mirror/internal/repository"
)

type SubscriptionService struct {
	subRepo     repository.SubscriptionRepository
	syncService *SyncService
}

func NewSubscriptionService(subRepo repository.SubscriptionRepository, syncService *SyncService) *SubscriptionService {
	return &SubscriptionService{
		subRepo:     subRepo,
		syncService: syncService,
	}
}

// Create stores a new subscription and runs its initial sync immediately.
func (s *SubscriptionService) Create(ctx context.Context, userID, name, url, color string) (*domain.Subscription, *SyncResult, error) {
	sub := &domain.Subscription{
		UserID:      userID,
		Name:        name,
		URL:         NormalizeSubscriptionURL(url),
		Color:       color,
		SyncEnabled: true,
	}
	if sub.Color == "" {
		sub.Color = defaultEventColor
	}
	if err := sub.Validate(); err != nil {
		return nil, nil, err
	}

	exists, err := s.subRepo.ExistsByURL(userID, sub.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check subscription existence: %w", err)
	}
	if exists {
		return nil, nil, domain.ErrSubscriptionAlreadyExists
	}

	if err := s.subRepo.Create(sub); err != nil {
		return nil, nil, err
	}

	result := s.syncService.SyncOne(ctx, sub)
	return sub, &result, nil
}

func (s *SubscriptionService) List(userID string) ([]domain.Subscription, error) {
	subs, err := s.subRepo.GetAllByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriptions: %w", err)
	}
	return subs, nil
}

func (s *SubscriptionService) Get(subscriptionID, userID string) (*domain.Subscription, error) {
	return s.subRepo.GetByID(subscriptionID, userID)
}

// Sync re-syncs a single subscription on demand.
func (s *SubscriptionService) Sync(ctx context.Context, subscriptionID, userID string) (*SyncResult, error) {
	sub, err := s.subRepo.GetByID(subscriptionID, userID)
	if err != nil {
		return nil, err
	}
	if !sub.SyncEnabled {
		return nil, domain.ErrSyncDisabled
	}

	result := s.syncService.SyncOne(ctx, sub)
	return &result, nil
}

// SyncAllForUser re-syncs every enabled subscription the user has.
func (s *SubscriptionService) SyncAllForUser(ctx context.Context, userID string) ([]SyncResult, error) {
	return s.syncService.SyncAllForUser(ctx, userID)
}

// Update applies name/color/sync-enabled changes. The URL is immutable; a
// different source is a different subscription.
func (s *SubscriptionService) Update(subscriptionID, userID string, name, color *string, syncEnabled *bool) (*domain.Subscription, error) {
	sub, err := s.subRepo.GetByID(subscriptionID, userID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		sub.Name = *name
	}
	if color != nil {
		sub.Color = *color
	}
	if syncEnabled != nil {
		sub.SyncEnabled = *syncEnabled
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.subRepo.Update(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Delete removes the subscription; the database cascades deletion of every
// event it imported.
func (s *SubscriptionService) Delete(subscriptionID, userID string) error {
	return s.subRepo.Delete(subscriptionID, userID)
}
