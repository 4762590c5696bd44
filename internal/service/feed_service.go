package service

import (
	"fmt"
	"hash/fnv"
	"log"
	"sort"
	"time"

	"calendar-mirror/internal/domain"
	"calendar-mirror/internal/ical"
	"calendar-mirror/internal/repository"
	"calendar-mirror/pkg/security"
)

const feedCalendarName = "My Calendar"

// defaultEventColor is applied to events imported from an uploaded file.
const defaultEventColor = "#4285f4"

type FeedService struct {
	eventRepo  repository.EventRepository
	tokenRepo  repository.FeedTokenRepository
	serializer *ical.Serializer
	parser     *ical.Parser
	tokenGen   *security.TokenGenerator
}

func NewFeedService(
	eventRepo repository.EventRepository,
	tokenRepo repository.FeedTokenRepository,
) *FeedService {
	return &FeedService{
		eventRepo:  eventRepo,
		tokenRepo:  tokenRepo,
		serializer: ical.NewSerializer(),
		parser:     ical.NewParser(),
		tokenGen:   security.NewTokenGenerator(),
	}
}

// Feed is a rendered calendar document together with its cache validators.
type Feed struct {
	Body         string
	ETag         string
	LastModified time.Time
	Name         string
}

// BuildFeed loads the user's events and renders the outward feed.
func (s *FeedService) BuildFeed(userID string) (*Feed, error) {
	events, err := s.eventRepo.ListByUser(userID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	return &Feed{
		Body:         s.serializer.Serialize(events, feedCalendarName),
		ETag:         ComputeETag(events),
		LastModified: LastModified(events, time.Now().UTC()),
		Name:         feedCalendarName,
	}, nil
}

// ComputeETag fingerprints an event set. The projection tuples are sorted
// before hashing so fetch order can never affect cache validity.
func ComputeETag(events []domain.Event) string {
	tuples := make([]string, len(events))
	for i, ev := range events {
		tuples[i] = fmt.Sprintf("%s|%d|%d|%s", ev.ID, ev.Start.UnixMilli(), ev.End.UnixMilli(), ev.Title)
	}
	sort.Strings(tuples)

	h := fnv.New64a()
	for _, tuple := range tuples {
		h.Write([]byte(tuple))
		h.Write([]byte{'\n'})
	}

	return fmt.Sprintf("%q", fmt.Sprintf("%x", h.Sum64()))
}

// LastModified approximates a modification time as the latest event instant,
// floored to no earlier than one day before now. True modification times are
// not tracked, so this is a proxy good enough for conditional requests.
func LastModified(events []domain.Event, now time.Time) time.Time {
	latest := now.Add(-24 * time.Hour)
	for _, ev := range events {
		if ev.Start.After(latest) {
			latest = ev.Start
		}
		if ev.End.After(latest) {
			latest = ev.End
		}
	}
	return latest
}

// ResolveToken looks up a feed token and checks that it is still usable.
func (s *FeedService) ResolveToken(token string) (*domain.FeedToken, error) {
	ft, err := s.tokenRepo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	// The unique-column lookup already matched; the constant-time compare
	// keeps the final acceptance independent of the secret's content.
	if !security.Equal(ft.Token, token) {
		return nil, domain.ErrFeedTokenNotFound
	}
	if err := ft.Usable(time.Now()); err != nil {
		return nil, err
	}
	return ft, nil
}

// RecordAccess counts exactly one access against the token.
func (s *FeedService) RecordAccess(tokenID string) {
	if err := s.tokenRepo.RecordAccess(tokenID); err != nil {
		log.Printf("Warning: failed to record feed access for token %s: %v", tokenID, err)
	}
}

// CreateToken issues a new feed token for the user.
func (s *FeedService) CreateToken(userID string, expiresAt *time.Time) (*domain.FeedToken, error) {
	secret, err := s.tokenGen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate feed token: %w", err)
	}

	token := &domain.FeedToken{
		UserID:    userID,
		Token:     secret,
		IsActive:  true,
		ExpiresAt: expiresAt,
	}
	if err := s.tokenRepo.Create(token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *FeedService) ListTokens(userID string) ([]domain.FeedToken, error) {
	tokens, err := s.tokenRepo.GetAllByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed tokens: %w", err)
	}
	return tokens, nil
}

func (s *FeedService) DeactivateToken(tokenID, userID string) error {
	return s.tokenRepo.Deactivate(tokenID, userID)
}

// ExportCalendar renders the user's events, optionally restricted to a
// range, as a standalone document.
func (s *FeedService) ExportCalendar(userID string, start, end *time.Time) (string, error) {
	events, err := s.eventRepo.ListByUser(userID, start, end)
	if err != nil {
		return "", fmt.Errorf("failed to load events: %w", err)
	}
	return s.serializer.Serialize(events, feedCalendarName), nil
}

// ImportCalendar parses raw calendar text and stores its events as
// user-authored. Events identical in title and start to an existing one are
// skipped rather than duplicated.
func (s *FeedService) ImportCalendar(userID, text string) (int, int, error) {
	parsed := s.parser.Parse(text)

	imported := 0
	skipped := 0

	for i := range parsed {
		ev := &domain.Event{
			UserID:      userID,
			Title:       parsed[i].Title,
			Description: parsed[i].Description,
			Location:    parsed[i].Location,
			Start:       parsed[i].Start,
			End:         parsed[i].End,
			AllDay:      parsed[i].AllDay,
			RRule:       parsed[i].RRule,
			Color:       defaultEventColor,
		}
		// The parser is lenient; a file can still carry an event with its
		// end before its start. Skip those like any other unusable entry.
		if err := ev.Validate(); err != nil {
			skipped++
			continue
		}

		exists, err := s.eventRepo.ExistsByTitleAndStart(userID, ev.Title, ev.Start)
		if err != nil {
			return imported, skipped, err
		}
		if exists {
			skipped++
			continue
		}

		if err := s.eventRepo.Create(ev); err != nil {
			return imported, skipped, err
		}
		imported++
	}

	log.Printf("Imported calendar for user %s: %d new, %d skipped", userID, imported, skipped)
	return imported, skipped, nil
}
