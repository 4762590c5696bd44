package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"calendar-mirror/internal/domain"
	"calendar-mirror/internal/ical"
	"calendar-mirror/internal/repository"
	"calendar-mirror/pkg/fetchcache"
)

// syncBatchSize bounds how many subscriptions are fetched concurrently, to
// avoid hammering third-party calendar providers.
const syncBatchSize = 3

const fetchTimeout = 30 * time.Second

// SyncResult is the per-subscription outcome of one sync attempt. Failures
// are captured here instead of propagating, so one bad subscription never
// aborts a batch.
type SyncResult struct {
	SubscriptionID string `json:"subscription_id"`
	Name           string `json:"name"`
	Success        bool   `json:"success"`
	Skipped        bool   `json:"skipped"`
	Imported       int    `json:"imported"`
	Deleted        int    `json:"deleted"`
	Error          string `json:"error,omitempty"`
}

type SyncService struct {
	subRepo   repository.SubscriptionRepository
	eventRepo repository.EventRepository
	parser    *ical.Parser
	detector  *ChangeDetector
	client    *http.Client
	bodyCache *fetchcache.Cache
}

func NewSyncService(
	subRepo repository.SubscriptionRepository,
	eventRepo repository.EventRepository,
) *SyncService {
	client := &http.Client{Timeout: fetchTimeout}
	return &SyncService{
		subRepo:   subRepo,
		eventRepo: eventRepo,
		parser:    ical.NewParser(),
		detector:  NewChangeDetector(client),
		client:    client,
		bodyCache: fetchcache.New(fetchcache.DefaultTTL),
	}
}

// SyncAllForUser reconciles every enabled subscription of one user.
func (s *SyncService) SyncAllForUser(ctx context.Context, userID string) ([]SyncResult, error) {
	subs, err := s.subRepo.ListEnabled(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return s.syncBatched(ctx, subs), nil
}

// SyncAll reconciles every enabled subscription of every user; this is the
// scheduled-job entry point.
func (s *SyncService) SyncAll(ctx context.Context) ([]SyncResult, error) {
	subs, err := s.subRepo.ListEnabled("")
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return s.syncBatched(ctx, subs), nil
}

// syncBatched runs subscription syncs in fixed-size concurrent batches.
func (s *SyncService) syncBatched(ctx context.Context, subs []domain.Subscription) []SyncResult {
	results := make([]SyncResult, len(subs))

	for offset := 0; offset < len(subs); offset += syncBatchSize {
		end := offset + syncBatchSize
		if end > len(subs) {
			end = len(subs)
		}

		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = s.SyncOne(ctx, &subs[i])
			}(i)
		}
		wg.Wait()
	}

	return results
}

// SyncOne makes the stored events of one subscription exactly match the
// remote source. Sync metadata is written after every attempt, success or
// not, so repeated failures cannot wedge change detection.
func (s *SyncService) SyncOne(ctx context.Context, sub *domain.Subscription) SyncResult {
	result := SyncResult{SubscriptionID: sub.ID, Name: sub.Name}
	url := NormalizeSubscriptionURL(sub.URL)

	detection := s.detector.Check(ctx, sub, url)
	if !ShouldFetch(detection.State) {
		log.Printf("Subscription %s (%s) unchanged, skipping fetch", sub.Name, sub.ID)
		s.writeSyncMeta(sub.ID, detection.Etag, detection.LastModified)
		result.Success = true
		result.Skipped = true
		return result
	}

	body, fetched, err := s.fetchBody(ctx, url)
	if err != nil {
		log.Printf("Error fetching subscription %s (%s): %v", sub.Name, sub.ID, err)
		s.writeSyncMeta(sub.ID, sub.LastEtag, sub.LastModified)
		result.Error = err.Error()
		return result
	}

	parsed := s.parser.Parse(body)
	imported, deleted, err := s.reconcile(sub, parsed)
	if err != nil {
		log.Printf("Error reconciling subscription %s (%s): %v", sub.Name, sub.ID, err)
		s.writeSyncMeta(sub.ID, sub.LastEtag, sub.LastModified)
		result.Error = err.Error()
		return result
	}

	s.writeSyncMeta(sub.ID, fetched.etag, fetched.lastModified)

	log.Printf("Synced subscription %s (%s): %d events parsed, %d written, %d deleted",
		sub.Name, sub.ID, len(parsed), imported, deleted)

	result.Success = true
	result.Imported = imported
	result.Deleted = deleted
	return result
}

// reconcile diffs the freshly parsed events against what is stored for this
// subscription and applies exactly the upserts and deletes needed. Every
// store operation is scoped by subscription and owner, so other
// subscriptions and user-authored events are never touched.
func (s *SyncService) reconcile(sub *domain.Subscription, parsed []ical.ParsedEvent) (int, int, error) {
	existing, err := s.eventRepo.ImportedFingerprints(sub.ID, sub.UserID)
	if err != nil {
		return 0, 0, err
	}

	fresh := make(map[string]struct{}, len(parsed))
	written := 0

	for i := range parsed {
		ev := importedEvent(sub, &parsed[i])
		fresh[ev.SourceEventUID] = struct{}{}

		if fp, ok := existing[ev.SourceEventUID]; ok && fp == ev.Fingerprint {
			continue
		}

		if err := s.eventRepo.UpsertImported(ev); err != nil {
			return written, 0, err
		}
		written++
	}

	var stale []string
	for uid := range existing {
		if _, ok := fresh[uid]; !ok {
			stale = append(stale, uid)
		}
	}

	deleted, err := s.eventRepo.DeleteImportedByUIDs(sub.ID, sub.UserID, stale)
	if err != nil {
		return written, 0, err
	}

	return written, deleted, nil
}

func (s *SyncService) writeSyncMeta(subscriptionID, etag, lastModified string) {
	if err := s.subRepo.UpdateSyncMeta(subscriptionID, time.Now().UTC(), etag, lastModified); err != nil {
		log.Printf("Warning: failed to update sync metadata for %s: %v", subscriptionID, err)
	}
}

type fetchedBody struct {
	etag         string
	lastModified string
}

// fetchBody returns a calendar body with the validators that were sent with
// that exact body. A cache hit reuses the validators recorded at fetch time;
// storing a fresher probe's validators against a cached body would let a
// remote change slip past every later probe.
func (s *SyncService) fetchBody(ctx context.Context, url string) (string, fetchedBody, error) {
	if e, ok := s.bodyCache.Get(url); ok {
		return e.Body, fetchedBody{etag: e.Etag, lastModified: e.LastModified}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fetchedBody{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar, text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fetchedBody{}, fmt.Errorf("failed to fetch calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fetchedBody{}, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fetchedBody{}, fmt.Errorf("failed to read calendar body: %w", err)
	}

	body := string(raw)
	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")
	s.bodyCache.Put(url, fetchcache.Entry{Body: body, Etag: etag, LastModified: lastModified})

	return body, fetchedBody{etag: etag, lastModified: lastModified}, nil
}

// importedEvent tags a parsed event with its owning subscription and a
// content fingerprint used to short-circuit unchanged writes.
func importedEvent(sub *domain.Subscription, parsed *ical.ParsedEvent) *domain.Event {
	ev := &domain.Event{
		UserID:           sub.UserID,
		Title:            parsed.Title,
		Description:      parsed.Description,
		Location:         parsed.Location,
		Start:            parsed.Start,
		End:              parsed.End,
		AllDay:           parsed.AllDay,
		RRule:            parsed.RRule,
		Color:            sub.Color,
		SourceCalendarID: sub.ID,
		SourceEventUID:   parsed.UID,
	}
	ev.Fingerprint = eventFingerprint(ev)
	return ev
}

func eventFingerprint(ev *domain.Event) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%d|%d|%s",
		ev.Title, ev.Description, ev.Location,
		ev.Start.UnixMilli(), ev.End.UnixMilli(), ev.RRule)
	return fmt.Sprintf("%x", h.Sum64())
}
