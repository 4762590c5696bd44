package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"calendar-mirror/internal/domain"
)

type EventRepository interface {
	Create(ev *domain.Event) error
	// UpsertImported inserts or updates one subscription-imported event
	// keyed on (source_calendar_id, source_event_uid, user_id).
	UpsertImported(ev *domain.Event) error
	// ImportedFingerprints maps every source event UID currently stored for
	// the subscription to its content fingerprint.
	ImportedFingerprints(subscriptionID, userID string) (map[string]string, error)
	// DeleteImportedByUIDs removes exactly the named imported events,
	// scoped to one subscription and owner.
	DeleteImportedByUIDs(subscriptionID, userID string, uids []string) (int, error)
	ListByUser(userID string, start, end *time.Time) ([]domain.Event, error)
	ExistsByTitleAndStart(userID, title string, start time.Time) (bool, error)
}

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `id, user_id, title, description, location, start_time, end_time,
	all_day, rrule, color, COALESCE(source_calendar_id, ''), COALESCE(source_event_uid, ''),
	fingerprint, created_at, updated_at`

func (r *eventRepository) Create(ev *domain.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	err := r.db.QueryRow(
		`INSERT INTO events (id, user_id, title, description, location, start_time, end_time,
			all_day, rrule, color, source_calendar_id, source_event_uid, fingerprint)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at, updated_at`,
		ev.ID, ev.UserID, ev.Title, ev.Description, ev.Location, ev.Start, ev.End,
		ev.AllDay, ev.RRule, ev.Color, nullable(ev.SourceCalendarID), nullable(ev.SourceEventUID), ev.Fingerprint,
	).Scan(&ev.CreatedAt, &ev.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

func (r *eventRepository) UpsertImported(ev *domain.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	_, err := r.db.Exec(
		`INSERT INTO events (id, user_id, title, description, location, start_time, end_time,
			all_day, rrule, color, source_calendar_id, source_event_uid, fingerprint)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (source_calendar_id, source_event_uid, user_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			all_day = EXCLUDED.all_day,
			rrule = EXCLUDED.rrule,
			color = EXCLUDED.color,
			fingerprint = EXCLUDED.fingerprint,
			updated_at = CURRENT_TIMESTAMP`,
		ev.ID, ev.UserID, ev.Title, ev.Description, ev.Location, ev.Start, ev.End,
		ev.AllDay, ev.RRule, ev.Color, ev.SourceCalendarID, ev.SourceEventUID, ev.Fingerprint,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert imported event: %w", err)
	}

	return nil
}

func (r *eventRepository) ImportedFingerprints(subscriptionID, userID string) (map[string]string, error) {
	rows, err := r.db.Query(
		`SELECT source_event_uid, fingerprint FROM events
		 WHERE source_calendar_id = $1 AND user_id = $2`,
		subscriptionID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get imported events: %w", err)
	}
	defer rows.Close()

	fingerprints := make(map[string]string)
	for rows.Next() {
		var uid, fingerprint string
		if err := rows.Scan(&uid, &fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan imported event: %w", err)
		}
		fingerprints[uid] = fingerprint
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating imported events: %w", err)
	}

	return fingerprints, nil
}

func (r *eventRepository) DeleteImportedByUIDs(subscriptionID, userID string, uids []string) (int, error) {
	if len(uids) == 0 {
		return 0, nil
	}

	result, err := r.db.Exec(
		`DELETE FROM events
		 WHERE source_calendar_id = $1 AND user_id = $2 AND source_event_uid = ANY($3)`,
		subscriptionID, userID, pq.Array(uids),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete imported events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

func (r *eventRepository) ListByUser(userID string, start, end *time.Time) ([]domain.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE user_id = $1"
	args := []any{userID}

	if start != nil {
		args = append(args, *start)
		query += fmt.Sprintf(" AND end_time >= $%d", len(args))
	}
	if end != nil {
		args = append(args, *end)
		query += fmt.Sprintf(" AND start_time <= $%d", len(args))
	}
	query += " ORDER BY start_time"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		err := rows.Scan(&ev.ID, &ev.UserID, &ev.Title, &ev.Description, &ev.Location,
			&ev.Start, &ev.End, &ev.AllDay, &ev.RRule, &ev.Color,
			&ev.SourceCalendarID, &ev.SourceEventUID, &ev.Fingerprint,
			&ev.CreatedAt, &ev.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

func (r *eventRepository) ExistsByTitleAndStart(userID, title string, start time.Time) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM events WHERE user_id = $1 AND title = $2 AND start_time = $3",
		userID, title, start,
	).Scan(&count)

	if err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}

	return count > 0, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
