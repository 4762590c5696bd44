package domain

import "time"

// Event is a calendar event as persisted. Events imported from a
// subscription carry SourceCalendarID and SourceEventUID; user-authored
// events leave both empty.
//
// For all-day events Start is always UTC midnight of the first day and End
// is always 23:59:59.999 UTC of the last (inclusive) day, regardless of the
// exclusive end-date convention used on the wire.
type Event struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Location         string    `json:"location,omitempty"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	AllDay           bool      `json:"all_day"`
	RRule            string    `json:"rrule,omitempty"`
	Color            string    `json:"color"`
	SourceCalendarID string    `json:"source_calendar_id,omitempty"`
	SourceEventUID   string    `json:"source_event_uid,omitempty"`
	Fingerprint      string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (e *Event) Validate() error {
	if e.Title == "" {
		return ErrInvalidEventTitle
	}
	if e.UserID == "" {
		return ErrInvalidUserID
	}
	if e.End.Before(e.Start) {
		return ErrInvalidEventTime
	}
	return nil
}

// Imported reports whether the event was mirrored from a subscription.
func (e *Event) Imported() bool {
	return e.SourceCalendarID != ""
}
