package ical

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"calendar-mirror/internal/domain"
)

func timedEvent() domain.Event {
	return domain.Event{
		ID:          "11111111-2222-3333-4444-555555555555",
		UserID:      "user-1",
		Title:       "Standup",
		Description: "Daily sync\nwith the team, all hands",
		Location:    "Room 101, Building A",
		Start:       time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC),
		Color:       "#4285f4",
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	original := timedEvent()

	body := NewSerializer().Serialize([]domain.Event{original}, "Test Calendar")
	parsed := NewParser().Parse(body)
	if len(parsed) != 1 {
		t.Fatalf("expected 1 event after round trip, got %d", len(parsed))
	}

	got := parsed[0]
	if got.Title != original.Title {
		t.Fatalf("title changed in round trip: %q != %q", got.Title, original.Title)
	}
	if got.Description != original.Description {
		t.Fatalf("description changed in round trip: %q != %q", got.Description, original.Description)
	}
	if got.Location != original.Location {
		t.Fatalf("location changed in round trip: %q != %q", got.Location, original.Location)
	}
	if !got.Start.Equal(original.Start) || !got.End.Equal(original.End) {
		t.Fatalf("times changed in round trip: %v-%v != %v-%v",
			got.Start, got.End, original.Start, original.End)
	}
}

func TestSerializeRoundTripEscapedText(t *testing.T) {
	original := timedEvent()
	original.Title = `Sync, planning; review \ retro`
	original.Description = "agenda:\nitem one; item two, item three"
	original.Location = `Desk 4; floor 2\annex`

	body := NewSerializer().Serialize([]domain.Event{original}, "Test Calendar")
	parsed := NewParser().Parse(body)
	if len(parsed) != 1 {
		t.Fatalf("expected 1 event after round trip, got %d", len(parsed))
	}

	got := parsed[0]
	if got.Title != original.Title {
		t.Fatalf("title changed in round trip: %q != %q", got.Title, original.Title)
	}
	if got.Description != original.Description {
		t.Fatalf("description changed in round trip: %q != %q", got.Description, original.Description)
	}
	if got.Location != original.Location {
		t.Fatalf("location changed in round trip: %q != %q", got.Location, original.Location)
	}
}

func TestSerializeAllDayInverseCorrection(t *testing.T) {
	ev := domain.Event{
		ID:     "evt-1",
		UserID: "user-1",
		Title:  "Conference",
		Start:  time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 1, 17, 23, 59, 59, 999000000, time.UTC),
		AllDay: true,
	}

	body := NewSerializer().Serialize([]domain.Event{ev}, "Test Calendar")
	if !strings.Contains(body, "DTSTART;VALUE=DATE:20250115\r\n") {
		t.Fatalf("missing all-day DTSTART, got:\n%s", body)
	}
	// The stored end is the last included instant; the wire value is the
	// first excluded day.
	if !strings.Contains(body, "DTEND;VALUE=DATE:20250118\r\n") {
		t.Fatalf("missing exclusive all-day DTEND, got:\n%s", body)
	}

	parsed := NewParser().Parse(body)
	if len(parsed) != 1 {
		t.Fatalf("expected 1 event, got %d", len(parsed))
	}
	if !parsed[0].End.Equal(ev.End) {
		t.Fatalf("all-day end not preserved through round trip: %v != %v", parsed[0].End, ev.End)
	}
}

func TestSerializeEscaping(t *testing.T) {
	ev := timedEvent()
	ev.Title = `semi; comma, back\slash`

	body := NewSerializer().Serialize([]domain.Event{ev}, "Test Calendar")
	if !strings.Contains(body, `SUMMARY:semi\; comma\, back\\slash`) {
		t.Fatalf("unexpected escaping, got:\n%s", body)
	}
}

func TestSerializeDeterministicUID(t *testing.T) {
	ev := timedEvent()
	ev.SourceEventUID = ""

	s := NewSerializer()
	first := s.Serialize([]domain.Event{ev}, "Test Calendar")
	second := s.Serialize([]domain.Event{ev}, "Test Calendar")
	if first != second {
		t.Fatalf("repeated serialization of unchanged data is not byte-stable")
	}

	uid := eventUID(&ev)
	if !strings.HasSuffix(uid, "@"+uidDomain) {
		t.Fatalf("derived UID missing domain suffix: %q", uid)
	}
	// 32 hex digits in UUID shape plus the suffix.
	bare := strings.TrimSuffix(uid, "@"+uidDomain)
	if len(bare) != 36 || strings.Count(bare, "-") != 4 {
		t.Fatalf("derived UID not UUID-shaped: %q", bare)
	}
}

func TestSerializeSourceUIDPassThrough(t *testing.T) {
	ev := timedEvent()
	ev.SourceEventUID = "remote-uid-42"

	body := NewSerializer().Serialize([]domain.Event{ev}, "Test Calendar")
	if !strings.Contains(body, "UID:remote-uid-42\r\n") {
		t.Fatalf("expected source UID to pass through, got:\n%s", body)
	}
}

func TestSerializeRRuleVerbatim(t *testing.T) {
	ev := timedEvent()
	ev.RRule = "FREQ=WEEKLY;BYDAY=MO,WE,FR"

	body := NewSerializer().Serialize([]domain.Event{ev}, "Test Calendar")
	if !strings.Contains(body, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR\r\n") {
		t.Fatalf("expected verbatim RRULE, got:\n%s", body)
	}
}

// The output must also be readable by an independent iCalendar
// implementation, not just our own parser.
func TestSerializeValidAgainstExternalParser(t *testing.T) {
	events := []domain.Event{timedEvent()}
	allDay := domain.Event{
		ID:     "evt-2",
		UserID: "user-1",
		Title:  "Holiday",
		Start:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 3, 1, 23, 59, 59, 999000000, time.UTC),
		AllDay: true,
	}
	events = append(events, allDay)

	body := NewSerializer().Serialize(events, "Test Calendar")

	cal, err := ics.ParseCalendar(strings.NewReader(body))
	if err != nil {
		t.Fatalf("external parser rejected output: %v", err)
	}
	if len(cal.Events()) != 2 {
		t.Fatalf("external parser found %d events, want 2", len(cal.Events()))
	}

	first := cal.Events()[0]
	summary := first.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || summary.Value != "Standup" {
		t.Fatalf("external parser read unexpected summary: %+v", summary)
	}
	start, err := first.GetStartAt()
	if err != nil {
		t.Fatalf("external parser could not read DTSTART: %v", err)
	}
	if !start.Equal(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("external parser read unexpected start: %v", start)
	}
}
