package ical

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"calendar-mirror/internal/domain"
	"calendar-mirror/pkg/datetime"
)

const prodID = "-//Calendar Mirror//Calendar Feed v1.0//EN"

// uidDomain suffixes UIDs derived for events that never had one on the wire.
const uidDomain = "calendar-mirror"

// Serializer renders stored events back into a VCALENDAR document. Output
// for unchanged input is byte-stable, which the feed's cache validators rely
// on.
type Serializer struct {
	formatter *datetime.Formatter
}

func NewSerializer() *Serializer {
	return &Serializer{formatter: datetime.NewFormatter()}
}

// Serialize renders one VCALENDAR containing every given event.
func (s *Serializer) Serialize(events []domain.Event, calendarName string) string {
	var b strings.Builder

	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:"+prodID)
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, "METHOD:PUBLISH")
	writeLine(&b, "X-WR-CALNAME:"+escapeText(calendarName))
	writeLine(&b, "X-WR-TIMEZONE:UTC")
	writeLine(&b, "REFRESH-INTERVAL;VALUE=DURATION:PT1H")
	writeLine(&b, "X-PUBLISHED-TTL:PT1H")
	writeLine(&b, "BEGIN:VTIMEZONE")
	writeLine(&b, "TZID:UTC")
	writeLine(&b, "BEGIN:STANDARD")
	writeLine(&b, "DTSTART:19700101T000000")
	writeLine(&b, "TZOFFSETFROM:+0000")
	writeLine(&b, "TZOFFSETTO:+0000")
	writeLine(&b, "TZNAME:UTC")
	writeLine(&b, "END:STANDARD")
	writeLine(&b, "END:VTIMEZONE")

	for i := range events {
		s.writeEvent(&b, &events[i])
	}

	writeLine(&b, "END:VCALENDAR")
	return b.String()
}

func (s *Serializer) writeEvent(b *strings.Builder, ev *domain.Event) {
	writeLine(b, "BEGIN:VEVENT")
	writeLine(b, "UID:"+eventUID(ev))

	stamp := ev.UpdatedAt
	if stamp.IsZero() {
		stamp = ev.Start
	}
	writeLine(b, "DTSTAMP:"+formatDateTime(stamp))

	if ev.AllDay {
		writeLine(b, "DTSTART;VALUE=DATE:"+formatDate(ev.Start))
		// The internal end is the last included instant; the wire value is
		// exclusive, so add one day to recover it.
		exclusiveEnd := s.formatter.StartOfDayUTC(ev.End).AddDate(0, 0, 1)
		writeLine(b, "DTEND;VALUE=DATE:"+formatDate(exclusiveEnd))
	} else {
		writeLine(b, "DTSTART:"+formatDateTime(ev.Start))
		writeLine(b, "DTEND:"+formatDateTime(ev.End))
	}

	writeLine(b, "SUMMARY:"+escapeText(ev.Title))
	if ev.Description != "" {
		writeLine(b, "DESCRIPTION:"+escapeText(ev.Description))
	}
	if ev.Location != "" {
		writeLine(b, "LOCATION:"+escapeText(ev.Location))
	}
	if ev.RRule != "" {
		writeLine(b, "RRULE:"+ev.RRule)
	}
	writeLine(b, "END:VEVENT")
}

// eventUID returns the original source UID when the event was imported, and
// otherwise derives a stable UUID-shaped identifier from the internal id so
// repeated exports emit identical bytes.
func eventUID(ev *domain.Event) string {
	if ev.SourceEventUID != "" {
		return ev.SourceEventUID
	}

	h := hex.EncodeToString([]byte(ev.ID))
	if len(h) > 32 {
		h = h[:32]
	} else {
		h += strings.Repeat("0", 32-len(h))
	}

	return fmt.Sprintf("%s-%s-%s-%s-%s@%s", h[0:8], h[8:12], h[12:16], h[16:20], h[20:32], uidDomain)
}

// escapeText escapes backslash, semicolon, comma, then newline. The order
// matters: escaping the backslash last would corrupt the sequences the
// earlier steps produced.
func escapeText(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, ";", `\;`)
	value = strings.ReplaceAll(value, ",", `\,`)
	value = strings.ReplaceAll(value, "\n", `\n`)
	return value
}

func formatDate(t time.Time) string {
	return t.UTC().Format("20060102")
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\r\n")
}
