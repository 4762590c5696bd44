package ical

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"calendar-mirror/pkg/datetime"
)

// ParsedEvent is the transient result of parsing one VEVENT block. It has
// no owner yet; the sync and import layers attach ownership.
type ParsedEvent struct {
	UID         string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	RRule       string
}

// Parser turns raw iCalendar text into normalized events. It is lenient:
// unknown properties are ignored, lines without a colon are skipped and
// events without a DTSTART are dropped rather than reported as errors.
type Parser struct {
	formatter *datetime.Formatter
	handlers  map[string]propertyHandler
}

// propertyHandler applies one recognized property value to the event being
// assembled.
type propertyHandler func(ev *eventDraft, value string)

// eventDraft accumulates property values until END:VEVENT, when it is
// finalized into a ParsedEvent.
type eventDraft struct {
	uid         string
	title       string
	description string
	location    string
	rrule       string
	start       time.Time
	end         time.Time
	hasStart    bool
	hasEnd      bool
	allDay      bool
	endAllDay   bool
}

func NewParser() *Parser {
	p := &Parser{formatter: datetime.NewFormatter()}
	p.handlers = map[string]propertyHandler{
		"UID": func(ev *eventDraft, value string) {
			ev.uid = value
		},
		"SUMMARY": func(ev *eventDraft, value string) {
			ev.title = unescapeText(value)
		},
		"DESCRIPTION": func(ev *eventDraft, value string) {
			ev.description = unescapeText(value)
		},
		"LOCATION": func(ev *eventDraft, value string) {
			ev.location = unescapeText(value)
		},
		"RRULE": func(ev *eventDraft, value string) {
			ev.rrule = value
		},
		"DTSTART": func(ev *eventDraft, value string) {
			if t, allDay, ok := p.parseDateValue(value); ok {
				ev.start = t
				ev.hasStart = true
				ev.allDay = allDay
			}
		},
		"DTEND": func(ev *eventDraft, value string) {
			if t, allDay, ok := p.parseDateValue(value); ok {
				ev.end = t
				ev.hasEnd = true
				ev.endAllDay = allDay
			}
		},
	}
	return p
}

// Parse extracts every well-formed VEVENT from an iCalendar document.
func (p *Parser) Parse(text string) []ParsedEvent {
	lines := unfoldLines(text)

	var events []ParsedEvent
	var draft *eventDraft

	for _, line := range lines {
		switch {
		case line == "BEGIN:VEVENT":
			draft = &eventDraft{}
		case line == "END:VEVENT":
			if draft != nil {
				if ev, ok := p.finalize(draft); ok {
					events = append(events, ev)
				}
				draft = nil
			}
		case draft != nil:
			p.applyProperty(draft, line)
		}
	}

	return events
}

func (p *Parser) applyProperty(draft *eventDraft, line string) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return
	}

	name := line[:colon]
	value := line[colon+1:]

	// Drop any ;parameter=value suffix from the property name.
	if semi := strings.Index(name, ";"); semi >= 0 {
		name = name[:semi]
	}

	handler, ok := p.handlers[strings.ToUpper(name)]
	if !ok {
		return
	}
	handler(draft, value)
}

// finalize fills in defaults and applies the all-day end-date correction.
// Events without a usable DTSTART are dropped.
func (p *Parser) finalize(draft *eventDraft) (ParsedEvent, bool) {
	if !draft.hasStart {
		return ParsedEvent{}, false
	}

	ev := ParsedEvent{
		UID:         draft.uid,
		Title:       draft.title,
		Description: draft.description,
		Location:    draft.location,
		RRule:       draft.rrule,
		Start:       draft.start,
		AllDay:      draft.allDay,
	}

	if ev.UID == "" {
		ev.UID = synthesizeUID()
	}
	if ev.Title == "" {
		ev.Title = "Untitled Event"
	}

	switch {
	case ev.AllDay && draft.hasEnd:
		// The wire DTEND of an all-day event is exclusive: it names the
		// first day not included. The true last day is DTEND minus one day.
		lastDay := draft.end.AddDate(0, 0, -1)
		ev.End = p.formatter.EndOfDayUTC(lastDay)
	case ev.AllDay:
		ev.End = p.formatter.EndOfDayUTC(ev.Start)
	case draft.hasEnd:
		ev.End = draft.end
	default:
		ev.End = ev.Start.Add(time.Hour)
	}

	return ev, true
}

// parseDateValue interprets a DTSTART/DTEND value. An 8-digit value is an
// all-day DATE read as UTC midnight; a basic date-time with trailing Z is a
// UTC instant; without Z it is taken as wall-clock with no correction. Any
// other shape goes through the generic fallback formats.
func (p *Parser) parseDateValue(value string) (time.Time, bool, bool) {
	value = strings.TrimSpace(value)

	// Some producers leave a TZID qualifier in front of the value.
	if strings.HasPrefix(value, "TZID=") {
		if colon := strings.Index(value, ":"); colon >= 0 {
			value = value[colon+1:]
		}
	}

	if len(value) == 8 && isDigits(value) {
		t, err := time.ParseInLocation("20060102", value, time.UTC)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, true, true
	}

	if len(value) == 16 && value[8] == 'T' && value[15] == 'Z' {
		if t, err := time.Parse("20060102T150405Z", value); err == nil {
			return t.UTC(), false, true
		}
	}

	if len(value) == 15 && value[8] == 'T' {
		if t, err := time.ParseInLocation("20060102T150405", value, time.UTC); err == nil {
			return t, false, true
		}
	}

	if t, ok := p.formatter.ParseFallback(value); ok {
		return t, false, true
	}

	return time.Time{}, false, false
}

// unfoldLines joins folded logical lines: any CR/LF/CRLF break followed by a
// space or tab continues the previous line, with the leading whitespace
// dropped. Blank lines are removed.
func unfoldLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if raw == "" {
			continue
		}
		if (raw[0] == ' ' || raw[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += raw[1:]
			continue
		}
		lines = append(lines, raw)
	}
	return lines
}

// unescapeText is the exact inverse of the serializer's escaping: a single
// left-to-right scan resolving \\ \; \, and \n (or \N). Sequential
// ReplaceAll calls would misread the backslash in sequences like `\\,`.
func unescapeText(value string) string {
	if !strings.ContainsRune(value, '\\') {
		return value
	}

	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' || i+1 == len(value) {
			b.WriteByte(c)
			continue
		}
		i++
		switch value[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		case '\\', ';', ',':
			b.WriteByte(value[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(value[i])
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func synthesizeUID() string {
	return fmt.Sprintf("imported-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
