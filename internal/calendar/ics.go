// Package calendar renders a ride's schedule as a single-event iCalendar
// document and builds the companion download name and Google Calendar link.
//
// Scheduled times are written as floating local time (no "Z" suffix, no
// TZID), matching how riders enter them. Only DTSTAMP is UTC.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/rideplanner/internal/domain"
)

const (
	// ContentType is the MIME type of the rendered document.
	ContentType = "text/calendar; charset=utf-8"
	// Extension is appended to every download name.
	Extension = ".ics"

	prodID     = "-//Ride Planner//Ride Export//EN"
	uidDomain  = "rideplanner"
	crlf       = "\r\n"
	dateTime   = "20060102T150405"
	dateOnly   = "20060102"
	routeJoint = " → "
)

// Serializer renders calendar files. The zero value reads the wall clock and
// draws a random UID nonce; tests inject both.
type Serializer struct {
	Now   func() time.Time
	Nonce func() string
}

// Serialize renders p using the serializer's clock and nonce source.
func (s Serializer) Serialize(p domain.RidePlan) string {
	nonce := uuid.NewString
	if s.Nonce != nil {
		nonce = s.Nonce
	}
	return Render(p, s.now(), nonce())
}

// GoogleLink is GoogleLink with the serializer's clock.
func (s Serializer) GoogleLink(p domain.RidePlan) string {
	return GoogleLink(p, s.now())
}

func (s Serializer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Render is the pure form of Serialize: the same plan, time, and nonce always
// produce the same bytes.
//
// The UID is "ride-<id>-<nonce>@rideplanner", so exports of one ride are
// recognisable as such while two exports never collide.
// When p has no scheduled start the event is an all-day event on now's date
// with no DTEND.
func Render(p domain.RidePlan, now time.Time, nonce string) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + eventUID(p.ID, nonce),
		"DTSTAMP:" + now.UTC().Format(dateTime) + "Z",
		"SUMMARY:" + Escape(p.Title),
	}

	if route := joinRoute(p); route != "" {
		lines = append(lines, "LOCATION:"+Escape(route))
	}
	lines = append(lines, "DESCRIPTION:"+Escape(describe(p)))

	if p.ScheduledStart != nil {
		lines = append(lines, "DTSTART:"+p.ScheduledStart.Civil().Format(dateTime))
		if p.ScheduledEnd != nil {
			lines = append(lines, "DTEND:"+p.ScheduledEnd.Civil().Format(dateTime))
		}
	} else {
		lines = append(lines, "DTSTART;VALUE=DATE:"+now.Format(dateOnly))
	}

	lines = append(lines, "END:VEVENT", "END:VCALENDAR")
	return strings.Join(lines, crlf) + crlf
}

// Escape applies the iCalendar TEXT escapes in a fixed order: backslash,
// newline, comma, semicolon. Doing the backslash first keeps the later
// escapes from being doubled. CRLF and a lone CR both count as a newline, so
// no raw line break survives into a property value.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, ";", `\;`)
	return s
}

// Filename returns the download name for a ride: whitespace runs become "_"
// and path separators are dropped.
func Filename(title string) string {
	title = strings.NewReplacer("/", " ", `\`, " ").Replace(title)
	name := strings.Join(strings.Fields(title), "_")
	if name == "" {
		name = "ride"
	}
	return name + Extension
}

func eventUID(rideID, nonce string) string {
	if rideID == "" {
		rideID = "unsaved"
	}
	return fmt.Sprintf("ride-%s-%s@%s", rideID, nonce, uidDomain)
}

func joinRoute(p domain.RidePlan) string {
	var parts []string
	for _, place := range p.Route() {
		if place = strings.TrimSpace(place); place != "" {
			parts = append(parts, place)
		}
	}
	return strings.Join(parts, routeJoint)
}

func describe(p domain.RidePlan) string {
	lines := []string{
		"Transport: " + string(p.TransportMode),
		"Budget: " + string(p.BudgetTier),
		"Status: " + string(p.Status),
	}
	if route := joinRoute(p); route != "" {
		lines = append(lines, "Route: "+route)
	}
	return strings.Join(lines, "\n")
}
