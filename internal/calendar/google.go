package calendar

import (
	"net/url"
	"strings"
	"time"

	"github.com/pkordes/rideplanner/internal/domain"
)

const googleRenderURL = "https://calendar.google.com/calendar/render"

// GoogleLink returns a "create event" link for Google Calendar pre-filled
// with the ride. Times stay floating local, so Google interprets them in the
// viewer's calendar zone.
//
// Without a start the link is for an all-day event on now's date. Without an
// end the event lasts one hour.
func GoogleLink(p domain.RidePlan, now time.Time) string {
	var dates string
	switch {
	case p.ScheduledStart == nil:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		dates = day.Format(dateOnly) + "/" + day.AddDate(0, 0, 1).Format(dateOnly)
	default:
		start := p.ScheduledStart.Civil()
		end := start.Add(time.Hour)
		if p.ScheduledEnd != nil {
			end = p.ScheduledEnd.Civil()
		}
		dates = start.Format(dateTime) + "/" + end.Format(dateTime)
	}

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", singleLine(p.Title))
	q.Set("dates", dates)
	q.Set("details", describe(p))
	q.Set("location", joinRoute(p))
	return googleRenderURL + "?" + q.Encode()
}

// singleLine joins the lines of s with spaces; an event title field holds
// one line.
func singleLine(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' }), " ")
}
