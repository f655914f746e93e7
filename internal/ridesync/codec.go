package ridesync

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/store"
)

// RidesCollection is the collection holding ride plans.
const RidesCollection = "rides"

// Stored field names. Rides written by earlier clients use the same keys.
const (
	fOwner          = "uid"
	fTitle          = "title"
	fStart          = "start"
	fEnd            = "end"
	fStops          = "stops"
	fTransport      = "transport"
	fBudget         = "budget"
	fStatus         = "status"
	fStartDateTime  = "startDateTime"
	fEndDateTime    = "endDateTime"
	fNotes          = "notes"
	fMediaIntent    = "mediaIntent"
	fPreferences    = "preferences"
	fAIPlan         = "aiPlan"
	fTimeline       = "timelineUpdates"
	fText           = "text"
	fRecordedAt     = "recordedAt"
	fCreatedAt      = "createdAt"
	fUpdatedAt      = "updatedAt"
	fKind           = "kind"
	fCaption        = "caption"
	fURL            = "url"
	fBody           = "body"
	fNotesPre       = "pre"
	fNotesDuring    = "during"
	fNotesPost      = "post"
	fPrefSeason     = "season"
	fPrefFood       = "food"
	fPrefClothing   = "clothing"
	contentSubcoll  = "content"
	localTimePrefix = len(domain.LocalTimeLayout)
)

// RidePath is the document path of a ride.
func RidePath(rideID string) string {
	return store.Doc(RidesCollection, rideID)
}

// ContentCollection is the collection holding a ride's content items.
func ContentCollection(rideID string) string {
	return RidePath(rideID) + "/" + contentSubcoll
}

// rideFields encodes the editable fields of a normalized draft.
func rideFields(d domain.RideDraft) store.Fields {
	return store.Fields{
		fTitle:         d.Title,
		fStart:         d.StartLocation,
		fEnd:           d.EndLocation,
		fStops:         toAny(d.Stops),
		fTransport:     string(d.TransportMode),
		fBudget:        string(d.BudgetTier),
		fStatus:        string(d.Status),
		fStartDateTime: domain.FormatOptionalLocalTime(d.ScheduledStart),
		fEndDateTime:   domain.FormatOptionalLocalTime(d.ScheduledEnd),
		fNotes: map[string]any{
			fNotesPre:    d.Notes.Pre,
			fNotesDuring: d.Notes.During,
			fNotesPost:   d.Notes.Post,
		},
		fMediaIntent: d.MediaIntent,
		fPreferences: map[string]any{
			fPrefSeason:   d.Preferences.Season,
			fPrefFood:     d.Preferences.Food,
			fPrefClothing: d.Preferences.Clothing,
		},
		fAIPlan: d.AIPlan,
	}
}

// newRideFields encodes a ride being created by ownerID.
func newRideFields(ownerID string, d domain.RideDraft) store.Fields {
	f := rideFields(d)
	f[fOwner] = ownerID
	f[fTimeline] = []any{}
	f[fCreatedAt] = store.ServerTimestamp
	return f
}

func timelineEntry(text string) map[string]any {
	return map[string]any{fText: text, fRecordedAt: store.ServerTimestamp}
}

// decodeRide reads a ride snapshot. It is lenient with values written by
// older clients: unknown enumeration text is kept as-is so that it shows up
// and fails validation on the next commit instead of hiding the ride.
func decodeRide(snap store.Snapshot) domain.RidePlan {
	f := snap.Fields
	p := domain.RidePlan{
		ID:            snap.ID,
		OwnerID:       str(f[fOwner]),
		Title:         str(f[fTitle]),
		StartLocation: str(f[fStart]),
		EndLocation:   str(f[fEnd]),
		Stops:         strList(f[fStops]),
		MediaIntent:   str(f[fMediaIntent]),
		AIPlan:        str(f[fAIPlan]),
		CreatedAt:     timeOf(f[fCreatedAt]),
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = snap.CreateTime
	}

	p.TransportMode = domain.TransportMode(str(f[fTransport]))
	if m, err := domain.ParseTransportMode(str(f[fTransport])); err == nil {
		p.TransportMode = m
	}
	p.BudgetTier = domain.BudgetTier(str(f[fBudget]))
	if b, err := domain.ParseBudgetTier(str(f[fBudget])); err == nil {
		p.BudgetTier = b
	}
	p.Status = domain.Status(str(f[fStatus]))
	if s, err := domain.ParseStatus(str(f[fStatus])); err == nil {
		p.Status = s
	}

	p.ScheduledStart = localTimeOf(f[fStartDateTime])
	p.ScheduledEnd = localTimeOf(f[fEndDateTime])

	notes := mapOf(f[fNotes])
	p.Notes = domain.PhaseNotes{Pre: str(notes[fNotesPre]), During: str(notes[fNotesDuring]), Post: str(notes[fNotesPost])}
	prefs := mapOf(f[fPreferences])
	p.Preferences = domain.Preferences{Season: str(prefs[fPrefSeason]), Food: str(prefs[fPrefFood]), Clothing: str(prefs[fPrefClothing])}

	list, _ := f[fTimeline].([]any)
	p.TimelineUpdates = make([]domain.TimelineUpdate, 0, len(list))
	for _, e := range list {
		m := mapOf(e)
		p.TimelineUpdates = append(p.TimelineUpdates, domain.TimelineUpdate{Text: str(m[fText]), RecordedAt: timeOf(m[fRecordedAt])})
	}
	return p
}

// contentFields encodes a normalized content draft. The field that does not
// apply to the kind is cleared so that a kind change leaves nothing behind.
func contentFields(ownerID string, d domain.ContentDraft) store.Fields {
	return store.Fields{
		fOwner:     ownerID,
		fKind:      string(d.Kind),
		fTitle:     d.Title,
		fCaption:   d.Caption,
		fURL:       d.URL,
		fBody:      d.Body,
		fUpdatedAt: store.ServerTimestamp,
	}
}

func decodeContent(rideID string, snap store.Snapshot) (domain.ContentItem, error) {
	f := snap.Fields
	kind, err := domain.ParseContentKind(str(f[fKind]))
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("content %s: %w", snap.ID, err)
	}
	item := domain.ContentItem{
		ID:        snap.ID,
		RideID:    rideID,
		OwnerID:   str(f[fOwner]),
		Kind:      kind,
		Title:     str(f[fTitle]),
		Caption:   str(f[fCaption]),
		URL:       str(f[fURL]),
		Body:      str(f[fBody]),
		CreatedAt: timeOf(f[fCreatedAt]),
		UpdatedAt: timeOf(f[fUpdatedAt]),
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = snap.CreateTime
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = snap.UpdateTime
	}
	return item, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strList(v any) []string {
	switch x := v.(type) {
	case []string:
		return append([]string{}, x...)
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

func mapOf(v any) map[string]any {
	switch x := v.(type) {
	case map[string]any:
		return x
	case store.Fields:
		return x
	}
	return nil
}

// timeOf accepts a time.Time (memstore) or an RFC 3339 string (JSON-backed
// stores).
func timeOf(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return t
		}
	}
	return time.Time{}
}

// localTimeOf reads a scheduled time. Values carrying a zone or fractional
// seconds are cut back to the wall-clock minute.
func localTimeOf(v any) *domain.LocalTime {
	s := strings.TrimSpace(str(v))
	if lt, err := domain.ParseOptionalLocalTime(s); err == nil {
		return lt
	}
	if len(s) > localTimePrefix {
		if lt, err := domain.ParseOptionalLocalTime(s[:localTimePrefix]); err == nil {
			return lt
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
