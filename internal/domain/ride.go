// Package domain contains the core data types for the ride planner.
// This package has zero external dependencies and is imported by every other
// internal package (store codecs, ridesync, service, handler).
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultRideTitle is used when a ride is created without a title.
const DefaultRideTitle = "My Ride Plan"

// TransportMode is how the ride is travelled.
type TransportMode string

const (
	TransportBike  TransportMode = "bike"
	TransportCar   TransportMode = "car"
	TransportOther TransportMode = "other"
)

// ParseTransportMode maps stored or submitted text to a TransportMode.
// Empty input yields the default, bike.
func ParseTransportMode(s string) (TransportMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bike":
		return TransportBike, nil
	case "car":
		return TransportCar, nil
	case "other":
		return TransportOther, nil
	}
	return "", fmt.Errorf("%w: unknown transport mode %q", ErrValidation, s)
}

// BudgetTier is a closed three-value scale. Older records used
// budget/mid/luxury; those are read as low/mid/high.
type BudgetTier string

const (
	BudgetLow  BudgetTier = "low"
	BudgetMid  BudgetTier = "mid"
	BudgetHigh BudgetTier = "high"
)

// ParseBudgetTier maps stored or submitted text to a BudgetTier.
// Empty input yields the default, mid.
func ParseBudgetTier(s string) (BudgetTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "budget":
		return BudgetLow, nil
	case "", "mid":
		return BudgetMid, nil
	case "high", "luxury":
		return BudgetHigh, nil
	}
	return "", fmt.Errorf("%w: unknown budget tier %q", ErrValidation, s)
}

// Status is the lifecycle state of a ride plan. New plans are always planned.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus maps stored or submitted text to a Status. "started" and
// "active" are accepted for ongoing. Empty input yields planned.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "planned":
		return StatusPlanned, nil
	case "ongoing", "started", "active":
		return StatusOngoing, nil
	case "completed", "complete":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

// PhaseNotes holds free text for before, during, and after the ride.
type PhaseNotes struct {
	Pre    string `json:"pre,omitempty"`
	During string `json:"during,omitempty"`
	Post   string `json:"post,omitempty"`
}

// Preferences are the optional planning hints captured at creation.
type Preferences struct {
	Season   string `json:"season,omitempty"`
	Food     string `json:"food,omitempty"`
	Clothing string `json:"clothing,omitempty"`
}

// TimelineUpdate is one progress note. Entries are append-only.
type TimelineUpdate struct {
	Text       string    `json:"text"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RidePlan is the root trip record.
// OwnerID and CreatedAt are set once at creation and never change.
type RidePlan struct {
	ID              string           `json:"id"`
	OwnerID         string           `json:"owner_id"`
	Title           string           `json:"title"`
	StartLocation   string           `json:"start_location"`
	EndLocation     string           `json:"end_location"`
	Stops           []string         `json:"stops"`
	TransportMode   TransportMode    `json:"transport_mode"`
	BudgetTier      BudgetTier       `json:"budget_tier"`
	Status          Status           `json:"status"`
	ScheduledStart  *LocalTime       `json:"scheduled_start,omitempty"`
	ScheduledEnd    *LocalTime       `json:"scheduled_end,omitempty"`
	Notes           PhaseNotes       `json:"notes"`
	MediaIntent     string           `json:"media_intent,omitempty"`
	Preferences     Preferences      `json:"preferences"`
	AIPlan          string           `json:"ai_plan,omitempty"`
	TimelineUpdates []TimelineUpdate `json:"timeline_updates"` // storage (chronological) order
	CreatedAt       time.Time        `json:"created_at"`
}

// Route returns start, stops, and end in travel order.
func (p RidePlan) Route() []string {
	route := make([]string, 0, len(p.Stops)+2)
	route = append(route, p.StartLocation)
	route = append(route, p.Stops...)
	return append(route, p.EndLocation)
}

// TimelineNewestFirst returns the timeline in display order. The stored
// slice is left untouched.
func (p RidePlan) TimelineNewestFirst() []TimelineUpdate {
	out := make([]TimelineUpdate, len(p.TimelineUpdates))
	for i, u := range p.TimelineUpdates {
		out[len(out)-1-i] = u
	}
	return out
}

// Draft copies the editable fields of p.
func (p RidePlan) Draft() RideDraft {
	return RideDraft{
		Title:          p.Title,
		StartLocation:  p.StartLocation,
		EndLocation:    p.EndLocation,
		Stops:          append([]string(nil), p.Stops...),
		TransportMode:  p.TransportMode,
		BudgetTier:     p.BudgetTier,
		Status:         p.Status,
		ScheduledStart: copyLocalTime(p.ScheduledStart),
		ScheduledEnd:   copyLocalTime(p.ScheduledEnd),
		Notes:          p.Notes,
		MediaIntent:    p.MediaIntent,
		Preferences:    p.Preferences,
		AIPlan:         p.AIPlan,
	}
}

// RideDraft is the locally held, possibly unsaved copy of a ride's editable
// fields.
type RideDraft struct {
	Title          string
	StartLocation  string
	EndLocation    string
	Stops          []string
	TransportMode  TransportMode
	BudgetTier     BudgetTier
	Status         Status
	ScheduledStart *LocalTime
	ScheduledEnd   *LocalTime
	Notes          PhaseNotes
	MediaIntent    string
	Preferences    Preferences
	AIPlan         string
}

// Normalize trims text fields and drops empty stops. Enumerations are mapped
// to their canonical values, so legacy aliases and empty values never reach
// the store; unknown text is left for Validate to reject. Long-form text
// (notes, AI plan) keeps inner whitespace.
func (d RideDraft) Normalize() RideDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.StartLocation = strings.TrimSpace(d.StartLocation)
	d.EndLocation = strings.TrimSpace(d.EndLocation)
	d.Stops = CleanStops(d.Stops)
	if m, err := ParseTransportMode(string(d.TransportMode)); err == nil {
		d.TransportMode = m
	}
	if b, err := ParseBudgetTier(string(d.BudgetTier)); err == nil {
		d.BudgetTier = b
	}
	if st, err := ParseStatus(string(d.Status)); err == nil {
		d.Status = st
	}
	d.MediaIntent = strings.TrimSpace(d.MediaIntent)
	d.Preferences = Preferences{
		Season:   strings.TrimSpace(d.Preferences.Season),
		Food:     strings.TrimSpace(d.Preferences.Food),
		Clothing: strings.TrimSpace(d.Preferences.Clothing),
	}
	d.ScheduledStart = copyLocalTime(d.ScheduledStart)
	d.ScheduledEnd = copyLocalTime(d.ScheduledEnd)
	return d
}

// Validate enforces the rules for saving a ride. Call it on a normalized draft.
//   - Title, start and end location must be non-empty.
//   - Enumerations must be members of their closed sets.
//   - ScheduledEnd, if both are set, must not precede ScheduledStart.
func (d RideDraft) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if d.StartLocation == "" || d.EndLocation == "" {
		return fmt.Errorf("%w: start and end are required", ErrValidation)
	}
	if _, err := ParseTransportMode(string(d.TransportMode)); err != nil {
		return err
	}
	if _, err := ParseBudgetTier(string(d.BudgetTier)); err != nil {
		return err
	}
	if _, err := ParseStatus(string(d.Status)); err != nil {
		return err
	}
	if d.ScheduledStart != nil && d.ScheduledEnd != nil && d.ScheduledEnd.Before(*d.ScheduledStart) {
		return fmt.Errorf("%w: end must not be before start", ErrValidation)
	}
	return nil
}

// CleanStops trims every stop and removes the empty ones, keeping order.
// The result is never nil.
func CleanStops(stops []string) []string {
	out := make([]string, 0, len(stops))
	for _, s := range stops {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func copyLocalTime(l *LocalTime) *LocalTime {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
