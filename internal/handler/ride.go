package handler

import (
	"fmt"
	"net/http"

	"github.com/pkordes/rideplanner/internal/domain"
)

// CreateRide handles POST /rides.
func (s *Server) CreateRide(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var body RideRequest
	if !decodeBody(w, r, &body) {
		return
	}
	draft, err := requestToDraft(body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	created, err := s.rides.Create(r.Context(), userID, draft)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/rides/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// ListRides handles GET /rides.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListRides(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var page, limit *int
	if !queryParam(w, r, "page", &page) || !queryParam(w, r, "limit", &limit) {
		return
	}
	params := domain.NewPaginationParams(page, limit)

	plans, total, err := s.rides.List(r.Context(), userID, params)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RideList{
		Data:       plans,
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: total},
	})
}

// GetRide handles GET /rides/{id}.
func (s *Server) GetRide(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	plan, err := s.rides.Get(r.Context(), userID, rideID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// UpdateRide handles PUT /rides/{id}. The body replaces every editable field;
// an empty status keeps the current one.
func (s *Server) UpdateRide(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	var body RideRequest
	if !decodeBody(w, r, &body) {
		return
	}
	draft, err := requestToDraft(body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	updated, err := s.rides.Update(r.Context(), userID, rideID, draft)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// SetRideStatus handles PATCH /rides/{id}/status.
func (s *Server) SetRideStatus(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	var body StatusRequest
	if !decodeBody(w, r, &body) {
		return
	}
	updated, err := s.rides.SetStatus(r.Context(), userID, rideID, domain.Status(body.Status))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteRide handles DELETE /rides/{id}. Content items are removed too only
// when ?cascade=true.
func (s *Server) DeleteRide(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	var cascade *bool
	if !queryParam(w, r, "cascade", &cascade) {
		return
	}
	if err := s.rides.Delete(r.Context(), userID, rideID, cascade != nil && *cascade); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTimeline handles GET /rides/{id}/timeline. Newest first.
func (s *Server) ListTimeline(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	entries, err := s.rides.Timeline(r.Context(), userID, rideID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TimelineList{Data: entries})
}

// AppendTimeline handles POST /rides/{id}/timeline.
func (s *Server) AppendTimeline(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	var body TimelineRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.rides.AppendTimeline(r.Context(), userID, rideID, body.Text); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- mapping helpers --------------------------------------------------------

// requestToDraft converts a RideRequest into a domain.RideDraft. Malformed
// times and unknown enumeration text are validation errors.
func requestToDraft(body RideRequest) (domain.RideDraft, error) {
	d := domain.RideDraft{
		Title:         body.Title,
		StartLocation: body.StartLocation,
		EndLocation:   body.EndLocation,
		Stops:         body.Stops,
		Notes:         body.Notes,
		MediaIntent:   body.MediaIntent,
		Preferences:   body.Preferences,
		AIPlan:        body.AIPlan,
	}
	var err error
	if d.TransportMode, err = domain.ParseTransportMode(body.TransportMode); err != nil {
		return domain.RideDraft{}, err
	}
	if d.BudgetTier, err = domain.ParseBudgetTier(body.BudgetTier); err != nil {
		return domain.RideDraft{}, err
	}
	if body.Status != "" {
		if d.Status, err = domain.ParseStatus(body.Status); err != nil {
			return domain.RideDraft{}, err
		}
	}
	if d.ScheduledStart, err = domain.ParseOptionalLocalTime(body.ScheduledStart); err != nil {
		return domain.RideDraft{}, fmt.Errorf("scheduled_start: %w", err)
	}
	if d.ScheduledEnd, err = domain.ParseOptionalLocalTime(body.ScheduledEnd); err != nil {
		return domain.RideDraft{}, fmt.Errorf("scheduled_end: %w", err)
	}
	return d, nil
}
