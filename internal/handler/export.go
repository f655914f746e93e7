package handler

import (
	"mime"
	"net/http"

	"github.com/pkordes/rideplanner/internal/calendar"
)

// ExportCalendar handles GET /rides/{id}/calendar.ics.
// The file is sent as an attachment named after the ride title.
func (s *Server) ExportCalendar(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	f, err := s.rides.ExportCalendar(r.Context(), userID, rideID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", calendar.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(f.Body))
}

// GetCalendarLink handles GET /rides/{id}/calendar-link.
func (s *Server) GetCalendarLink(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	link, err := s.rides.GoogleCalendarLink(r.Context(), userID, rideID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CalendarLink{URL: link})
}
