package handler

import (
	"net/http"
)

// CreateUploadURL handles POST /rides/{id}/content/upload-url. The response
// carries a presigned PUT URL valid for 15 minutes.
func (s *Server) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	var body UploadRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Filename == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "filename is required")
		return
	}

	up, err := s.uploads.UploadURL(r.Context(), userID, rideID, body.Filename, body.ContentType)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{Key: up.Key, URL: up.URL, Method: up.Method, ExpiresAt: up.ExpiresAt})
}
