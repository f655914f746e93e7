package handler

import (
	"net/http"

	"github.com/pkordes/rideplanner/internal/domain"
)

// ListContent handles GET /rides/{id}/content. Newest first.
func (s *Server) ListContent(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	items, err := s.contents.List(r.Context(), userID, rideID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ContentList{Data: items})
}

// CreateContent handles POST /rides/{id}/content.
func (s *Server) CreateContent(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	var body ContentRequest
	if !decodeBody(w, r, &body) {
		return
	}
	draft, err := requestToContentDraft(body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	item, err := s.contents.Create(r.Context(), userID, rideID, draft)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/rides/"+rideID+"/content/"+item.ID)
	writeJSON(w, http.StatusCreated, item)
}

// UpdateContent handles PUT /rides/{id}/content/{contentId}.
func (s *Server) UpdateContent(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	contentID, ok := pathParam(w, r, "contentId")
	if !ok {
		return
	}
	var body ContentRequest
	if !decodeBody(w, r, &body) {
		return
	}
	draft, err := requestToContentDraft(body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	item, err := s.contents.Update(r.Context(), userID, rideID, contentID, draft)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteContent handles DELETE /rides/{id}/content/{contentId}.
func (s *Server) DeleteContent(w http.ResponseWriter, r *http.Request) {
	userID, rideID, ok := rideParams(w, r)
	if !ok {
		return
	}
	contentID, ok := pathParam(w, r, "contentId")
	if !ok {
		return
	}
	if err := s.contents.Delete(r.Context(), userID, rideID, contentID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requestToContentDraft(body ContentRequest) (domain.ContentDraft, error) {
	kind, err := domain.ParseContentKind(body.Kind)
	if err != nil {
		return domain.ContentDraft{}, err
	}
	return domain.ContentDraft{
		Kind:    kind,
		Title:   body.Title,
		Caption: body.Caption,
		URL:     body.URL,
		Body:    body.Body,
	}, nil
}
