package domain

import (
	"fmt"
	"strings"
	"time"
)

// ContentKind is the type of attachment on a ride.
type ContentKind string

const (
	ContentPhoto ContentKind = "photo"
	ContentVideo ContentKind = "video"
	ContentBlog  ContentKind = "blog"
)

// NeedsURL reports whether items of this kind link to external media.
func (k ContentKind) NeedsURL() bool {
	return k == ContentPhoto || k == ContentVideo
}

// ParseContentKind maps text to a ContentKind.
func ParseContentKind(s string) (ContentKind, error) {
	switch k := ContentKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ContentPhoto, ContentVideo, ContentBlog:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown content kind %q", ErrValidation, s)
}

// ContentItem is a photo, video, or blog entry attached to one ride.
// URL is set for photo/video, Body for blog. Caption is always stored.
type ContentItem struct {
	ID        string      `json:"id"`
	RideID    string      `json:"ride_id"`
	OwnerID   string      `json:"owner_id"`
	Kind      ContentKind `json:"kind"`
	Title     string      `json:"title"`
	Caption   string      `json:"caption"`
	URL       string      `json:"url,omitempty"`
	Body      string      `json:"body,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Draft copies the editable fields of c.
func (c ContentItem) Draft() ContentDraft {
	return ContentDraft{Kind: c.Kind, Title: c.Title, Caption: c.Caption, URL: c.URL, Body: c.Body}
}

// ContentDraft holds the editable fields of a content item.
type ContentDraft struct {
	Kind    ContentKind
	Title   string
	Caption string
	URL     string
	Body    string
}

// Normalize canonicalizes the kind, trims the single-line fields and clears
// the field that does not apply to the kind. Blog bodies are kept verbatim.
// An unknown kind is left as given for Validate to reject.
func (d ContentDraft) Normalize() ContentDraft {
	if k, err := ParseContentKind(string(d.Kind)); err == nil {
		d.Kind = k
	}
	d.Title = strings.TrimSpace(d.Title)
	d.Caption = strings.TrimSpace(d.Caption)
	d.URL = strings.TrimSpace(d.URL)
	if d.Kind == ContentBlog {
		d.URL = ""
	} else {
		d.Body = ""
	}
	return d
}

// Validate checks a normalized draft.
//   - Kind must be photo, video, or blog.
//   - Title must be non-empty.
//   - Photo and video need a URL.
func (d ContentDraft) Validate() error {
	kind, err := ParseContentKind(string(d.Kind))
	if err != nil {
		return err
	}
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if kind.NeedsURL() && strings.TrimSpace(d.URL) == "" {
		return fmt.Errorf("%w: url is required for %s", ErrValidation, kind)
	}
	return nil
}
