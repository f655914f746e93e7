package handler

import (
	"time"

	"github.com/pkordes/rideplanner/internal/domain"
)

// Request and response bodies. Field names follow openapi.yaml.

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// RideRequest is the body of POST /rides and PUT /rides/{id}. Scheduled
// times use the floating "2006-01-02T15:04" form; empty means unscheduled.
type RideRequest struct {
	Title          string             `json:"title"`
	StartLocation  string             `json:"start_location"`
	EndLocation    string             `json:"end_location"`
	Stops          []string           `json:"stops"`
	TransportMode  string             `json:"transport_mode"`
	BudgetTier     string             `json:"budget_tier"`
	Status         string             `json:"status"`
	ScheduledStart string             `json:"scheduled_start"`
	ScheduledEnd   string             `json:"scheduled_end"`
	Notes          domain.PhaseNotes  `json:"notes"`
	MediaIntent    string             `json:"media_intent"`
	Preferences    domain.Preferences `json:"preferences"`
	AIPlan         string             `json:"ai_plan"`
}

type RideList struct {
	Data       []domain.RidePlan `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type TimelineRequest struct {
	Text string `json:"text"`
}

type TimelineList struct {
	Data []domain.TimelineUpdate `json:"data"`
}

type CalendarLink struct {
	URL string `json:"url"`
}

type ContentRequest struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Caption string `json:"caption"`
	URL     string `json:"url"`
	Body    string `json:"body"`
}

type ContentList struct {
	Data []domain.ContentItem `json:"data"`
}

type UploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type UploadResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}
