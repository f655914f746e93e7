// Package handler implements the HTTP handlers for the ride planner API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, ride.go, content.go, ...) but all share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/service"
)

// RideServicer defines the ride operations the handlers depend on.
// Defined here, in the consumer package, so handler tests can inject a mock
// without a store.
type RideServicer interface {
	Create(ctx context.Context, userID string, draft domain.RideDraft) (domain.RidePlan, error)
	List(ctx context.Context, userID string, p domain.PaginationParams) ([]domain.RidePlan, int, error)
	Get(ctx context.Context, userID, rideID string) (domain.RidePlan, error)
	Update(ctx context.Context, userID, rideID string, draft domain.RideDraft) (domain.RidePlan, error)
	SetStatus(ctx context.Context, userID, rideID string, status domain.Status) (domain.RidePlan, error)
	AppendTimeline(ctx context.Context, userID, rideID, text string) error
	Timeline(ctx context.Context, userID, rideID string) ([]domain.TimelineUpdate, error)
	Delete(ctx context.Context, userID, rideID string, cascade bool) error
	ExportCalendar(ctx context.Context, userID, rideID string) (service.CalendarFile, error)
	GoogleCalendarLink(ctx context.Context, userID, rideID string) (string, error)
}

// ContentServicer defines the content item operations.
type ContentServicer interface {
	List(ctx context.Context, userID, rideID string) ([]domain.ContentItem, error)
	Create(ctx context.Context, userID, rideID string, draft domain.ContentDraft) (domain.ContentItem, error)
	Update(ctx context.Context, userID, rideID, contentID string, draft domain.ContentDraft) (domain.ContentItem, error)
	Delete(ctx context.Context, userID, rideID, contentID string) error
}

// UploadServicer hands out presigned media upload URLs.
type UploadServicer interface {
	UploadURL(ctx context.Context, userID, rideID, filename, contentType string) (service.Upload, error)
}

// Server holds the handler dependencies.
type Server struct {
	rides    RideServicer
	contents ContentServicer
	uploads  UploadServicer
	openAPI  []byte
	log      *slog.Logger
}

// NewServer constructs the Server with all its dependencies. openAPI is the
// document served at /openapi.yaml.
func NewServer(rides RideServicer, contents ContentServicer, uploads UploadServicer, openAPI []byte, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{rides: rides, contents: contents, uploads: uploads, openAPI: openAPI, log: log}
}

// Handler returns the API router. authn guards every /rides route; health
// and the OpenAPI document stay public.
func Handler(s *Server, authn func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/rides", func(r chi.Router) {
		if authn != nil {
			r.Use(authn)
		}
		r.Post("/", s.CreateRide)
		r.Get("/", s.ListRides)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetRide)
			r.Put("/", s.UpdateRide)
			r.Delete("/", s.DeleteRide)
			r.Patch("/status", s.SetRideStatus)
			r.Get("/timeline", s.ListTimeline)
			r.Post("/timeline", s.AppendTimeline)
			r.Get("/calendar.ics", s.ExportCalendar)
			r.Get("/calendar-link", s.GetCalendarLink)
			r.Get("/content", s.ListContent)
			r.Post("/content", s.CreateContent)
			r.Post("/content/upload-url", s.CreateUploadURL)
			r.Put("/content/{contentId}", s.UpdateContent)
			r.Delete("/content/{contentId}", s.DeleteContent)
		})
	})
	return r
}
