package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/handler"
	"github.com/pkordes/rideplanner/internal/identity"
	"github.com/pkordes/rideplanner/internal/middleware"
	"github.com/pkordes/rideplanner/internal/service"
)

// mockRideServicer is a test double for handler.RideServicer.
// Set only the method fields your test needs.
type mockRideServicer struct {
	create         func(ctx context.Context, userID string, d domain.RideDraft) (domain.RidePlan, error)
	list           func(ctx context.Context, userID string, p domain.PaginationParams) ([]domain.RidePlan, int, error)
	get            func(ctx context.Context, userID, rideID string) (domain.RidePlan, error)
	update         func(ctx context.Context, userID, rideID string, d domain.RideDraft) (domain.RidePlan, error)
	setStatus      func(ctx context.Context, userID, rideID string, s domain.Status) (domain.RidePlan, error)
	appendTimeline func(ctx context.Context, userID, rideID, text string) error
	timeline       func(ctx context.Context, userID, rideID string) ([]domain.TimelineUpdate, error)
	delete         func(ctx context.Context, userID, rideID string, cascade bool) error
	exportCalendar func(ctx context.Context, userID, rideID string) (service.CalendarFile, error)
	calendarLink   func(ctx context.Context, userID, rideID string) (string, error)
}

func (m *mockRideServicer) Create(ctx context.Context, userID string, d domain.RideDraft) (domain.RidePlan, error) {
	return m.create(ctx, userID, d)
}
func (m *mockRideServicer) List(ctx context.Context, userID string, p domain.PaginationParams) ([]domain.RidePlan, int, error) {
	return m.list(ctx, userID, p)
}
func (m *mockRideServicer) Get(ctx context.Context, userID, rideID string) (domain.RidePlan, error) {
	return m.get(ctx, userID, rideID)
}
func (m *mockRideServicer) Update(ctx context.Context, userID, rideID string, d domain.RideDraft) (domain.RidePlan, error) {
	return m.update(ctx, userID, rideID, d)
}
func (m *mockRideServicer) SetStatus(ctx context.Context, userID, rideID string, s domain.Status) (domain.RidePlan, error) {
	return m.setStatus(ctx, userID, rideID, s)
}
func (m *mockRideServicer) AppendTimeline(ctx context.Context, userID, rideID, text string) error {
	return m.appendTimeline(ctx, userID, rideID, text)
}
func (m *mockRideServicer) Timeline(ctx context.Context, userID, rideID string) ([]domain.TimelineUpdate, error) {
	return m.timeline(ctx, userID, rideID)
}
func (m *mockRideServicer) Delete(ctx context.Context, userID, rideID string, cascade bool) error {
	return m.delete(ctx, userID, rideID, cascade)
}
func (m *mockRideServicer) ExportCalendar(ctx context.Context, userID, rideID string) (service.CalendarFile, error) {
	return m.exportCalendar(ctx, userID, rideID)
}
func (m *mockRideServicer) GoogleCalendarLink(ctx context.Context, userID, rideID string) (string, error) {
	return m.calendarLink(ctx, userID, rideID)
}

// compile-time check: mockRideServicer must satisfy handler.RideServicer.
var _ handler.RideServicer = (*mockRideServicer)(nil)

// mockContentServicer is a test double for handler.ContentServicer.
type mockContentServicer struct {
	list   func(ctx context.Context, userID, rideID string) ([]domain.ContentItem, error)
	create func(ctx context.Context, userID, rideID string, d domain.ContentDraft) (domain.ContentItem, error)
	update func(ctx context.Context, userID, rideID, contentID string, d domain.ContentDraft) (domain.ContentItem, error)
	delete func(ctx context.Context, userID, rideID, contentID string) error
}

func (m *mockContentServicer) List(ctx context.Context, userID, rideID string) ([]domain.ContentItem, error) {
	return m.list(ctx, userID, rideID)
}
func (m *mockContentServicer) Create(ctx context.Context, userID, rideID string, d domain.ContentDraft) (domain.ContentItem, error) {
	return m.create(ctx, userID, rideID, d)
}
func (m *mockContentServicer) Update(ctx context.Context, userID, rideID, contentID string, d domain.ContentDraft) (domain.ContentItem, error) {
	return m.update(ctx, userID, rideID, contentID, d)
}
func (m *mockContentServicer) Delete(ctx context.Context, userID, rideID, contentID string) error {
	return m.delete(ctx, userID, rideID, contentID)
}

var _ handler.ContentServicer = (*mockContentServicer)(nil)

// mockUploadServicer is a test double for handler.UploadServicer.
type mockUploadServicer struct {
	uploadURL func(ctx context.Context, userID, rideID, filename, contentType string) (service.Upload, error)
}

func (m *mockUploadServicer) UploadURL(ctx context.Context, userID, rideID, filename, contentType string) (service.Upload, error) {
	return m.uploadURL(ctx, userID, rideID, filename, contentType)
}

var _ handler.UploadServicer = (*mockUploadServicer)(nil)

// ---- helpers ---------------------------------------------------------------

// tokenIsUser treats the bearer token itself as the user id.
type tokenIsUser struct{}

func (tokenIsUser) Verify(token string) (identity.User, error) { return identity.User{ID: token}, nil }

type deps struct {
	rides    *mockRideServicer
	contents *mockContentServicer
	uploads  *mockUploadServicer
}

// newHTTPHandler wires a Server with the given mocks into the router behind
// the bearer auth middleware, as main.go does in production.
func newHTTPHandler(d deps) http.Handler {
	if d.rides == nil {
		d.rides = &mockRideServicer{}
	}
	if d.contents == nil {
		d.contents = &mockContentServicer{}
	}
	if d.uploads == nil {
		d.uploads = &mockUploadServicer{}
	}
	srv := handler.NewServer(d.rides, d.contents, d.uploads, []byte("openapi: 3.0.3\n"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return handler.Handler(srv, middleware.NewBearerAuth(tokenIsUser{}, slog.Default()))
}

// do sends a request as user (no Authorization header when user is empty).
func do(t *testing.T, h http.Handler, method, target, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}
