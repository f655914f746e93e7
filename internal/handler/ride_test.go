package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/handler"
	"github.com/pkordes/rideplanner/internal/service"
)

// storeRejection stands in for a store error that the sync layer has
// classified as a failed write.
type storeRejection struct{ msg string }

func (e storeRejection) Error() string        { return e.msg }
func (e storeRejection) Is(target error) bool { return target == domain.ErrWriteFailed }

func samplePlan(id string) domain.RidePlan {
	return domain.RidePlan{
		ID:            id,
		OwnerID:       "u1",
		Title:         "Delhi to Manali",
		StartLocation: "Delhi",
		EndLocation:   "Manali",
		Stops:         []string{"Chandigarh"},
		TransportMode: domain.TransportBike,
		BudgetTier:    domain.BudgetMid,
		Status:        domain.StatusPlanned,
		CreatedAt:     time.Date(2026, 1, 20, 15, 4, 5, 0, time.UTC),
	}
}

func TestCreateRide_Created(t *testing.T) {
	var gotUser string
	var gotDraft domain.RideDraft
	rides := &mockRideServicer{
		create: func(_ context.Context, userID string, d domain.RideDraft) (domain.RidePlan, error) {
			gotUser, gotDraft = userID, d
			return samplePlan("r1"), nil
		},
	}
	h := newHTTPHandler(deps{rides: rides})

	rec := do(t, h, http.MethodPost, "/rides", "u1", handler.RideRequest{
		Title:          "Delhi to Manali",
		StartLocation:  "Delhi",
		EndLocation:    "Manali",
		Stops:          []string{"Chandigarh", ""},
		TransportMode:  "car",
		BudgetTier:     "luxury",
		ScheduledStart: "2026-02-10T06:00",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/rides/r1", rec.Header().Get("Location"))
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, domain.TransportCar, gotDraft.TransportMode)
	assert.Equal(t, domain.BudgetHigh, gotDraft.BudgetTier)
	assert.Empty(t, gotDraft.Status)
	require.NotNil(t, gotDraft.ScheduledStart)
	assert.Equal(t, "2026-02-10T06:00", gotDraft.ScheduledStart.String())
	assert.Nil(t, gotDraft.ScheduledEnd)

	var got domain.RidePlan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "r1", got.ID)
}

func TestCreateRide_BadInput(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "empty body", body: "", wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "malformed json", body: "{", wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "unknown transport", body: `{"title":"t","transport_mode":"boat"}`, wantCode: http.StatusUnprocessableEntity, wantErr: "validation_error"},
		{name: "bad start time", body: `{"title":"t","scheduled_start":"10/02/2026"}`, wantCode: http.StatusUnprocessableEntity, wantErr: "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rides := &mockRideServicer{
				create: func(context.Context, string, domain.RideDraft) (domain.RidePlan, error) {
					t.Fatal("service must not be called")
					return domain.RidePlan{}, nil
				},
			}
			h := newHTTPHandler(deps{rides: rides})
			req := httptest.NewRequest(http.MethodPost, "/rides", strings.NewReader(tt.body))
			req.Header.Set("Authorization", "Bearer u1")
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}
}

func TestCreateRide_ValidationMessageIsUnwrapped(t *testing.T) {
	rides := &mockRideServicer{
		create: func(context.Context, string, domain.RideDraft) (domain.RidePlan, error) {
			return domain.RidePlan{}, fmt.Errorf("service.RideService.Create: %w: title is required", domain.ErrValidation)
		},
	}
	h := newHTTPHandler(deps{rides: rides})

	rec := do(t, h, http.MethodPost, "/rides", "u1", handler.RideRequest{})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, handler.ErrorDetail{Code: "validation_error", Message: "title is required"}, decodeError(t, rec))
}

func TestListRides_Pagination(t *testing.T) {
	var gotParams domain.PaginationParams
	rides := &mockRideServicer{
		list: func(_ context.Context, _ string, p domain.PaginationParams) ([]domain.RidePlan, int, error) {
			gotParams = p
			return []domain.RidePlan{samplePlan("r3")}, 3, nil
		},
	}
	h := newHTTPHandler(deps{rides: rides})

	rec := do(t, h, http.MethodGet, "/rides?page=2&limit=2", "u1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PaginationParams{Page: 2, Limit: 2}, gotParams)
	var got handler.RideList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, handler.Pagination{Page: 2, Limit: 2, Total: 3}, got.Pagination)
	require.Len(t, got.Data, 1)
	assert.Equal(t, "r3", got.Data[0].ID)
}

func TestListRides_BadQuery(t *testing.T) {
	h := newHTTPHandler(deps{})

	rec := do(t, h, http.MethodGet, "/rides?page=abc", "u1", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRide_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  handler.ErrorDetail
	}{
		{
			name:     "not found",
			err:      fmt.Errorf("service.RideService.Get: %w", domain.ErrNotFound),
			wantCode: http.StatusNotFound,
			wantErr:  handler.ErrorDetail{Code: "not_found", Message: "not found"},
		},
		{
			name:     "forbidden",
			err:      fmt.Errorf("service.RideService.Get: %w", domain.ErrForbidden),
			wantCode: http.StatusForbidden,
			wantErr:  handler.ErrorDetail{Code: "forbidden", Message: "you do not own this ride"},
		},
		{
			name:     "invalid state",
			err:      fmt.Errorf("service.RideService.Get: %w: ride is being deleted", domain.ErrInvalidState),
			wantCode: http.StatusConflict,
			wantErr:  handler.ErrorDetail{Code: "conflict", Message: "ride is being deleted"},
		},
		{
			name:     "write failed",
			err:      fmt.Errorf("service.RideService.Get: %w", storeRejection{msg: "permission denied"}),
			wantCode: http.StatusBadGateway,
			wantErr:  handler.ErrorDetail{Code: "write_failed", Message: "permission denied"},
		},
		{
			name:     "feed failed",
			err:      fmt.Errorf("service.RideService.Get: %w", domain.ErrSubscriptionFailed),
			wantCode: http.StatusServiceUnavailable,
			wantErr:  handler.ErrorDetail{Code: "unavailable", Message: "document store unavailable"},
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantErr:  handler.ErrorDetail{Code: "internal_error", Message: "internal server error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rides := &mockRideServicer{
				get: func(context.Context, string, string) (domain.RidePlan, error) {
					return domain.RidePlan{}, tt.err
				},
			}
			h := newHTTPHandler(deps{rides: rides})

			rec := do(t, h, http.MethodGet, "/rides/r1", "u1", nil)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rec))
		})
	}
}

func TestGetRide_PassesIDs(t *testing.T) {
	rides := &mockRideServicer{
		get: func(_ context.Context, userID, rideID string) (domain.RidePlan, error) {
			assert.Equal(t, "u2", userID)
			assert.Equal(t, "r9", rideID)
			return samplePlan(rideID), nil
		},
	}
	h := newHTTPHandler(deps{rides: rides})

	rec := do(t, h, http.MethodGet, "/rides/r9", "u2", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateRide_ParsesStatusWhenGiven(t *testing.T) {
	var gotDraft domain.RideDraft
	rides := &mockRideServicer{
		update: func(_ context.Context, _, _ string, d domain.RideDraft) (domain.RidePlan, error) {
			gotDraft = d
			return samplePlan("r1"), nil
		},
	}
	h := newHTTPHandler(deps{rides: rides})

	rec := do(t, h, http.MethodPut, "/rides/r1", "u1", handler.RideRequest{
		Title: "x", StartLocation: "a", EndLocation: "b", Status: "started",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusOngoing, gotDraft.Status)
}

func TestUpdateRide_UnknownStatus(t *testing.T) {
	h := newHTTPHandler(deps{})

	rec := do(t, h, http.MethodPut, "/rides/r1", "u1", handler.RideRequest{Title: "x", Status: "paused"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSetRideStatus(t *testing.T) {
	var gotStatus domain.Status
	rides := &mockRideServicer{
		setStatus: func(_ context.Context, _, _ string, s domain.Status) (domain.RidePlan, error) {
			gotStatus = s
			p := samplePlan("r1")
			p.Status = domain.StatusCompleted
			return p, nil
		},
	}
	h := newHTTPHandler(deps{rides: rides})

	rec := do(t, h, http.MethodPatch, "/rides/r1/status", "u1", handler.StatusRequest{Status: "completed"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Status("completed"), gotStatus)
}

func TestDeleteRide_Cascade(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		wantCascade bool
	}{
		{name: "default keeps content", target: "/rides/r1", wantCascade: false},
		{name: "cascade", target: "/rides/r1?cascade=true", wantCascade: true},
		{name: "explicit false", target: "/rides/r1?cascade=false", wantCascade: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCascade *bool
			rides := &mockRideServicer{
				delete: func(_ context.Context, _, _ string, cascade bool) error {
					gotCascade = &cascade
					return nil
				},
			}
			h := newHTTPHandler(deps{rides: rides})

			rec := do(t, h, http.MethodDelete, tt.target, "u1", nil)

			require.Equal(t, http.StatusNoContent, rec.Code)
			require.NotNil(t, gotCascade)
			assert.Equal(t, tt.wantCascade, *gotCascade)
		})
	}
}

func TestDeleteRide_BadCascade(t *testing.T) {
	h := newHTTPHandler(deps{})

	rec := do(t, h, http.MethodDelete, "/rides/r1?cascade=maybe", "u1", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeline(t *testing.T) {
	t0 := time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC)
	var appended string
	rides := &mockRideServicer{
		timeline: func(context.Context, string, string) ([]domain.TimelineUpdate, error) {
			return []domain.TimelineUpdate{
				{Text: "reached Chandigarh", RecordedAt: t0.Add(5 * time.Hour)},
				{Text: "left Delhi", RecordedAt: t0},
			}, nil
		},
		appendTimeline: func(_ context.Context, _, _ string, text string) error {
			appended = text
			return nil
		},
	}
	h := newHTTPHandler(deps{rides: rides})

	rec := do(t, h, http.MethodPost, "/rides/r1/timeline", "u1", handler.TimelineRequest{Text: "lunch at Murthal"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "lunch at Murthal", appended)

	rec = do(t, h, http.MethodGet, "/rides/r1/timeline", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got handler.TimelineList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got.Data, 2)
	assert.Equal(t, "reached Chandigarh", got.Data[0].Text)
}

func TestExportCalendar_Attachment(t *testing.T) {
	rides := &mockRideServicer{
		exportCalendar: func(context.Context, string, string) (service.CalendarFile, error) {
			return service.CalendarFile{Filename: "Delhi_to_Manali.ics", Body: "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"}, nil
		},
	}
	h := newHTTPHandler(deps{rides: rides})

	rec := do(t, h, http.MethodGet, "/rides/r1/calendar.ics", "u1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Equal(t, "attachment; filename=Delhi_to_Manali.ics", rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "BEGIN:VCALENDAR"))
}

func TestExportCalendar_NotScheduled(t *testing.T) {
	rides := &mockRideServicer{
		exportCalendar: func(context.Context, string, string) (service.CalendarFile, error) {
			return service.CalendarFile{}, fmt.Errorf("service.RideService.ExportCalendar: %w: ride has no start time", domain.ErrValidation)
		},
	}
	h := newHTTPHandler(deps{rides: rides})

	rec := do(t, h, http.MethodGet, "/rides/r1/calendar.ics", "u1", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ride has no start time", decodeError(t, rec).Message)
}

func TestGetCalendarLink(t *testing.T) {
	rides := &mockRideServicer{
		calendarLink: func(context.Context, string, string) (string, error) {
			return "https://calendar.google.com/calendar/render?action=TEMPLATE", nil
		},
	}
	h := newHTTPHandler(deps{rides: rides})

	rec := do(t, h, http.MethodGet, "/rides/r1/calendar-link", "u1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got handler.CalendarLink
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "https://calendar.google.com/calendar/render?action=TEMPLATE", got.URL)
}
