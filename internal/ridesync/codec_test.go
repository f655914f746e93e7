package ridesync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/store"
)

func TestDecodeRide_JSONBackedValues(t *testing.T) {
	snap := store.Snapshot{
		ID:     "r1",
		Exists: true,
		Fields: store.Fields{
			"uid":           "u1",
			"title":         "Spiti loop",
			"stops":         []any{"Kaza", 42, "Tabo"},
			"budget":        "luxury",
			"status":        "started",
			"transport":     "",
			"startDateTime": "2026-06-01T05:30:00.000Z",
			"endDateTime":   "",
			"createdAt":     "2026-01-20T15:04:05.123456789Z",
			"notes":         map[string]any{"pre": "service the bike"},
			"timelineUpdates": []any{
				map[string]any{"text": "left Shimla", "recordedAt": "2026-06-01T06:00:00Z"},
			},
		},
	}

	p := decodeRide(snap)

	assert.Equal(t, []string{"Kaza", "Tabo"}, p.Stops)
	assert.Equal(t, domain.BudgetHigh, p.BudgetTier)
	assert.Equal(t, domain.StatusOngoing, p.Status)
	assert.Equal(t, domain.TransportBike, p.TransportMode)
	require.NotNil(t, p.ScheduledStart)
	assert.Equal(t, "2026-06-01T05:30", p.ScheduledStart.String())
	assert.Nil(t, p.ScheduledEnd)
	assert.Equal(t, 123456789, p.CreatedAt.Nanosecond())
	assert.Equal(t, "service the bike", p.Notes.Pre)
	require.Len(t, p.TimelineUpdates, 1)
	assert.Equal(t, time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC), p.TimelineUpdates[0].RecordedAt)
}

func TestDecodeRide_UnknownEnumKeptRaw(t *testing.T) {
	p := decodeRide(store.Snapshot{Fields: store.Fields{"transport": "horse", "status": "paused"}})

	assert.Equal(t, domain.TransportMode("horse"), p.TransportMode)
	assert.Equal(t, domain.Status("paused"), p.Status)
	assert.ErrorIs(t, p.Draft().Validate(), domain.ErrValidation)
}

func TestDecodeRide_FallsBackToStoreCreateTime(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	p := decodeRide(store.Snapshot{ID: "r1", CreateTime: created, Fields: store.Fields{}})

	assert.Equal(t, created, p.CreatedAt)
	assert.NotNil(t, p.Stops)
	assert.NotNil(t, p.TimelineUpdates)
}

func TestRideFields_RoundTrip(t *testing.T) {
	start := domain.NewLocalTime(2026, time.February, 10, 6, 0, 0)
	d := domain.RideDraft{
		Title: "Delhi to Manali", StartLocation: "Delhi", EndLocation: "Manali",
		Stops: []string{"Chandigarh"}, ScheduledStart: &start,
		Notes:       domain.PhaseNotes{During: "fuel at Mandi"},
		Preferences: domain.Preferences{Season: "winter"},
	}.Normalize()

	f := store.Apply(nil, newRideFields("u1", d), time.Now())
	p := decodeRide(store.Snapshot{ID: "r1", Exists: true, Fields: f})

	assert.Equal(t, d, p.Draft())
	assert.Equal(t, "u1", p.OwnerID)
	assert.Empty(t, p.TimelineUpdates)
}

func TestDecodeContent(t *testing.T) {
	_, err := decodeContent("r1", store.Snapshot{ID: "c1", Fields: store.Fields{"kind": "audio"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	item, err := decodeContent("r1", store.Snapshot{ID: "c1", Fields: store.Fields{
		"uid": "u1", "kind": "Video", "title": "descent", "url": "https://v/1",
	}})
	require.NoError(t, err)
	assert.Equal(t, domain.ContentVideo, item.Kind)
	assert.Equal(t, "r1", item.RideID)
	assert.Equal(t, "u1", item.OwnerID)
}

func TestContentCollection(t *testing.T) {
	assert.Equal(t, "rides/r1", RidePath("r1"))
	assert.Equal(t, "rides/r1/content", ContentCollection("r1"))
}
