package ridesync

import (
	"context"
	"fmt"

	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/store"
)

// CreateRide stores a new ride owned by userID and returns its id. A blank
// title becomes domain.DefaultRideTitle; the status always starts as planned
// whatever the draft says.
func CreateRide(ctx context.Context, st store.Store, userID string, draft domain.RideDraft) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: not signed in", domain.ErrForbidden)
	}
	clean := draft.Normalize()
	if clean.Title == "" {
		clean.Title = domain.DefaultRideTitle
	}
	clean.Status = domain.StatusPlanned
	if err := clean.Validate(); err != nil {
		return "", err
	}

	id, err := st.Add(ctx, RidesCollection, newRideFields(userID, clean))
	if err != nil {
		return "", writeFailed(err)
	}
	return id, nil
}

// ListRides returns the rides owned by userID, newest first.
func ListRides(ctx context.Context, st store.Store, userID string) ([]domain.RidePlan, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: not signed in", domain.ErrForbidden)
	}
	qs, err := st.Query(ctx, store.Query{
		Collection: RidesCollection,
		Where:      []store.Filter{{Field: fOwner, Value: userID}},
		OrderBy:    fCreatedAt,
		Desc:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("ridesync.ListRides: %w", err)
	}
	plans := make([]domain.RidePlan, 0, len(qs.Docs))
	for _, doc := range qs.Docs {
		plans = append(plans, decodeRide(doc))
	}
	return plans, nil
}
