// Package service contains the request-scoped operations behind the HTTP API
// and the operator CLI.
// Each call opens a short-lived ridesync view as the acting user, waits for
// its first snapshot, performs one operation and closes the view. Owner
// checks, validation and write classification therefore follow exactly the
// rules the live views enforce.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkordes/rideplanner/internal/calendar"
	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/identity"
	"github.com/pkordes/rideplanner/internal/ridesync"
	"github.com/pkordes/rideplanner/internal/store"
)

// DefaultOpenTimeout bounds how long a call waits for a view's first
// snapshot.
const DefaultOpenTimeout = 10 * time.Second

// RideService implements the ride operations.
type RideService struct {
	store       store.Store
	log         *slog.Logger
	serializer  calendar.Serializer
	openTimeout time.Duration
}

// NewRideService constructs a RideService backed by st.
func NewRideService(st store.Store, log *slog.Logger) *RideService {
	if log == nil {
		log = slog.Default()
	}
	return &RideService{store: st, log: log, openTimeout: DefaultOpenTimeout}
}

// WithSerializer replaces the calendar serializer. Used by tests to pin the
// clock and UID nonce.
func (s *RideService) WithSerializer(ser calendar.Serializer) *RideService {
	s.serializer = ser
	return s
}

// session is a fixed identity for one call. An empty userID is signed out.
func session(userID string) *identity.Session {
	if userID == "" {
		return identity.NewSession(nil)
	}
	return identity.NewSession(&identity.User{ID: userID})
}

func (s *RideService) viewOptions() []ridesync.Option {
	return []ridesync.Option{ridesync.WithLogger(s.log), ridesync.WithSerializer(s.serializer)}
}

// withController opens the ride as userID, waits for it to load and runs fn.
func (s *RideService) withController(ctx context.Context, userID, rideID string, fn func(*ridesync.Controller) error) error {
	c := ridesync.Open(ctx, s.store, session(userID), rideID, s.viewOptions()...)
	defer c.Close()

	wctx, cancel := context.WithTimeout(ctx, s.openTimeout)
	defer cancel()
	if err := c.Wait(wctx); err != nil {
		return err
	}
	return fn(c)
}

// Create validates and stores a new ride owned by userID.
// Returns domain.ErrForbidden when userID is empty and domain.ErrValidation
// when the draft breaks a rule.
func (s *RideService) Create(ctx context.Context, userID string, draft domain.RideDraft) (domain.RidePlan, error) {
	id, err := ridesync.CreateRide(ctx, s.store, userID, draft)
	if err != nil {
		return domain.RidePlan{}, fmt.Errorf("service.RideService.Create: %w", err)
	}
	s.log.Info("ride created", "ride_id", id, "user_id", userID)
	return s.Get(ctx, userID, id)
}

// List returns one page of userID's rides, newest first, and the total count.
// Always returns a non-nil slice.
func (s *RideService) List(ctx context.Context, userID string, p domain.PaginationParams) ([]domain.RidePlan, int, error) {
	plans, err := ridesync.ListRides(ctx, s.store, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("service.RideService.List: %w", err)
	}
	lo, hi := p.Window(len(plans))
	page := make([]domain.RidePlan, 0, hi-lo)
	page = append(page, plans[lo:hi]...)
	return page, len(plans), nil
}

// Get returns the ride as userID sees it.
// Returns domain.ErrNotFound or domain.ErrForbidden.
func (s *RideService) Get(ctx context.Context, userID, rideID string) (domain.RidePlan, error) {
	var plan domain.RidePlan
	err := s.withController(ctx, userID, rideID, func(c *ridesync.Controller) error {
		p, ok := c.Plan()
		if !ok {
			return fmt.Errorf("%w: ride %s not loaded", domain.ErrInvalidState, rideID)
		}
		plan = p
		return nil
	})
	if err != nil {
		return domain.RidePlan{}, fmt.Errorf("service.RideService.Get: %w", err)
	}
	return plan, nil
}

// Update replaces the editable fields of a ride with draft. An empty status
// keeps the ride's current status.
func (s *RideService) Update(ctx context.Context, userID, rideID string, draft domain.RideDraft) (domain.RidePlan, error) {
	err := s.withController(ctx, userID, rideID, func(c *ridesync.Controller) error {
		if err := c.BeginEdit(); err != nil {
			return err
		}
		if draft.Status == "" {
			current, _ := c.Draft()
			draft.Status = current.Status
		}
		return c.CommitEdit(ctx, draft)
	})
	if err != nil {
		return domain.RidePlan{}, fmt.Errorf("service.RideService.Update: %w", err)
	}
	return s.Get(ctx, userID, rideID)
}

// SetStatus moves a ride to status.
func (s *RideService) SetStatus(ctx context.Context, userID, rideID string, status domain.Status) (domain.RidePlan, error) {
	err := s.withController(ctx, userID, rideID, func(c *ridesync.Controller) error {
		return c.SetStatus(ctx, status)
	})
	if err != nil {
		return domain.RidePlan{}, fmt.Errorf("service.RideService.SetStatus: %w", err)
	}
	return s.Get(ctx, userID, rideID)
}

// AppendTimeline adds a progress note to a ride.
func (s *RideService) AppendTimeline(ctx context.Context, userID, rideID, text string) error {
	tm := ridesync.OpenTimeline(ctx, s.store, session(userID), rideID, s.viewOptions()...)
	defer tm.Close()

	wctx, cancel := context.WithTimeout(ctx, s.openTimeout)
	defer cancel()
	if err := tm.Wait(wctx); err != nil {
		return fmt.Errorf("service.RideService.AppendTimeline: %w", err)
	}
	if err := tm.Append(ctx, text); err != nil {
		return fmt.Errorf("service.RideService.AppendTimeline: %w", err)
	}
	return nil
}

// Timeline returns a ride's progress notes, newest first.
func (s *RideService) Timeline(ctx context.Context, userID, rideID string) ([]domain.TimelineUpdate, error) {
	plan, err := s.Get(ctx, userID, rideID)
	if err != nil {
		return nil, fmt.Errorf("service.RideService.Timeline: %w", err)
	}
	return plan.TimelineNewestFirst(), nil
}

// Delete removes a ride. With cascade its content items are removed first;
// without it they are left behind.
func (s *RideService) Delete(ctx context.Context, userID, rideID string, cascade bool) error {
	if cascade {
		if err := s.deleteContent(ctx, userID, rideID); err != nil {
			return fmt.Errorf("service.RideService.Delete: %w", err)
		}
	}
	err := s.withController(ctx, userID, rideID, func(c *ridesync.Controller) error {
		return c.DeleteRecord(ctx)
	})
	if err != nil {
		return fmt.Errorf("service.RideService.Delete: %w", err)
	}
	s.log.Info("ride deleted", "ride_id", rideID, "user_id", userID, "cascade", cascade)
	return nil
}

func (s *RideService) deleteContent(ctx context.Context, userID, rideID string) error {
	m := ridesync.OpenContent(ctx, s.store, session(userID), rideID, s.viewOptions()...)
	defer m.Close()

	wctx, cancel := context.WithTimeout(ctx, s.openTimeout)
	defer cancel()
	if err := m.Wait(wctx); err != nil {
		return err
	}
	return m.DeleteAll(ctx)
}
