package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/ridesync"
	"github.com/pkordes/rideplanner/internal/store"
)

// ContentService implements the operations on a ride's content items.
type ContentService struct {
	store       store.Store
	log         *slog.Logger
	openTimeout time.Duration
}

// NewContentService constructs a ContentService backed by st.
func NewContentService(st store.Store, log *slog.Logger) *ContentService {
	if log == nil {
		log = slog.Default()
	}
	return &ContentService{store: st, log: log, openTimeout: DefaultOpenTimeout}
}

func (s *ContentService) withManager(ctx context.Context, userID, rideID string, fn func(*ridesync.ContentManager) error) error {
	m := ridesync.OpenContent(ctx, s.store, session(userID), rideID, ridesync.WithLogger(s.log))
	defer m.Close()

	wctx, cancel := context.WithTimeout(ctx, s.openTimeout)
	defer cancel()
	if err := m.Wait(wctx); err != nil {
		return err
	}
	return fn(m)
}

// List returns the ride's content items, newest first. Always returns a
// non-nil slice.
func (s *ContentService) List(ctx context.Context, userID, rideID string) ([]domain.ContentItem, error) {
	var items []domain.ContentItem
	err := s.withManager(ctx, userID, rideID, func(m *ridesync.ContentManager) error {
		items = m.Items()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service.ContentService.List: %w", err)
	}
	if items == nil {
		items = []domain.ContentItem{}
	}
	return items, nil
}

// Create adds one content item to the ride.
// Returns domain.ErrValidation if a photo or video has no URL.
func (s *ContentService) Create(ctx context.Context, userID, rideID string, draft domain.ContentDraft) (domain.ContentItem, error) {
	var id string
	err := s.withManager(ctx, userID, rideID, func(m *ridesync.ContentManager) error {
		if err := m.BeginCreate(); err != nil {
			return err
		}
		created, err := m.Commit(ctx, draft)
		id = created
		return err
	})
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("service.ContentService.Create: %w", err)
	}
	return s.get(ctx, userID, rideID, id)
}

// Update replaces the editable fields of content item contentID.
func (s *ContentService) Update(ctx context.Context, userID, rideID, contentID string, draft domain.ContentDraft) (domain.ContentItem, error) {
	err := s.withManager(ctx, userID, rideID, func(m *ridesync.ContentManager) error {
		if err := m.BeginEdit(contentID); err != nil {
			return err
		}
		_, err := m.Commit(ctx, draft)
		return err
	})
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("service.ContentService.Update: %w", err)
	}
	return s.get(ctx, userID, rideID, contentID)
}

// Delete removes content item contentID.
func (s *ContentService) Delete(ctx context.Context, userID, rideID, contentID string) error {
	err := s.withManager(ctx, userID, rideID, func(m *ridesync.ContentManager) error {
		return m.Delete(ctx, contentID)
	})
	if err != nil {
		return fmt.Errorf("service.ContentService.Delete: %w", err)
	}
	return nil
}

func (s *ContentService) get(ctx context.Context, userID, rideID, contentID string) (domain.ContentItem, error) {
	var item domain.ContentItem
	err := s.withManager(ctx, userID, rideID, func(m *ridesync.ContentManager) error {
		for _, it := range m.Items() {
			if it.ID == contentID {
				item = it
				return nil
			}
		}
		return fmt.Errorf("%w: content %s", domain.ErrNotFound, contentID)
	})
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("service.ContentService.get: %w", err)
	}
	return item, nil
}
