package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"resqnet/internal/agency/models"
	id "resqnet/pkg/domain"
	"resqnet/pkg/platform/sentinel"
)

// InMemoryStore keeps applications in process and enforces the same uniqueness
// rules as the database schema.
type InMemoryStore struct {
	mu   sync.RWMutex
	apps map[id.ApplicationID]*models.Application
	// claimed mirrors the identity_claimed column.
	claimed map[id.ApplicationID]bool
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		apps:    make(map[id.ApplicationID]*models.Application),
		claimed: make(map[id.ApplicationID]bool),
	}
}

func (s *InMemoryStore) FindByOwner(_ context.Context, owner id.UserID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, app := range s.apps {
		if app.UserID == owner {
			return app.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByID(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return app.Clone(), nil
}

func (s *InMemoryStore) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, other := range s.apps {
		if other.UserID == app.UserID {
			return sentinel.ErrConflict
		}
	}
	if err := s.checkIdentity(app); err != nil {
		return err
	}
	s.apps[app.ID] = app.Clone()
	s.claimed[app.ID] = claimsIdentity(app)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkIdentity(app); err != nil {
		return err
	}
	s.apps[app.ID] = app.Clone()
	s.claimed[app.ID] = claimsIdentity(app)
	return nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, appID id.ApplicationID, status models.Status, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[appID]
	if !ok {
		return sentinel.ErrNotFound
	}
	updated := app.Clone()
	updated.Status = status
	updated.RejectionReason = reason
	updated.UpdatedAt = now
	s.apps[appID] = updated
	return nil
}

// List returns summaries newest first.
func (s *InMemoryStore) List(_ context.Context) ([]models.Summary, error) {
	s.mu.RLock()
	apps := make([]*models.Application, 0, len(s.apps))
	for _, app := range s.apps {
		apps = append(apps, app)
	}
	s.mu.RUnlock()

	slices.SortFunc(apps, func(a, b *models.Application) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	out := make([]models.Summary, 0, len(apps))
	for _, app := range apps {
		out = append(out, app.Clone().Summary())
	}
	return out, nil
}

// ExistsForOtherOwner scans every application, drafts included.
func (s *InMemoryStore) ExistsForOtherOwner(_ context.Context, field models.Field, value string, owner id.UserID) (bool, error) {
	if _, ok := identityColumns[field]; !ok {
		return false, errUnknownField(field)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, app := range s.apps {
		if app.UserID != owner && app.Value(field) == value {
			return true, nil
		}
	}
	return false, nil
}

// checkIdentity mirrors the partial unique indexes: non-empty identity values
// must be unique among applications whose owner claimed them.
func (s *InMemoryStore) checkIdentity(app *models.Application) error {
	if !claimsIdentity(app) {
		return nil
	}
	for _, field := range identityOrder {
		value := app.Value(field)
		if value == "" {
			continue
		}
		for _, other := range s.apps {
			if other.ID == app.ID || !s.claimed[other.ID] {
				continue
			}
			if other.Value(field) == value {
				return &IdentityConflictError{Field: field}
			}
		}
	}
	return nil
}
