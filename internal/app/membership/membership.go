/*
Package membership synchronizes the locations a user has joined and projects them into
chats.

The backend is authoritative. FetchJoinedLocationIDs replaces the joined set held by the
session store; JoinLocation records a join as pending until the backend confirms it, so a
rejected join never leaves a chat behind.
*/
package membership

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"matchup/internal/app/model"
	"matchup/internal/app/session"
	"matchup/internal/pkg/errs"
	"matchup/internal/pkg/logx"
)

// chatNamespace scopes the name-based chat ids.
var chatNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("matchup:location-chat"))

// Backend is the subset of the API client the service needs.
type Backend interface {
	ListUserLocations(ctx context.Context, userID int) ([]model.UserLocation, error)
	ListLocations(ctx context.Context) ([]model.Location, error)
	CreateUserLocation(ctx context.Context, body model.JoinLocationRequest) (int, error)
}

// Chat is the messaging thread of one joined location.
type Chat struct {
	// ID is stable for a location across runs and devices.
	ID         uuid.UUID
	Name       string
	LocationID int

	// Pending is set while the join awaits confirmation.
	Pending bool
}

// ChatID returns the chat id of a location.
func ChatID(locationID int) uuid.UUID {
	return uuid.NewSHA1(chatNamespace, []byte(strconv.Itoa(locationID)))
}

// ProjectChats maps joined and pending location ids through catalog. Chats follow catalog
// order; ids missing from the catalog yield no chat. A location both joined and pending
// is reported as joined.
func ProjectChats(joined, pending []int, catalog []model.Location) []Chat {
	chats := make([]Chat, 0, len(joined)+len(pending))
	for _, loc := range catalog {
		switch {
		case slices.Contains(joined, loc.LocationID):
			chats = append(chats, newChat(loc, false))
		case slices.Contains(pending, loc.LocationID):
			chats = append(chats, newChat(loc, true))
		}
	}
	return chats
}

func newChat(loc model.Location, pending bool) Chat {
	return Chat{
		ID:         ChatID(loc.LocationID),
		Name:       loc.LocationName,
		LocationID: loc.LocationID,
		Pending:    pending,
	}
}

// Service keeps the session's joined set in step with the backend.
type Service struct {
	backend Backend
	store   *session.Store

	mu      sync.RWMutex
	catalog []model.Location

	// joinMu serializes joins so the uniqueness guard and the pending mark are atomic.
	joinMu sync.Mutex

	logger zerolog.Logger
}

// NewService creates a service recording memberships in store.
func NewService(backend Backend, store *session.Store) *Service {
	return &Service{
		backend: backend,
		store:   store,
		logger:  logx.Component("membership"),
	}
}

// FetchJoinedLocationIDs loads the memberships of userID and replaces the stored set.
// The ids are returned ascending without duplicates.
func (s *Service) FetchJoinedLocationIDs(ctx context.Context, userID int) ([]int, error) {
	memberships, err := s.backend.ListUserLocations(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.LocationID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	if err := s.store.ReplaceJoined(ctx, ids); err != nil {
		return nil, errs.Wrap(errs.ErrUnknown, err)
	}

	s.logger.Debug().Int("user_id", userID).Ints("location_ids", ids).Msg("Joined locations synced.")
	return ids, nil
}

// FetchAllLocations loads the full catalog and caches it for projection.
func (s *Service) FetchAllLocations(ctx context.Context) ([]model.Location, error) {
	locations, err := s.backend.ListLocations(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.catalog = slices.Clone(locations)
	s.mu.Unlock()

	return locations, nil
}

// Catalog returns the most recently fetched catalog.
func (s *Service) Catalog() []model.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.catalog)
}

// Chats projects the session's memberships through the cached catalog.
func (s *Service) Chats() []Chat {
	snap := s.store.Snapshot()
	return ProjectChats(snap.JoinedLocationIDs, snap.PendingLocationIDs, s.Catalog())
}

// Sync refreshes memberships and catalog for the logged in user and returns the chats.
func (s *Service) Sync(ctx context.Context) ([]Chat, error) {
	userID, ok := s.store.UserID()
	if !ok {
		return nil, errs.NewError(errs.ErrUnauthenticated)
	}

	if _, err := s.FetchJoinedLocationIDs(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.FetchAllLocations(ctx); err != nil {
		return nil, err
	}

	return s.Chats(), nil
}

// JoinLocation joins userID to locationID. It does nothing when a chat with the
// location's name already exists, pending or not. The join stays pending until the
// backend answers 201; any other answer drops it and fails with ErrJoinRejected.
func (s *Service) JoinLocation(ctx context.Context, userID, locationID int) error {
	s.joinMu.Lock()
	defer s.joinMu.Unlock()

	loc, err := s.lookup(ctx, locationID)
	if err != nil {
		return err
	}

	for _, chat := range s.Chats() {
		if chat.Name == loc.LocationName {
			s.logger.Debug().Int("location_id", locationID).Msg("Chat already exists; join skipped.")
			return nil
		}
	}

	if !s.store.MarkPending(locationID) {
		return nil
	}

	status, err := s.backend.CreateUserLocation(ctx, model.JoinLocationRequest{
		LocationID: locationID,
		UserID:     userID,
	})
	if err != nil {
		s.store.DropPending(locationID)
		return err
	}

	if status != http.StatusCreated {
		s.store.DropPending(locationID)
		s.logger.Warn().Int("location_id", locationID).Int("status", status).Msg("Join rejected.")
		return errs.Wrap(errs.ErrJoinRejected, fmt.Errorf("membership POST returned status %d", status))
	}

	if err := s.store.ConfirmJoin(ctx, locationID); err != nil {
		s.store.DropPending(locationID)
		return errs.Wrap(errs.ErrUnknown, err)
	}

	s.logger.Info().Int("location_id", locationID).Str("location", loc.LocationName).Msg("Location joined.")
	return nil
}

// lookup finds locationID in the cached catalog, fetching it once when missing.
func (s *Service) lookup(ctx context.Context, locationID int) (model.Location, error) {
	find := func(catalog []model.Location) (model.Location, bool) {
		i := slices.IndexFunc(catalog, func(l model.Location) bool { return l.LocationID == locationID })
		if i < 0 {
			return model.Location{}, false
		}
		return catalog[i], true
	}

	if loc, ok := find(s.Catalog()); ok {
		return loc, nil
	}

	catalog, err := s.FetchAllLocations(ctx)
	if err != nil {
		return model.Location{}, err
	}
	if loc, ok := find(catalog); ok {
		return loc, nil
	}

	return model.Location{}, errs.NewError(errs.ErrNotFound)
}
