package backend

import (
	"context"
	"slices"
	"sync"

	"matchup/internal/app/model"
)

// MemoryRepository is a Repository held in process memory. Ids start at 1.
type MemoryRepository struct {
	mu            sync.RWMutex
	users         []model.User
	locations     []model.Location
	userLocations []model.UserLocation

	nextUserID         int
	nextLocationID     int
	nextUserLocationID int
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextUserID: 1, nextLocationID: 1, nextUserLocationID: 1}
}

func (m *MemoryRepository) FindUsers(_ context.Context, filter UserFilter) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.User, 0)
	for _, u := range m.users {
		if filter.Matches(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *MemoryRepository) CreateUser(_ context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email || existing.UserName == u.UserName {
			return model.User{}, ErrDuplicate
		}
	}

	u.UserID = m.nextUserID
	m.nextUserID++
	m.users = append(m.users, u)
	return u, nil
}

func (m *MemoryRepository) UpdateUser(_ context.Context, userID int, update model.UpdateUserRequest) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.users, func(u model.User) bool { return u.UserID == userID })
	if i < 0 {
		return model.User{}, ErrNotFound
	}

	for _, other := range m.users {
		if other.UserID != userID && (other.Email == update.Email || other.UserName == update.UserName) {
			return model.User{}, ErrDuplicate
		}
	}

	m.users[i].UserName = update.UserName
	m.users[i].UserNickName = update.UserNickName
	m.users[i].Email = update.Email
	return m.users[i], nil
}

func (m *MemoryRepository) ListLocations(context.Context) ([]model.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append(make([]model.Location, 0, len(m.locations)), m.locations...), nil
}

// SeedLocations adds locations whose name is not yet catalogued. Given ids are ignored.
func (m *MemoryRepository) SeedLocations(_ context.Context, locations []model.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, loc := range locations {
		if slices.ContainsFunc(m.locations, func(l model.Location) bool { return l.LocationName == loc.LocationName }) {
			continue
		}
		loc.LocationID = m.nextLocationID
		m.nextLocationID++
		m.locations = append(m.locations, loc)
	}
	return nil
}

func (m *MemoryRepository) ListUserLocations(_ context.Context, userID int) ([]model.UserLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.UserLocation, 0)
	for _, ul := range m.userLocations {
		if ul.UserID == userID {
			out = append(out, ul)
		}
	}
	return out, nil
}

func (m *MemoryRepository) CreateUserLocation(_ context.Context, userID, locationID int) (model.UserLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.ContainsFunc(m.users, func(u model.User) bool { return u.UserID == userID }) ||
		!slices.ContainsFunc(m.locations, func(l model.Location) bool { return l.LocationID == locationID }) {
		return model.UserLocation{}, ErrNotFound
	}

	for _, ul := range m.userLocations {
		if ul.UserID == userID && ul.LocationID == locationID {
			return model.UserLocation{}, ErrDuplicate
		}
	}

	ul := model.UserLocation{ID: m.nextUserLocationID, UserID: userID, LocationID: locationID}
	m.nextUserLocationID++
	m.userLocations = append(m.userLocations, ul)
	return ul, nil
}
