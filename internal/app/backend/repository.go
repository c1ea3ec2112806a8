/*
Package backend holds the storage contract and business rules of the reference matchup
server: accounts with bcrypt-hashed passwords, the location catalog and memberships.
*/
package backend

import (
	"context"
	"errors"

	"matchup/internal/app/model"
)

var (
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("backend: duplicate record")

	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("backend: record not found")
)

// UserFilter narrows FindUsers. Identifier matches email or user name; Email matches
// email only. An empty filter matches every user.
type UserFilter struct {
	Identifier string
	Email      string
}

// Matches reports whether u satisfies the filter.
func (f UserFilter) Matches(u model.User) bool {
	if f.Identifier != "" && u.Email != f.Identifier && u.UserName != f.Identifier {
		return false
	}
	if f.Email != "" && u.Email != f.Email {
		return false
	}
	return true
}

// Repository persists backend records. UserPassword values are stored as given; hashing
// happens in the Service.
type Repository interface {
	FindUsers(ctx context.Context, filter UserFilter) ([]model.User, error)
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	UpdateUser(ctx context.Context, userID int, update model.UpdateUserRequest) (model.User, error)

	ListLocations(ctx context.Context) ([]model.Location, error)
	SeedLocations(ctx context.Context, locations []model.Location) error

	ListUserLocations(ctx context.Context, userID int) ([]model.UserLocation, error)
	CreateUserLocation(ctx context.Context, userID, locationID int) (model.UserLocation, error)
}

// DefaultLocations is the development catalog of courts.
var DefaultLocations = []model.Location{
	{LocationName: "Dr Norman Bethune Collegiate Institute", Address: "200 Fundy Bay Blvd, Scarborough", ZipCode: "M1W 3G1", ActivePlayerCount: 5},
	{LocationName: "Lester B. Pearson Collegiate Institute", Address: "150 Tapscott Rd, Scarborough", ZipCode: "M1B 2L2", ActivePlayerCount: 3},
	{LocationName: "Maplewood High School", Address: "120 Galloway Rd, Scarborough", ZipCode: "M1E 1W7", ActivePlayerCount: 2},
	{LocationName: "George B Little Public School", Address: "125 Orton Park Rd, Scarborough", ZipCode: "M1G 3G6", ActivePlayerCount: 4},
	{LocationName: "David and Mary Thomson Collegiate Institute", Address: "55 Brimley Rd S, Scarborough", ZipCode: "M1M 3W3", ActivePlayerCount: 1},
	{LocationName: "Newtonbrook Secondary School", Address: "155 Hilda Ave, North York", ZipCode: "M2M 1V6", ActivePlayerCount: 6},
	{LocationName: "Georges Vanier Secondary School", Address: "3000 Don Mills Rd E, North York", ZipCode: "M2J 3B6", ActivePlayerCount: 3},
	{LocationName: "Northview Heights Secondary School", Address: "550 Finch Ave W, North York", ZipCode: "M2R 1N6", ActivePlayerCount: 2},
	{LocationName: "Earl Haig Secondary School", Address: "100 Princess Ave, North York", ZipCode: "M2N 3R7", ActivePlayerCount: 7},
	{LocationName: "Don Mills Collegiate Institute", Address: "15 The Donway E, North York", ZipCode: "M3C 1X6", ActivePlayerCount: 5},
}
