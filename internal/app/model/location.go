package model

// Location is a catalogued court. It is immutable from the client's perspective.
type Location struct {
	LocationID        int    `json:"locationId"`
	LocationName      string `json:"locationName"`
	Address           string `json:"address"`
	ZipCode           string `json:"zipCode"`
	ActivePlayerCount int    `json:"activePlayerCount"`
	Reviews           string `json:"reviews"`
}

// UserLocation records that a user joined a location.
type UserLocation struct {
	ID         int `json:"id"`
	UserID     int `json:"userId"`
	LocationID int `json:"locationId"`
}

// JoinLocationRequest is the body of POST /api/user-locations.
type JoinLocationRequest struct {
	LocationID int `json:"locationId"`
	UserID     int `json:"userId"`
}
