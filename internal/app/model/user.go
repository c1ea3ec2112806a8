/*
Package model contains the JSON records exchanged with the matchup backend.

Field names follow the backend's camelCase wire format. The same types are used by the
client when decoding responses and by the reference backend when encoding them.
*/
package model

// User is an account record as returned by the users endpoints.
type User struct {
	// UserID is the stable key of the account.
	UserID int `json:"userId"`

	// UserName is an alternate login identifier.
	UserName string `json:"userName"`

	// UserNickName is the display name shown in chats.
	UserNickName string `json:"userNickName"`

	// Email is an alternate login identifier and the profile lookup key.
	Email string `json:"email"`

	// UserPassword is the stored credential as the backend transmits it. The reference
	// backend sends a bcrypt hash here; older backends send plaintext.
	UserPassword string `json:"userPassword"`

	// Token is only set on client-side copies after login.
	Token string `json:"token,omitempty"`
}

// CreateUserRequest is the body of POST /api/v1/users.
type CreateUserRequest struct {
	UserName     string `json:"userName"`
	UserNickName string `json:"userNickName"`
	Email        string `json:"email"`
	UserPassword string `json:"userPassword"`

	// UserID is assigned by the backend; the client always sends 0.
	UserID int `json:"userId"`
}

// UpdateUserRequest is the body of PUT /api/v1/users/{id}.
type UpdateUserRequest struct {
	UserName     string `json:"userName"`
	UserNickName string `json:"userNickName"`
	Email        string `json:"email"`
}
