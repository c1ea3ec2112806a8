/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific failures of the session, authentication and membership
layers, and of the reference backend's request handling, both internally and on the wire.
*/
package errs

// 1xxx: General Request Handling Errors (reference backend)
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrUnauthorized indicates that a bearer token was missing or did not verify.
	ErrUnauthorized = 1008

	// ErrConflict indicates that the resource being created already exists.
	ErrConflict = 1009

	// ErrResourceNotFound indicates that the addressed resource does not exist.
	ErrResourceNotFound = 1010
)

// 3xxx: Authentication and Session Errors
const (
	// ErrInvalidCredentials indicates that no user record matched the identifier and password.
	ErrInvalidCredentials = 3101

	// ErrAccountCreationFailed indicates that the backend did not echo back the submitted account.
	ErrAccountCreationFailed = 3102

	// ErrUnauthenticated indicates that an authenticated call was attempted without a stored token or email.
	ErrUnauthenticated = 3103

	// ErrNotFound indicates that a lookup (profile, location) found no matching record.
	ErrNotFound = 3104

	// ErrProfileUpdateFailed indicates that the backend answered an update for a different user id.
	ErrProfileUpdateFailed = 3105
)

// 4xxx: Membership Errors
const (
	// ErrJoinRejected indicates that the membership POST was answered with anything other than 201.
	ErrJoinRejected = 4101
)

// 5xxx: Transport and Internal Errors
const (
	// ErrUnknown represents an unclassified, general internal error.
	ErrUnknown = 5000

	// ErrNetwork indicates a transport or connectivity failure, or an unexpected HTTP status.
	ErrNetwork = 5101

	// ErrTimeout indicates that a network call exceeded its deadline.
	ErrTimeout = 5102

	// ErrDecode indicates a malformed or unexpected JSON response.
	ErrDecode = 5103

	// ErrTokenIssuance indicates that a session token could not be serialized or signed.
	ErrTokenIssuance = 5104

	// ErrNotConnected indicates that a realtime operation was attempted on a closed channel.
	ErrNotConnected = 5105
)
