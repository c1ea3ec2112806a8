/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError template, used to standardize
HTTP responses on the reference backend and user-facing messages on the client.
*/
package errs

import "net/http"

// errorMap stores the CustomError template corresponding to every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnauthorized:         {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrConflict:             {Code: ErrConflict, Message: "Resource already exists.", Status: http.StatusConflict},
	ErrResourceNotFound:     {Code: ErrResourceNotFound, Message: "Resource not found.", Status: http.StatusNotFound},

	// 3xxx: Authentication and Session Errors
	ErrInvalidCredentials:    {Code: ErrInvalidCredentials, Message: "Incorrect email, username or password.", Status: http.StatusUnauthorized},
	ErrAccountCreationFailed: {Code: ErrAccountCreationFailed, Message: "Account creation failed.", Status: http.StatusBadRequest},
	ErrUnauthenticated:       {Code: ErrUnauthenticated, Message: "Please log in again.", Status: http.StatusUnauthorized},
	ErrNotFound:              {Code: ErrNotFound, Message: "No matching record was found.", Status: http.StatusNotFound},
	ErrProfileUpdateFailed:   {Code: ErrProfileUpdateFailed, Message: "Profile update failed.", Status: http.StatusBadRequest},

	// 4xxx: Membership Errors
	ErrJoinRejected: {Code: ErrJoinRejected, Message: "Could not join this court.", Status: http.StatusBadRequest},

	// 5xxx: Transport and Internal Errors
	ErrUnknown:       {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrNetwork:       {Code: ErrNetwork, Message: "Could not reach the server.", Status: http.StatusBadGateway},
	ErrTimeout:       {Code: ErrTimeout, Message: "The server took too long to respond.", Status: http.StatusGatewayTimeout},
	ErrDecode:        {Code: ErrDecode, Message: "The server sent an unexpected response.", Status: http.StatusBadGateway},
	ErrTokenIssuance: {Code: ErrTokenIssuance, Message: "Could not create a session token.", Status: http.StatusInternalServerError},
	ErrNotConnected:  {Code: ErrNotConnected, Message: "Chat connection is closed.", Status: http.StatusServiceUnavailable},
}
