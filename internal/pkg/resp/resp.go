/*
Package resp provides helper functions for sending JSON responses from the reference backend.

Successful responses carry the bare resource (a record or a list of records), which is the
shape the mobile client decodes. Errors carry a small {code, message} body.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"matchup/internal/pkg/errs"
	"matchup/internal/pkg/logx"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	// Code is the business error code (see errs package).
	Code int `json:"code"`

	// Message is the client-friendly error message.
	Message string `json:"message"`
}

// RespondJSON sets the Content-Type and writes payload with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
			"path", r.URL.Path,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(response)
}

// RespondError sends the status and body described by customErr.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	RespondJSON(w, r, customErr.Status, ErrorBody{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
