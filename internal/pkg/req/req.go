/*
Package req provides helper functions for HTTP request parsing on the reference backend.

It binds JSON request bodies with a size cap and strict decoding so malformed client
input is rejected with a precise error code.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"matchup/internal/pkg/errs"
)

// MaxJSONBodySize caps request bodies accepted by BindJSON (64 KB).
const MaxJSONBodySize int64 = 64 << 10

// BindJSON binds the JSON request body to dst. Unknown fields are ignored because the
// mobile client sends extra keys (e.g. userId on signup) the backend assigns itself.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)

	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// IntURLParam parses the named chi URL parameter as a positive integer.
func IntURLParam(r *http.Request, name string) (int, *errs.CustomError) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || value <= 0 {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}
	return value, nil
}
