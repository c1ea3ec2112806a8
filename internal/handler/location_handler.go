package handler

import (
	"net/http"

	"matchup/internal/app/model"
	"matchup/internal/pkg/req"
	"matchup/internal/pkg/resp"
)

// HandleListLocations serves GET /api/v1/locations.
func HandleListLocations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locations, err := deps.Service.ListLocations(r.Context())
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		resp.RespondJSON(w, r, http.StatusOK, locations)
	}
}

// HandleListUserLocations serves GET /api/user-locations/user/{userId}.
func HandleListUserLocations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, perr := req.IntURLParam(r, "userId")
		if perr != nil {
			resp.RespondError(w, r, perr)
			return
		}

		memberships, err := deps.Service.ListUserLocations(r.Context(), userID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		resp.RespondJSON(w, r, http.StatusOK, memberships)
	}
}

// HandleJoinLocation serves POST /api/user-locations. Success is 201.
func HandleJoinLocation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input model.JoinLocationRequest
		if err := req.BindJSON(w, r, &input); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		membership, err := deps.Service.Join(r.Context(), input)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		resp.RespondJSON(w, r, http.StatusCreated, membership)
	}
}
