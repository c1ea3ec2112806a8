/*
Package handler provides the HTTP handlers and routing of the reference matchup backend.

This file holds the account endpoints under /api/v1/users.
*/
package handler

import (
	"errors"
	"net/http"

	"matchup/internal/app/backend"
	"matchup/internal/app/model"
	"matchup/internal/pkg/auth/token"
	"matchup/internal/pkg/errs"
	"matchup/internal/pkg/logx"
	"matchup/internal/pkg/req"
	"matchup/internal/pkg/resp"
)

// respondServiceError sends err, which the backend service returns as *errs.CustomError.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		customErr = errs.Wrap(errs.ErrUnknown, err)
	}
	resp.RespondError(w, r, customErr)
}

// HandleListUsers serves GET /api/v1/users?identifier=... (the login lookup, open) and
// GET /api/v1/users?email=... (the profile lookup, bearer token for that email required).
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		filter := backend.UserFilter{
			Identifier: query.Get("identifier"),
			Email:      query.Get("email"),
		}

		if filter.Identifier == "" && filter.Email == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if filter.Email != "" {
			tokenString, ok := token.BearerToken(r)
			if !ok {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			claims, err := token.Verify(tokenString, deps.Config.TokenSigningKey)
			if err != nil {
				logx.Warn("Rejected bearer token on user lookup", "error", err.Error())
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			// a token only reads its own account
			if claims.Identifier != filter.Email {
				logx.Warn("Bearer token does not match looked up email", "email", filter.Email)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
		}

		users, err := deps.Service.FindUsers(r.Context(), filter)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondJSON(w, r, http.StatusOK, users)
	}
}

// HandleCreateUser serves POST /api/v1/users.
func HandleCreateUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input model.CreateUserRequest
		if err := req.BindJSON(w, r, &input); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		created, err := deps.Service.Register(r.Context(), input)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondJSON(w, r, http.StatusCreated, created)
	}
}

// HandleUpdateUser serves PUT /api/v1/users/{userId}. It expects RequireBearer in front.
func HandleUpdateUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, perr := req.IntURLParam(r, "userId")
		if perr != nil {
			resp.RespondError(w, r, perr)
			return
		}

		if err := deps.Service.Authorize(r.Context(), token.ClaimsFromContext(r.Context()), userID); err != nil {
			respondServiceError(w, r, err)
			return
		}

		var input model.UpdateUserRequest
		if err := req.BindJSON(w, r, &input); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		updated, err := deps.Service.UpdateProfile(r.Context(), userID, input)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondJSON(w, r, http.StatusOK, updated)
	}
}
