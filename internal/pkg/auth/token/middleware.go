package token

import (
	"context"
	"net/http"
	"strings"

	"matchup/internal/pkg/errs"
	"matchup/internal/pkg/logx"
	"matchup/internal/pkg/resp"
)

// Define Context Key for storing the Claims, preventing key collisions with other packages.
type contextKey string

const (
	// ContextClaimsKey is the key used to store verified *Claims in the request Context.
	ContextClaimsKey contextKey = "token_claims"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}

	return parts[1], true
}

// RequireBearer rejects requests that do not carry a token verifying under secretKey.
// Verified claims are injected into the request Context.
func RequireBearer(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			claims, err := Verify(tokenString, secretKey)
			if err != nil {
				logx.Warn("Rejected bearer token", "error", err.Error(), "path", r.URL.Path)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), ContextClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims injected by RequireBearer, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(ContextClaimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}
