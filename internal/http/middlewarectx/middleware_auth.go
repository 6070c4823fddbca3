// Package middlewarectx contains the HTTP middleware that authenticates members and
// stores their identity in the request context.
//
// JWTMiddleware reads the bearer token from the Authorization header, verifies it and puts
// the member id and role into the context. Requests without a valid token get 401.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/makerspace/makeradmin/internal/http/response"
	"github.com/makerspace/makeradmin/internal/lib/jwt"
	"github.com/makerspace/makeradmin/internal/lib/sl"
)

// Key is the type of request context keys set by this package.
type Key string

const (
	// MemberID holds the authenticated member id (int).
	MemberID Key = "member_id"
	// Role holds the authenticated member role (string).
	Role Key = "role"
)

// TokenParser verifies member tokens.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// JWTMiddleware returns middleware that rejects requests without a valid bearer token.
func JWTMiddleware(tokens TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := tokens.ParseToken(tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), MemberID, claims.MemberID)
			ctx = context.WithValue(ctx, Role, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CurrentMember returns the authenticated member id stored by JWTMiddleware.
func CurrentMember(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(MemberID).(int)
	return id, ok && id > 0
}
