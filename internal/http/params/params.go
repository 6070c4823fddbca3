// Package params reads path and query parameters shared by several handlers.
package params

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/makerspace/makeradmin/internal/http/middlewarectx"
	"github.com/makerspace/makeradmin/internal/models"
)

// ID parses the positive integer path parameter name.
func ID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, &models.BadRequest{Message: "invalid " + name}
	}
	return id, nil
}

// MemberID returns the member_id path parameter, or the authenticated member for the
// /member/current routes that carry none.
func MemberID(r *http.Request) (int, error) {
	if chi.URLParam(r, "member_id") != "" {
		return ID(r, "member_id")
	}
	id, ok := middlewarectx.CurrentMember(r.Context())
	if !ok {
		return 0, models.ErrUnauthorized
	}
	return id, nil
}

// MaxPageSize caps the limit a client can ask for.
const MaxPageSize = 1000

// Page returns limit and offset from the query string, using defaultLimit when absent.
// The limit never exceeds MaxPageSize.
func Page(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	limit = min(limit, MaxPageSize)
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// Bool reports whether the query parameter name is set to a true value.
func Bool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
