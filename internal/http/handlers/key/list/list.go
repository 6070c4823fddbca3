// Package list returns the live keys of a member.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/makerspace/makeradmin/internal/http/params"
	"github.com/makerspace/makeradmin/internal/http/response"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Keys(ctx context.Context, memberID int) ([]models.Key, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.key.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	memberID, err := params.MemberID(r)
	if err != nil {
		response.Fail(w, r, err)
		return
	}

	keys, err := h.service.Keys(r.Context(), memberID)
	if err != nil {
		log.Error("failed to list keys", slog.Int("member_id", memberID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(keys))
}
