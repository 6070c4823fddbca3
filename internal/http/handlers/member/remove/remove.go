// Package remove implements soft deletion of a member.
package remove

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/makerspace/makeradmin/internal/http/params"
	"github.com/makerspace/makeradmin/internal/http/response"
	"github.com/makerspace/makeradmin/internal/lib/sl"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Remove(ctx context.Context, id int) error
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.remove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := params.ID(r, "member_id")
	if err != nil {
		response.Fail(w, r, err)
		return
	}

	if err := h.service.Remove(r.Context(), id); err != nil {
		log.Error("failed to remove member", slog.Int("member_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("member removed", slog.Int("member_id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"member_id": id,
	}))
}
