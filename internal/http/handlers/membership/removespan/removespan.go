// Package removespan implements the administrative reversal of a grant: the span is soft
// deleted and its creation reason can be used again.
package removespan

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
	RemoveSpan(ctx context.Context, spanID int) error
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.membership.removespan"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := params.ID(r, "span_id")
	if err != nil {
		response.Fail(w, r, err)
		return
	}

	if err := h.service.RemoveSpan(r.Context(), id); err != nil {
		log.Error("failed to remove span", slog.Int("span_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("span removed", slog.Int("span_id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"span_id": id,
	}))
}
