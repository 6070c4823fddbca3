// Package pendingactions lists paid actions that have not been performed yet, optionally
// for one member with ?member_id=.
package pendingactions

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/makerspace/makeradmin/internal/http/response"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	PendingActions(ctx context.Context, memberID int) ([]models.PendingAction, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webshop.pendingactions"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var memberID int
	if v := r.URL.Query().Get("member_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			response.Fail(w, r, &models.BadRequest{Message: "invalid member_id"})
			return
		}
		memberID = id
	}

	pending, err := h.service.PendingActions(r.Context(), memberID)
	if err != nil {
		log.Error("failed to list pending actions", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(pending))
}
