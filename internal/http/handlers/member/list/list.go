// Package list implements the paginated member list for admins.
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
	log      *slog.Logger
	service  Service
	pageSize int
}

type Service interface {
	List(ctx context.Context, limit, offset int) ([]models.Member, error)
}

// New creates a Handler that returns pageSize members unless the request asks for a limit.
func New(log *slog.Logger, service Service, pageSize int) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		pageSize: pageSize,
	}
}

// ServeHTTP godoc
// @Summary List members
// @Tags Members
// @Produce  json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /members [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, offset := params.Page(r, h.pageSize)
	members, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list members", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("members listed", slog.Int("count", len(members)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"members": members,
		"limit":   limit,
		"offset":  offset,
	}))
}
