// Package read implements fetching one member, either by id or the authenticated member
// itself on /member/current.
package read

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
	Get(ctx context.Context, id int) (*models.Member, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Get member
// @Tags Members
// @Produce  json
// @Param member_id path int true "Member id"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /members/{member_id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := params.MemberID(r)
	if err != nil {
		log.Error("failed to resolve member id", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		log.Error("failed to read member", slog.Int("member_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(m))
}
