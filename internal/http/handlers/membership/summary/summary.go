// Package summary implements the membership summary endpoint. The summary is computed
// from the member's spans on every request.
package summary

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

// Handler serves GET /members/{member_id}/membership and GET /member/current/membership.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service computes membership summaries.
type Service interface {
	Summary(ctx context.Context, memberID int) (models.MembershipData, error)
}

// New creates a Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Membership summary
// @Description Lab access and membership status today, with the furthest end dates.
// @Tags Membership
// @Produce  json
// @Param member_id path int true "Member id"
// @Success 200 {object} response.Response{data=models.MembershipData}
// @Failure 404 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /members/{member_id}/membership [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.membership.summary"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	memberID, err := params.MemberID(r)
	if err != nil {
		log.Error("failed to resolve member id", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	data, err := h.service.Summary(r.Context(), memberID)
	if err != nil {
		log.Error("failed to compute membership", slog.Int("member_id", memberID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(data))
}
