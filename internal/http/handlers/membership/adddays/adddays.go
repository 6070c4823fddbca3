// Package adddays implements granting days of lab access or membership to a member.
//
// The request carries a creation_reason that makes the grant idempotent: repeating a grant
// with the same reason, type and days returns the current summary without adding a span.
package adddays

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/makerspace/makeradmin/internal/http/params"
	"github.com/makerspace/makeradmin/internal/http/response"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/models"
)

// Handler serves POST /members/{member_id}/addMembershipDays. Field rules are checked by
// the service so that rejections carry the JSON field name.
type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	AddMembershipDays(ctx context.Context, req models.AddDaysRequest) (models.MembershipData, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Add membership days
// @Tags Membership
// @Accept  json
// @Produce  json
// @Param member_id path int true "Member id"
// @Param request body models.AddDaysRequest true "Grant"
// @Success 200 {object} response.Response{data=models.MembershipData}
// @Failure 422 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /members/{member_id}/addMembershipDays [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.membership.adddays"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	memberID, err := params.ID(r, "member_id")
	if err != nil {
		response.Fail(w, r, err)
		return
	}

	var req models.AddDaysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	req.MemberID = memberID

	data, err := h.service.AddMembershipDays(r.Context(), req)
	if err != nil {
		log.Error("failed to add membership days", slog.Int("member_id", memberID),
			slog.String("creation_reason", req.CreationReason), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("membership days added", slog.Int("member_id", memberID), slog.String("type", string(req.Type)),
		slog.Int("days", req.Days))
	render.JSON(w, r, response.OKWithData(data))
}
