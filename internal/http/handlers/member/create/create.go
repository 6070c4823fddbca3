// Package create implements the admin endpoint that adds a member.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/makerspace/makeradmin/internal/http/response"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/models"
)

// Handler serves POST /members.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service creates members.
type Service interface {
	Create(ctx context.Context, req models.CreateMemberRequest) (models.Member, error)
}

// New creates a Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Create member
// @Tags Members
// @Accept  json
// @Produce  json
// @Param request body models.CreateMemberRequest true "Member"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /members [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	m, err := h.service.Create(r.Context(), req)
	if err != nil {
		log.Error("failed to create member", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("member created", slog.Int("member_id", m.ID), slog.Int("member_number", m.MemberNumber))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(m))
}
