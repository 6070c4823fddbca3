// Package create implements handing out an RFID key to a member.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/makerspace/makeradmin/internal/http/params"
	"github.com/makerspace/makeradmin/internal/http/response"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/models"
)

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

type Service interface {
	AddKey(ctx context.Context, memberID int, req models.CreateKeyRequest) (models.Key, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Add key
// @Tags Keys
// @Accept  json
// @Produce  json
// @Param member_id path int true "Member id"
// @Param request body models.CreateKeyRequest true "Key"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Tag already in use"
// @Security BearerAuth
// @Router /members/{member_id}/keys [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.key.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	memberID, err := params.ID(r, "member_id")
	if err != nil {
		response.Fail(w, r, err)
		return
	}

	var req models.CreateKeyRequest
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

	key, err := h.service.AddKey(r.Context(), memberID, req)
	if err != nil {
		log.Error("failed to add key", slog.Int("member_id", memberID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("key added", slog.Int("member_id", memberID), slog.Int("key_id", key.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(key))
}
