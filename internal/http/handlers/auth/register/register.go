// Package register implements self registration through the shop: a new member is
// created and their first membership purchase is started in one request.
package register

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

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

type Service interface {
	RegisterMember(ctx context.Context, req models.RegisterRequest) (models.RegisterResult, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Register a member
// @Description Creates a member, starts payment of a membership product and returns a token.
// @Tags Shop
// @Accept  json
// @Produce  json
// @Param request body models.RegisterRequest true "Member and purchase"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /shop/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.RegisterRequest
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

	res, err := h.service.RegisterMember(r.Context(), req)
	if err != nil {
		log.Error("registration failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("member registered", slog.Int("transaction_id", res.TransactionID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(res))
}
