// Package login implements the password login endpoint. A successful login returns a
// bearer token for the member.
package login

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

// Handler serves POST /login.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service checks credentials and issues a token.
type Service interface {
	Login(ctx context.Context, req models.LoginRequest) (string, error)
}

// New creates a login Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Member login
// @Description Checks e-mail and password and returns a bearer token.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.LoginRequest
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

	token, err := h.service.Login(r.Context(), req)
	if err != nil {
		log.Warn("login failed", slog.String("email", req.Email), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("login success", slog.String("email", req.Email))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"access_token": token,
		"token_type":   "bearer",
	}))
}
