// Package createproduct implements adding a product, with its actions, to the catalog.
package createproduct

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
	CreateProduct(ctx context.Context, req models.CreateProductRequest) (models.Product, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Create product
// @Tags Webshop
// @Accept  json
// @Produce  json
// @Param request body models.CreateProductRequest true "Product"
// @Success 201 {object} response.Response{data=models.Product}
// @Failure 422 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /webshop/products [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webshop.createproduct"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.CreateProductRequest
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

	p, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		log.Error("failed to create product", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("product created", slog.Int("product_id", p.ID), slog.String("name", p.Name))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(p))
}
