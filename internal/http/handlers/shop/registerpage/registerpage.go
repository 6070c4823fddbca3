// Package registerpage serves the data the registration page needs: the full catalog
// and the membership products a new member can choose from.
package registerpage

import (
	"context"
	"log/slog"
	"net/http"

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
	ProductData(ctx context.Context) ([]models.Category, error)
	MembershipProducts(ctx context.Context) ([]models.Product, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.shop.registerpage"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	categories, err := h.service.ProductData(r.Context())
	if err != nil {
		log.Error("failed to load catalog", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	products, err := h.service.MembershipProducts(r.Context())
	if err != nil {
		log.Error("failed to load membership products", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"productData":        categories,
		"membershipProducts": products,
	}))
}
