package deleteproduct

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/makerspace/makeradmin/internal/http/params"
	"github.com/makerspace/makeradmin/internal/http/response"
	"github.com/makerspace/makeradmin/internal/lib/sl"
)

// Handler serves DELETE /webshop/products/{product_id}. The product is soft deleted and
// stays visible in old transactions.
type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	DeleteProduct(ctx context.Context, id int) error
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webshop.deleteproduct"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := params.ID(r, "product_id")
	if err != nil {
		response.Fail(w, r, err)
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		log.Error("failed to delete product", slog.Int("product_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("product deleted", slog.Int("product_id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"product_id": id,
	}))
}
