// Package shiporders triggers shipping of pending lab access. It is called by the access
// sync tool before members are pushed to the door system.
package shiporders

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
	ShipOrders(ctx context.Context) (models.ShipResult, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Ship lab access orders
// @Description Grants pending lab access to members holding a key. Safe to repeat.
// @Tags Webshop
// @Produce  json
// @Success 200 {object} response.Response{data=models.ShipResult}
// @Security BearerAuth
// @Router /webshop/ship_orders [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webshop.shiporders"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	result, err := h.service.ShipOrders(r.Context())
	if err != nil {
		log.Error("shipping finished with errors", slog.Int("shipped", result.Shipped),
			slog.Int("failed", result.Failed), sl.Err(err))
		// Failed actions stay pending and are retried on the next run.
		if result.Shipped+result.Failed == 0 {
			response.Fail(w, r, err)
			return
		}
	}

	render.JSON(w, r, response.OKWithData(result))
}
