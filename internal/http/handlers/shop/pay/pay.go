// Package pay starts payment of a cart for the authenticated member.
package pay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/makerspace/makeradmin/internal/http/middlewarectx"
	"github.com/makerspace/makeradmin/internal/http/response"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Pay(ctx context.Context, memberID int, purchase models.Purchase) (models.PayResult, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Pay for a cart
// @Description Creates a pending transaction and returns where to complete the payment.
// @Tags Shop
// @Accept  json
// @Produce  json
// @Param request body models.Purchase true "Cart"
// @Success 201 {object} response.Response{data=models.PayResult}
// @Failure 400 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /shop/pay [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.shop.pay"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	memberID, ok := middlewarectx.CurrentMember(r.Context())
	if !ok {
		response.Fail(w, r, models.ErrUnauthorized)
		return
	}

	var purchase models.Purchase
	if err := json.NewDecoder(r.Body).Decode(&purchase); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	res, err := h.service.Pay(r.Context(), memberID, purchase)
	if err != nil {
		log.Error("payment failed", slog.Int("member_id", memberID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("payment started", slog.Int("member_id", memberID), slog.Int("transaction_id", res.TransactionID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(res))
}
