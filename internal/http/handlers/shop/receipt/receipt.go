// Package receipt shows one of the authenticated member's transactions.
package receipt

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/makerspace/makeradmin/internal/http/middlewarectx"
	"github.com/makerspace/makeradmin/internal/http/params"
	"github.com/makerspace/makeradmin/internal/http/response"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Receipt(ctx context.Context, memberID, transactionID int) (models.Receipt, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.shop.receipt"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	memberID, ok := middlewarectx.CurrentMember(r.Context())
	if !ok {
		response.Fail(w, r, models.ErrUnauthorized)
		return
	}
	transactionID, err := params.ID(r, "transaction_id")
	if err != nil {
		response.Fail(w, r, err)
		return
	}

	receipt, err := h.service.Receipt(r.Context(), memberID, transactionID)
	if err != nil {
		log.Error("failed to load receipt", slog.Int("member_id", memberID),
			slog.Int("transaction_id", transactionID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(receipt))
}
