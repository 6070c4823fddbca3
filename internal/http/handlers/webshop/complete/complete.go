// Package complete marks a pending transaction as paid. It stands in for the payment
// provider's confirmation.
package complete

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

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
	CompleteTransaction(ctx context.Context, transactionID int) (models.Transaction, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webshop.complete"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := params.ID(r, "transaction_id")
	if err != nil {
		response.Fail(w, r, err)
		return
	}

	t, err := h.service.CompleteTransaction(r.Context(), id)
	if err != nil {
		log.Error("failed to complete transaction", slog.Int("transaction_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("transaction completed", slog.Int("transaction_id", id), slog.Int("member_id", t.MemberID))
	render.JSON(w, r, response.OKWithData(t))
}
