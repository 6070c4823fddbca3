package remove

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

// Handler serves DELETE /keys/{key_id}.
type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	RemoveKey(ctx context.Context, keyID int) error
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.key.remove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := params.ID(r, "key_id")
	if err != nil {
		response.Fail(w, r, err)
		return
	}

	if err := h.service.RemoveKey(r.Context(), id); err != nil {
		log.Error("failed to remove key", slog.Int("key_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("key removed", slog.Int("key_id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"key_id": id,
	}))
}
