package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/makerspace/makeradmin/internal/http/response"
	"github.com/makerspace/makeradmin/internal/lib/sl"
)

// Handler reports whether the API can serve requests.
type Handler struct {
	log   *slog.Logger
	ready func(ctx context.Context) error
}

// New creates a Handler; ready checks the dependencies that must be up.
func New(log *slog.Logger, ready func(ctx context.Context) error) *Handler {
	return &Handler{
		log:   log,
		ready: ready,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if err := h.ready(r.Context()); err != nil {
		h.log.Error("not ready", slog.String("op", op), sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("not ready"))
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
	}))
}
