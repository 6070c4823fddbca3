// Package memberdata exports the members that hold keys, with their lab access end date,
// for the access-control sync.
package memberdata

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
	AccessData(ctx context.Context) ([]models.AccessMember, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Access sync member data
// @Tags Multiaccess
// @Produce  json
// @Success 200 {object} response.Response{data=[]models.AccessMember}
// @Security BearerAuth
// @Router /multiaccess/memberdata [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.multiaccess.memberdata"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	members, err := h.service.AccessData(r.Context())
	if err != nil {
		log.Error("failed to export member data", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("member data exported", slog.Int("count", len(members)))
	render.JSON(w, r, response.OKWithData(members))
}
