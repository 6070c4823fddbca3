package makeradmin

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/makerspace/makeradmin/internal/config"
	"github.com/makerspace/makeradmin/internal/http/handlers/auth/login"
	"github.com/makerspace/makeradmin/internal/http/handlers/auth/register"
	"github.com/makerspace/makeradmin/internal/http/handlers/health"
	keycreate "github.com/makerspace/makeradmin/internal/http/handlers/key/create"
	keylist "github.com/makerspace/makeradmin/internal/http/handlers/key/list"
	keyremove "github.com/makerspace/makeradmin/internal/http/handlers/key/remove"
	membercreate "github.com/makerspace/makeradmin/internal/http/handlers/member/create"
	memberlist "github.com/makerspace/makeradmin/internal/http/handlers/member/list"
	memberread "github.com/makerspace/makeradmin/internal/http/handlers/member/read"
	memberremove "github.com/makerspace/makeradmin/internal/http/handlers/member/remove"
	"github.com/makerspace/makeradmin/internal/http/handlers/membership/adddays"
	"github.com/makerspace/makeradmin/internal/http/handlers/membership/periods"
	"github.com/makerspace/makeradmin/internal/http/handlers/membership/removespan"
	"github.com/makerspace/makeradmin/internal/http/handlers/membership/spans"
	"github.com/makerspace/makeradmin/internal/http/handlers/membership/summary"
	"github.com/makerspace/makeradmin/internal/http/handlers/multiaccess/memberdata"
	"github.com/makerspace/makeradmin/internal/http/handlers/shop/history"
	"github.com/makerspace/makeradmin/internal/http/handlers/shop/pay"
	"github.com/makerspace/makeradmin/internal/http/handlers/shop/product"
	"github.com/makerspace/makeradmin/internal/http/handlers/shop/productdata"
	"github.com/makerspace/makeradmin/internal/http/handlers/shop/receipt"
	"github.com/makerspace/makeradmin/internal/http/handlers/shop/registerpage"
	"github.com/makerspace/makeradmin/internal/http/handlers/webshop/category"
	"github.com/makerspace/makeradmin/internal/http/handlers/webshop/complete"
	"github.com/makerspace/makeradmin/internal/http/handlers/webshop/createproduct"
	"github.com/makerspace/makeradmin/internal/http/handlers/webshop/deleteproduct"
	"github.com/makerspace/makeradmin/internal/http/handlers/webshop/pendingactions"
	"github.com/makerspace/makeradmin/internal/http/handlers/webshop/shiporders"
	"github.com/makerspace/makeradmin/internal/http/middlewarectx"
	"github.com/makerspace/makeradmin/internal/services/member"
	"github.com/makerspace/makeradmin/internal/services/membership"
	"github.com/makerspace/makeradmin/internal/services/shop"
)

// Deps are what RegisterRoutes needs to build the handlers.
type Deps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Tokens     middlewarectx.TokenParser
	Members    *member.Service
	Membership *membership.Service
	Shop       *shop.Service
	Registry   *prometheus.Registry
	Ready      func(ctx context.Context) error
}

// RegisterRoutes registers every route of the API.
func RegisterRoutes(r chi.Router, d Deps) {
	logger := d.Logger

	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, d.Config.PublicRateLimit, d.Config.PublicRateBurst))
			r.Post("/login", login.New(logger, d.Members).ServeHTTP)
			r.Post("/shop/register", register.New(logger, d.Shop).ServeHTTP)
		})
		r.Get("/shop/product_data", productdata.New(logger, d.Shop).ServeHTTP)
		r.Get("/shop/register_page_data", registerpage.New(logger, d.Shop).ServeHTTP)
		r.Get("/shop/product/{product_id}", product.New(logger, d.Shop).ServeHTTP)

		// Logged in members
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))

			r.Get("/member/current", memberread.New(logger, d.Members).ServeHTTP)
			r.Get("/member/current/membership", summary.New(logger, d.Membership).ServeHTTP)
			r.Get("/member/current/spans", spans.New(logger, d.Membership).ServeHTTP)
			r.Get("/member/current/keys", keylist.New(logger, d.Members).ServeHTTP)

			r.Post("/shop/pay", pay.New(logger, d.Shop).ServeHTTP)
			r.Get("/shop/history", history.New(logger, d.Shop).ServeHTTP)
			r.Get("/shop/receipt/{transaction_id}", receipt.New(logger, d.Shop).ServeHTTP)

			// Administration
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(logger))

				r.Post("/members", membercreate.New(logger, d.Members).ServeHTTP)
				r.Get("/members", memberlist.New(logger, d.Members, d.Config.PageSize).ServeHTTP)
				r.Route("/members/{member_id}", func(r chi.Router) {
					r.Get("/", memberread.New(logger, d.Members).ServeHTTP)
					r.Delete("/", memberremove.New(logger, d.Members).ServeHTTP)
					r.Get("/membership", summary.New(logger, d.Membership).ServeHTTP)
					r.Post("/addMembershipDays", adddays.New(logger, d.Membership).ServeHTTP)
					r.Get("/spans", spans.New(logger, d.Membership).ServeHTTP)
					r.Get("/periods", periods.New(logger, d.Membership).ServeHTTP)
					r.Post("/keys", keycreate.New(logger, d.Members).ServeHTTP)
					r.Get("/keys", keylist.New(logger, d.Members).ServeHTTP)
					r.Get("/transactions", history.New(logger, d.Shop).ServeHTTP)
				})
				r.Delete("/spans/{span_id}", removespan.New(logger, d.Membership).ServeHTTP)
				r.Delete("/keys/{key_id}", keyremove.New(logger, d.Members).ServeHTTP)

				r.Post("/webshop/categories", category.New(logger, d.Shop).ServeHTTP)
				r.Post("/webshop/products", createproduct.New(logger, d.Shop).ServeHTTP)
				r.Delete("/webshop/products/{product_id}", deleteproduct.New(logger, d.Shop).ServeHTTP)
				r.Get("/webshop/pending_actions", pendingactions.New(logger, d.Shop).ServeHTTP)
				r.Post("/webshop/ship_orders", shiporders.New(logger, d.Shop).ServeHTTP)
				r.Post("/webshop/transactions/{transaction_id}/complete", complete.New(logger, d.Shop).ServeHTTP)

				r.Get("/multiaccess/memberdata", memberdata.New(logger, d.Members).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, d.Ready).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
