// Package makeradmin assembles the MakerAdmin API server from its storage, cache, broker
// and services, and runs it until the context is cancelled.
package makeradmin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/makerspace/makeradmin/internal/cache"
	"github.com/makerspace/makeradmin/internal/config"
	"github.com/makerspace/makeradmin/internal/lib/jwt"
	"github.com/makerspace/makeradmin/internal/lib/rabbitmq"
	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/lib/smtp"
	"github.com/makerspace/makeradmin/internal/metrics"
	"github.com/makerspace/makeradmin/internal/migrations"
	"github.com/makerspace/makeradmin/internal/paymentprovider"
	"github.com/makerspace/makeradmin/internal/services/mailer"
	"github.com/makerspace/makeradmin/internal/services/member"
	"github.com/makerspace/makeradmin/internal/services/membership"
	"github.com/makerspace/makeradmin/internal/services/shop"
	"github.com/makerspace/makeradmin/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App is the API server with the resources it owns.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	db        *storage.Storage
	cache     *cache.Cache
	amqpConn  *amqp.Connection
	publisher *rabbitmq.Publisher

	// mail is nil unless both the broker and the mail server are configured.
	mail        *mailer.Service
	mailCh      *amqp.Channel
	mailWorkers int
}

// membershipRepo adapts Storage transactions to the membership service.
type membershipRepo struct {
	*storage.Storage
}

func (r membershipRepo) InTx(ctx context.Context, fn func(tx membership.Store) error) error {
	return r.Storage.InTx(ctx, func(tx *storage.Storage) error {
		return fn(tx)
	})
}

// New connects to the database, applies migrations, connects the optional cache and
// broker and builds the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "makeradmin.New"

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = storage.CheckDatabaseReady(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{logger: logger, db: db}

	var catalogCache shop.Cache
	if cfg.AddressRedis != "" {
		app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		catalogCache = app.cache
	} else {
		logger.Warn("redis address not set, catalog cache disabled")
	}

	var events membership.Publisher = rabbitmq.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		app.amqpConn, err = rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.ConnRetries, cfg.ConnRetryGap)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, err := rabbitmq.SetupChannel(app.amqpConn, cfg.Exchange, rabbitmq.EventQueues())
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.publisher = rabbitmq.NewPublisher(ch, cfg.Exchange)
		events = app.publisher
	} else {
		logger.Warn("rabbitmq url not set, domain events are dropped")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	memberService := member.New(db, tokens, events, logger)
	membershipService := membership.New(membershipRepo{db}, events, m, logger)
	shopService := shop.New(shop.Deps{
		Store:    db,
		Members:  memberService,
		Granter:  membershipService,
		Payments: paymentprovider.NewClient(cfg.PaymentProvider),
		Cache:    catalogCache,
		CacheTTL: cfg.CatalogTTL,
		Events:   events,
		Metrics:  m,
	}, logger)

	if app.amqpConn != nil && cfg.SMTPHost != "" {
		app.mailCh, err = app.amqpConn.Channel()
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.mail = mailer.New(smtp.NewTransport(cfg.SMTP, logger), memberService, logger)
		app.mailWorkers = cfg.MailWorkers
	} else {
		logger.Warn("e-mail dispatcher disabled, needs rabbitmq url and smtp host")
	}

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:     logger,
		Config:     cfg,
		Tokens:     tokens,
		Members:    memberService,
		Membership: membershipService,
		Shop:       shopService,
		Registry:   registry,
		Ready: func(ctx context.Context) error {
			return storage.CheckDatabaseReady(ctx, db)
		},
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run serves HTTP and dispatches e-mail until ctx is cancelled, then shuts down gracefully
// and releases the resources of the App.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if a.mail != nil {
		g.Go(func() error {
			a.logger.Info("e-mail dispatcher starting", slog.String("queue", rabbitmq.EmailQueue))
			return rabbitmq.Consume(gctx, a.mailCh, rabbitmq.EmailQueue, a.mailWorkers, a.mail.Handle, a.logger)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	})
	return g.Wait()
}

func (a *App) close() {
	if a.mailCh != nil {
		if err := a.mailCh.Close(); err != nil {
			a.logger.Error("failed to close mail channel", sl.Err(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
