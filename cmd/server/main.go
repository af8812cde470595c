package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/storefront-payments/internal/app"
	"github.com/linemk/storefront-payments/internal/app/handlers"
	"github.com/linemk/storefront-payments/internal/cache"
	"github.com/linemk/storefront-payments/internal/config"
	"github.com/linemk/storefront-payments/internal/gateway"
	security "github.com/linemk/storefront-payments/internal/jwt-new"
	"github.com/linemk/storefront-payments/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront-payments/internal/lib/logger"
	"github.com/linemk/storefront-payments/internal/lib/logger/handlers/urllog"
	"github.com/linemk/storefront-payments/internal/notify"
	"github.com/linemk/storefront-payments/internal/service"
	"github.com/linemk/storefront-payments/internal/storage"
	"github.com/linemk/storefront-payments/internal/worker"
	"github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env, cfg.Log)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	// хранилища
	orderRepo := storage.NewOrderRepository(application.DB)
	var catalog storage.CatalogStorage = storage.NewProductRepository(application.DB)
	var catalogCache *cache.CatalogCache
	if application.Redis != nil {
		catalogCache = cache.NewCatalogCache(log, application.Redis, catalog, cfg.CatalogCache.TTL)
		catalog = catalogCache
	}

	// платёжный шлюз
	gw, err := gateway.NewClient(gateway.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		TerminalKey: cfg.Gateway.TerminalKey,
		Password:    cfg.Gateway.Password,
		Language:    cfg.Gateway.Language,
		Timeout:     cfg.Gateway.Timeout,
	})
	if err != nil {
		panic(errors.Wrap(err, "failed to create gateway client"))
	}

	// канал уведомлений
	channel, err := notify.New(log, cfg.Notifier)
	if err != nil {
		panic(errors.Wrap(err, "failed to create notification channel"))
	}
	defer channel.Close()

	promos := make(map[string]service.PromoCode, len(cfg.Checkout.PromoCodes))
	for code, p := range cfg.Checkout.PromoCodes {
		promos[code] = service.PromoCode{Percent: p.Percent, Fixed: p.Fixed}
	}

	gate := service.NewNotificationGate(log, orderRepo, channel)
	orderService := service.NewOrderService(log, orderRepo, catalog, gw, gate, service.NewPromoCodes(promos), service.CheckoutOptions{
		Currency:          cfg.Checkout.Currency,
		MaxQuantity:       cfg.Checkout.MaxQuantity,
		DescriptionPrefix: cfg.Checkout.DescriptionPrefix,
		SuccessURL:        cfg.Gateway.SuccessURL,
		FailURL:           cfg.Gateway.FailURL,
		NotificationURL:   cfg.Gateway.NotificationURL,
		Receipt: service.ReceiptOptions{
			Enabled:  cfg.Gateway.Receipt.Enabled,
			Taxation: cfg.Gateway.Receipt.Taxation,
			Tax:      cfg.Gateway.Receipt.Tax,
		},
	})

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Get("/healthz", handlers.HealthHandler(log, application.DB))

	// оформление заказа и подтверждение исхода с витрины
	router.Post("/api/orders", handlers.CreateOrderHandler(log, orderService))
	router.Post("/api/orders/{id}/notify", handlers.NotifyHandler(log, orderService))
	// уведомления шлюза
	router.Post("/api/payments/webhook", handlers.WebhookHandler(log, gw, orderService))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(cfg.JWT.Secret, security.RoleAdmin))
		r.Get("/api/admin/orders/{id}", handlers.AdminGetOrderHandler(log, orderService))
		r.Post("/api/admin/orders/{id}/sync", handlers.AdminSyncOrderHandler(log, orderService))
		r.Post("/api/admin/orders/{id}/cancel", handlers.AdminCancelOrderHandler(log, orderService))
		if catalogCache != nil {
			r.Post("/api/admin/catalog/invalidate", handlers.AdminInvalidateCatalogHandler(log, catalogCache))
		}
	})

	ctx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	pollerDone := make(chan struct{})
	if cfg.Poller.Enabled {
		poller := worker.NewStatusPoller(log, orderRepo, orderService, worker.PollerConfig{
			Interval:   cfg.Poller.Interval,
			StaleAfter: cfg.Poller.StaleAfter,
			MaxAge:     cfg.Poller.MaxAge,
			BatchSize:  cfg.Poller.BatchSize,
		})
		go func() {
			defer close(pollerDone)
			poller.Run(ctx)
		}()
	} else {
		close(pollerDone)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout + cfg.Gateway.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	stopWorkers()
	<-pollerDone
	log.Info("server gracefully stopped")
}
