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
	"github.com/go-chi/httprate"
	"github.com/pkg/errors"

	"github.com/akorchagin/market-api/internal/app"
	"github.com/akorchagin/market-api/internal/app/handlers"
	"github.com/akorchagin/market-api/internal/config"
	"github.com/akorchagin/market-api/internal/domain/models"
	"github.com/akorchagin/market-api/internal/events"
	"github.com/akorchagin/market-api/internal/jwt-new/jwtmiddleware"
	"github.com/akorchagin/market-api/internal/lib/logger"
	"github.com/akorchagin/market-api/internal/lib/logger/handlers/urllog"
	"github.com/akorchagin/market-api/internal/service"
	"github.com/akorchagin/market-api/internal/storage"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	// сток аналитики: AMQP при заданном URL, иначе события глушатся.
	// Недоступный брокер не должен ронять API.
	var sink events.Sink = events.NopSink{}
	if cfg.AMQP.URL != "" {
		publisher, err := events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			log.Warn("analytics broker unavailable, events will be dropped", slog.Any("error", err))
		} else {
			sink = publisher
		}
	}
	defer sink.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(httprate.LimitByIP(cfg.RateLimit.GlobalRequests, cfg.RateLimit.Window))

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	cartRepo := storage.NewCartRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	analyticsRepo := storage.NewAnalyticsRepository(application.DB)

	authService := service.NewAuthService(application.Logger, userRepo, time.Duration(application.Config.JWT.TokenTTL)*time.Minute)
	userService := service.NewUserService(application.Logger, userRepo)
	productService := service.NewProductService(application.Logger, productRepo)
	cartService := service.NewCartService(application.Logger, productRepo, cartRepo, sink, time.Duration(cfg.Cart.TTLHours)*time.Hour)
	orderService := service.NewOrderService(application.Logger, application.DB, userRepo, productRepo, orderRepo, sink)
	analyticsService := service.NewAnalyticsService(application.Logger, analyticsRepo)

	env := cfg.Env

	// аутентификация с более жёстким лимитом на перебор
	router.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimit.AuthRequests, cfg.RateLimit.Window))
		r.Post("/api/auth/register", handlers.RegisterHandler(application.Logger, env, authService))
		r.Post("/api/auth/login", handlers.LoginHandler(application.Logger, env, authService))
	})

	// публичный каталог
	router.Get("/api/products", handlers.ListProductsHandler(application.Logger, env, productService))
	router.Get("/api/products/{id}", handlers.GetProductHandler(application.Logger, env, productService))

	jwtMW := jwtmiddleware.NewJWTMiddleware()

	// авторизованные пользователи: корзина, заказы, профиль
	router.Group(func(r chi.Router) {
		r.Use(jwtMW)

		r.Get("/api/cart", handlers.GetCartHandler(application.Logger, env, cartService))
		r.Post("/api/cart", handlers.AddCartItemHandler(application.Logger, env, cartService))
		r.Get("/api/cart/validate", handlers.ValidateCartHandler(application.Logger, env, cartService))
		r.Put("/api/cart/{productId}", handlers.UpdateCartItemHandler(application.Logger, env, cartService))
		r.Delete("/api/cart/{productId}", handlers.RemoveCartItemHandler(application.Logger, env, cartService))
		r.Delete("/api/cart", handlers.ClearCartHandler(application.Logger, env, cartService))

		r.Post("/api/orders", handlers.CreateOrderHandler(application.Logger, env, orderService))
		r.Get("/api/orders", handlers.ListOrdersHandler(application.Logger, env, orderService))
		r.Get("/api/orders/stats", handlers.OrderStatsHandler(application.Logger, env, orderService))
		r.Get("/api/orders/history", handlers.OrderHistoryHandler(application.Logger, env, orderService))
		r.Get("/api/orders/{id}", handlers.GetOrderHandler(application.Logger, env, orderService))
		r.Put("/api/orders/{id}/cancel", handlers.CancelOrderHandler(application.Logger, env, orderService))

		r.Get("/api/users/profile", handlers.ProfileHandler(application.Logger, env, userService))
		r.Put("/api/users/{id}", handlers.UpdateUserHandler(application.Logger, env, userService))
		r.Delete("/api/users/{id}", handlers.DeleteUserHandler(application.Logger, env, userService))
	})

	// продавцы и админы управляют каталогом
	router.Group(func(r chi.Router) {
		r.Use(jwtMW)
		r.Use(jwtmiddleware.RequireRole(models.RoleSeller, models.RoleAdmin))

		r.Post("/api/products", handlers.CreateProductHandler(application.Logger, env, productService))
		r.Put("/api/products/{id}", handlers.UpdateProductHandler(application.Logger, env, productService))
		r.Delete("/api/products/{id}", handlers.DeleteProductHandler(application.Logger, env, productService))
	})

	// администрирование: пользователи, статусы заказов, аналитика
	router.Group(func(r chi.Router) {
		r.Use(jwtMW)
		r.Use(jwtmiddleware.RequireRole(models.RoleAdmin))

		r.Get("/api/users", handlers.ListUsersHandler(application.Logger, env, userService))
		r.Get("/api/users/{id}", handlers.GetUserHandler(application.Logger, env, userService))

		r.Put("/api/orders/{id}/status", handlers.UpdateOrderStatusHandler(application.Logger, env, orderService))

		r.Post("/api/analytics/track/session", handlers.TrackSessionHandler(application.Logger, env, analyticsService))
		r.Post("/api/analytics/track/pageview", handlers.TrackPageViewHandler(application.Logger, env, analyticsService))
		r.Post("/api/analytics/track/product-view", handlers.TrackProductViewHandler(application.Logger, env, analyticsService))
		r.Post("/api/analytics/track/event", handlers.TrackEventHandler(application.Logger, env, analyticsService))
		r.Post("/api/analytics/generate/daily", handlers.GenerateDailyHandler(application.Logger, env, analyticsService))
		r.Post("/api/analytics/generate/batch", handlers.GenerateBatchHandler(application.Logger, env, analyticsService))
		r.Get("/api/analytics/dashboard", handlers.DashboardHandler(application.Logger, env, analyticsService))
		r.Get("/api/analytics/product/{id}", handlers.ProductAnalyticsHandler(application.Logger, env, analyticsService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
