package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/domain/models"
	"github.com/akorchagin/market-api/internal/jwt-new/jwtmiddleware"
	"github.com/akorchagin/market-api/internal/lib/api"
	"github.com/akorchagin/market-api/internal/service"
)

// TrackSessionRequest — регистрация сессии. SessionID опционален: при
// отсутствии генерируется сервером.
type TrackSessionRequest struct {
	SessionID string `json:"sessionId"`
	UserAgent string `json:"userAgent"`
}

// TrackPageViewRequest представляет просмотр страницы в рамках сессии
type TrackPageViewRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Path      string `json:"path" validate:"required"`
}

// TrackProductViewRequest представляет просмотр карточки товара
type TrackProductViewRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Referrer  string `json:"referrer"`
}

// TrackEventRequest — произвольное событие с полезной нагрузкой.
type TrackEventRequest struct {
	SessionID string          `json:"sessionId" validate:"required"`
	Type      string          `json:"type" validate:"required"`
	Data      json.RawMessage `json:"data"`
}

// GenerateDailyRequest — дата для пересчёта дневной сводки (по умолчанию вчера).
type GenerateDailyRequest struct {
	Date string `json:"date"`
}

// GenerateBatchRequest — диапазон дат для пакетного пересчёта сводок.
type GenerateBatchRequest struct {
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
}

// TrackSessionHandler обрабатывает POST /api/analytics/track/session
func TrackSessionHandler(log *slog.Logger, env string, analyticsService service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TrackSessionHandler"
		logger := log.With(slog.String("op", op))

		var req TrackSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("invalid request"))
			return
		}

		input := service.SessionInput{
			SessionID: req.SessionID,
			IPAddress: r.RemoteAddr,
			UserAgent: req.UserAgent,
		}
		if userID, ok := jwtmiddleware.FromContext(r.Context()); ok {
			input.UserID = &userID
		}

		sessionID, err := analyticsService.TrackSession(r.Context(), input)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Session tracked", map[string]string{"sessionId": sessionID})
	}
}

// TrackPageViewHandler обрабатывает POST /api/analytics/track/pageview
func TrackPageViewHandler(log *slog.Logger, env string, analyticsService service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TrackPageViewHandler"
		logger := log.With(slog.String("op", op))

		var req TrackPageViewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("invalid request"))
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("validation error"))
			return
		}

		if err := analyticsService.TrackPageView(r.Context(), req.SessionID, req.Path); err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Page view tracked", nil)
	}
}

// TrackProductViewHandler обрабатывает POST /api/analytics/track/product-view
func TrackProductViewHandler(log *slog.Logger, env string, analyticsService service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TrackProductViewHandler"
		logger := log.With(slog.String("op", op))

		var req TrackProductViewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("invalid request"))
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("validation error"))
			return
		}

		input := service.ProductViewInput{
			ProductID: req.ProductID,
			SessionID: req.SessionID,
			Referrer:  req.Referrer,
		}
		if userID, ok := jwtmiddleware.FromContext(r.Context()); ok {
			input.UserID = &userID
		}

		if err := analyticsService.TrackProductView(r.Context(), input); err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Product view tracked", nil)
	}
}

// TrackEventHandler обрабатывает POST /api/analytics/track/event
func TrackEventHandler(log *slog.Logger, env string, analyticsService service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TrackEventHandler"
		logger := log.With(slog.String("op", op))

		var req TrackEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("invalid request"))
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("validation error"))
			return
		}

		event := models.AnalyticsEvent{
			Type:      req.Type,
			Timestamp: time.Now(),
			Data:      req.Data,
		}

		if err := analyticsService.TrackEvent(r.Context(), req.SessionID, event); err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Event tracked", nil)
	}
}

// GenerateDailyHandler обрабатывает POST /api/analytics/generate/daily (admin).
func GenerateDailyHandler(log *slog.Logger, env string, analyticsService service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GenerateDailyHandler"
		logger := log.With(slog.String("op", op))

		var req GenerateDailyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("invalid request"))
			return
		}

		date := time.Now().AddDate(0, 0, -1)
		if req.Date != "" {
			parsed, err := time.Parse("2006-01-02", req.Date)
			if err != nil {
				api.Error(w, logger, env, apperr.BadRequest("invalid date, expected YYYY-MM-DD"))
				return
			}
			date = parsed
		}

		report, err := analyticsService.GenerateDaily(r.Context(), date)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Daily analytics generated", report)
	}
}

// GenerateBatchHandler обрабатывает POST /api/analytics/generate/batch (admin).
// Пересчитывает сводку за каждый день диапазона, результат по дням.
func GenerateBatchHandler(log *slog.Logger, env string, analyticsService service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GenerateBatchHandler"
		logger := log.With(slog.String("op", op))

		var req GenerateBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("invalid request"))
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("startDate and endDate are required"))
			return
		}

		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			api.Error(w, logger, env, apperr.BadRequest("invalid startDate, expected YYYY-MM-DD"))
			return
		}
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			api.Error(w, logger, env, apperr.BadRequest("invalid endDate, expected YYYY-MM-DD"))
			return
		}

		results, err := analyticsService.GenerateRange(r.Context(), start, end)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Analytics generated successfully", results)
	}
}

// DashboardHandler обрабатывает GET /api/analytics/dashboard (admin).
func DashboardHandler(log *slog.Logger, env string, analyticsService service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DashboardHandler"
		logger := log.With(slog.String("op", op))

		days := queryInt(r, "days", 30)

		stats, err := analyticsService.Dashboard(r.Context(), days)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Dashboard retrieved", stats)
	}
}

// ProductAnalyticsHandler обрабатывает GET /api/analytics/product/{id} (admin).
func ProductAnalyticsHandler(log *slog.Logger, env string, analyticsService service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProductAnalyticsHandler"
		logger := log.With(slog.String("op", op))

		productID, err := idParam(r, "id")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		days := queryInt(r, "days", 30)

		stats, err := analyticsService.ProductAnalytics(r.Context(), productID, days)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Product analytics retrieved", stats)
	}
}
