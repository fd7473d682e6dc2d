package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/domain/models"
	"github.com/akorchagin/market-api/internal/storage"
)

// SessionInput — данные трекинга сессии. Пустой SessionID генерируется.
type SessionInput struct {
	SessionID string
	UserID    *int64
	IPAddress string
	UserAgent string
}

// ProductViewInput — данные просмотра карточки товара.
type ProductViewInput struct {
	ProductID int64
	SessionID string
	UserID    *int64
	Referrer  string
}

// DashboardStats — сводка для админского дашборда.
type DashboardStats struct {
	Sales      []*models.SalesAnalytics  `json:"sales"`
	Signups    []models.DayCount         `json:"signups"`
	TopViewed  []models.ProductViewCount `json:"topViewedProducts"`
	PeriodDays int                       `json:"periodDays"`
}

// DayGenerationResult — итог пересчёта сводки за один день диапазона.
// Сбой одного дня не прерывает остальные.
type DayGenerationResult struct {
	Date    string                 `json:"date"`
	Success bool                   `json:"success"`
	Data    *models.SalesAnalytics `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// ProductAnalytics — динамика просмотров и продаж одного товара.
type ProductAnalytics struct {
	Views []models.DayCount `json:"views"`
	Sales []models.DaySales `json:"sales"`
}

// AnalyticsService — трекинг и отчётность. Сбор событий не участвует в
// логике заказов и корзины, поток данных строго односторонний.
type AnalyticsService interface {
	TrackSession(ctx context.Context, input SessionInput) (string, error)
	TrackPageView(ctx context.Context, sessionID, path string) error
	TrackProductView(ctx context.Context, input ProductViewInput) error
	TrackEvent(ctx context.Context, sessionID string, event models.AnalyticsEvent) error
	GenerateDaily(ctx context.Context, date time.Time) (*models.SalesAnalytics, error)
	GenerateRange(ctx context.Context, start, end time.Time) ([]DayGenerationResult, error)
	Dashboard(ctx context.Context, days int) (*DashboardStats, error)
	ProductAnalytics(ctx context.Context, productID int64, days int) (*ProductAnalytics, error)
}

type analyticsService struct {
	log           *slog.Logger
	analyticsRepo storage.AnalyticsStorage
}

func NewAnalyticsService(log *slog.Logger, analyticsRepo storage.AnalyticsStorage) AnalyticsService {
	return &analyticsService{log: log, analyticsRepo: analyticsRepo}
}

func (s *analyticsService) TrackSession(ctx context.Context, input SessionInput) (string, error) {
	const op = "service.AnalyticsService.TrackSession"

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if _, err := uuid.Parse(sessionID); err != nil {
		return "", fmt.Errorf("%s: %w", op, apperr.BadRequest("Invalid session id"))
	}

	session := &models.UserSession{
		SessionID: sessionID,
		UserID:    input.UserID,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}
	if err := s.analyticsRepo.CreateSession(ctx, session); err != nil {
		s.log.Error("failed to track session", slog.String("op", op), slog.Any("error", err))
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sessionID, nil
}

func (s *analyticsService) TrackPageView(ctx context.Context, sessionID, path string) error {
	const op = "service.AnalyticsService.TrackPageView"

	payload, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	event := models.AnalyticsEvent{Type: models.EventPageView, Timestamp: time.Now(), Data: payload}
	if err := s.analyticsRepo.AddSessionEvent(ctx, sessionID, event); err != nil {
		s.log.Error("failed to track page view", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *analyticsService) TrackProductView(ctx context.Context, input ProductViewInput) error {
	const op = "service.AnalyticsService.TrackProductView"

	view := &models.ProductView{
		ProductID: input.ProductID,
		UserID:    input.UserID,
		SessionID: input.SessionID,
		Referrer:  input.Referrer,
	}
	if err := s.analyticsRepo.CreateProductView(ctx, view); err != nil {
		s.log.Error("failed to track product view", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	payload, err := json.Marshal(map[string]int64{"productId": input.ProductID})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	event := models.AnalyticsEvent{Type: models.EventProductView, Timestamp: time.Now(), Data: payload}
	if err := s.analyticsRepo.AddSessionEvent(ctx, input.SessionID, event); err != nil {
		s.log.Error("failed to record product view event", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *analyticsService) TrackEvent(ctx context.Context, sessionID string, event models.AnalyticsEvent) error {
	const op = "service.AnalyticsService.TrackEvent"

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.analyticsRepo.AddSessionEvent(ctx, sessionID, event); err != nil {
		s.log.Error("failed to track event", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GenerateDaily собирает дневной срез продаж по оплаченным заказам:
// тоталы, уникальные покупатели, топ-10 товаров по выручке и разбивка по
// категориям. Срез идемпотентно перезаписывается по дате.
func (s *analyticsService) GenerateDaily(ctx context.Context, date time.Time) (*models.SalesAnalytics, error) {
	const op = "service.AnalyticsService.GenerateDaily"
	logger := s.log.With(slog.String("op", op), slog.String("date", date.Format("2006-01-02")))
	logger.Info("generating daily analytics")

	orders, err := s.analyticsRepo.OrdersForDay(ctx, date)
	if err != nil {
		logger.Error("failed to load orders", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load orders: %w", op, err)
	}

	var totalSales float64
	buyers := make(map[int64]struct{})
	productStats := make(map[int64]*models.ProductStat)

	for _, order := range orders {
		totalSales += order.TotalAmount
		buyers[order.UserID] = struct{}{}
		for _, item := range order.Items {
			stat, ok := productStats[item.ProductID]
			if !ok {
				stat = &models.ProductStat{ProductID: item.ProductID}
				productStats[item.ProductID] = stat
			}
			stat.Quantity += item.Quantity
			stat.Sales += item.Price * float64(item.Quantity)
		}
	}

	productIDs := make([]int64, 0, len(productStats))
	topProducts := make([]models.ProductStat, 0, len(productStats))
	for id, stat := range productStats {
		productIDs = append(productIDs, id)
		topProducts = append(topProducts, *stat)
	}
	sort.Slice(topProducts, func(i, j int) bool { return topProducts[i].Sales > topProducts[j].Sales })
	if len(topProducts) > 10 {
		topProducts = topProducts[:10]
	}

	categories, err := s.analyticsRepo.ProductCategories(ctx, productIDs)
	if err != nil {
		logger.Error("failed to load categories", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load categories: %w", op, err)
	}

	// Orders в разбивке — число различных проданных товаров категории.
	categoryStats := make(map[string]*models.CategoryStat)
	for id, stat := range productStats {
		category := categories[id]
		if category == "" {
			continue
		}
		cs, ok := categoryStats[category]
		if !ok {
			cs = &models.CategoryStat{Category: category}
			categoryStats[category] = cs
		}
		cs.Sales += stat.Sales
		cs.Orders++
	}
	breakdown := make([]models.CategoryStat, 0, len(categoryStats))
	for _, cs := range categoryStats {
		breakdown = append(breakdown, *cs)
	}
	sort.Slice(breakdown, func(i, j int) bool { return breakdown[i].Sales > breakdown[j].Sales })

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	sa := &models.SalesAnalytics{
		Date:              day,
		TotalSales:        totalSales,
		TotalOrders:       len(orders),
		TotalUsers:        len(buyers),
		TopProducts:       topProducts,
		CategoryBreakdown: breakdown,
	}
	if err := s.analyticsRepo.UpsertDailySales(ctx, sa); err != nil {
		logger.Error("failed to save analytics", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to save analytics: %w", op, err)
	}

	logger.Info("daily analytics generated", slog.Int("orders", sa.TotalOrders), slog.Float64("sales", sa.TotalSales))
	return sa, nil
}

// GenerateRange пересчитывает сводки за каждый день диапазона включительно.
// Ошибка одного дня попадает в его результат, остальные дни считаются дальше.
func (s *analyticsService) GenerateRange(ctx context.Context, start, end time.Time) ([]DayGenerationResult, error) {
	const op = "service.AnalyticsService.GenerateRange"

	if !start.Before(end) {
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("startDate must be before endDate"))
	}

	var results []DayGenerationResult
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		result := DayGenerationResult{Date: day.Format("2006-01-02")}
		sa, err := s.GenerateDaily(ctx, day)
		if err != nil {
			s.log.Error("failed to generate day", slog.String("op", op), slog.String("date", result.Date), slog.Any("error", err))
			result.Error = err.Error()
		} else {
			result.Success = true
			result.Data = sa
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *analyticsService) Dashboard(ctx context.Context, days int) (*DashboardStats, error) {
	const op = "service.AnalyticsService.Dashboard"

	if days < 1 || days > 365 {
		days = 30
	}
	from := time.Now().AddDate(0, 0, -days)

	sales, err := s.analyticsRepo.ListDailySales(ctx, from)
	if err != nil {
		s.log.Error("failed to load sales", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load sales: %w", op, err)
	}
	signups, err := s.analyticsRepo.SignupsByDay(ctx, from)
	if err != nil {
		s.log.Error("failed to load signups", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load signups: %w", op, err)
	}
	topViewed, err := s.analyticsRepo.TopViewedProducts(ctx, from, 10)
	if err != nil {
		s.log.Error("failed to load top viewed", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load top viewed: %w", op, err)
	}

	return &DashboardStats{
		Sales:      sales,
		Signups:    signups,
		TopViewed:  topViewed,
		PeriodDays: days,
	}, nil
}

func (s *analyticsService) ProductAnalytics(ctx context.Context, productID int64, days int) (*ProductAnalytics, error) {
	const op = "service.AnalyticsService.ProductAnalytics"

	if days < 1 || days > 365 {
		days = 30
	}
	from := time.Now().AddDate(0, 0, -days)

	views, err := s.analyticsRepo.ProductViewsByDay(ctx, productID, from)
	if err != nil {
		s.log.Error("failed to load views", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load views: %w", op, err)
	}
	sales, err := s.analyticsRepo.ProductSalesByDay(ctx, productID, from)
	if err != nil {
		s.log.Error("failed to load sales", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load sales: %w", op, err)
	}

	return &ProductAnalytics{Views: views, Sales: sales}, nil
}
