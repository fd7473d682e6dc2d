package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/domain/models"
	"github.com/akorchagin/market-api/internal/events"
	"github.com/akorchagin/market-api/internal/storage"
)

// OrderItemInput — позиция создаваемого заказа. Цена не принимается от
// клиента: заказ всегда считается по живой цене каталога.
type OrderItemInput struct {
	ProductID int64
	Quantity  int
}

// CreateOrderInput — данные оформления заказа.
type CreateOrderInput struct {
	Items           []OrderItemInput
	ShippingAddress models.Address
	PaymentMethod   string
	Notes           string
}

// PaginatedOrders — страница заказов.
type PaginatedOrders struct {
	Orders      []*models.Order `json:"orders"`
	TotalOrders int             `json:"totalOrders"`
	CurrentPage int             `json:"currentPage"`
	TotalPages  int             `json:"totalPages"`
}

// OrderStats — агрегаты по заказам пользователя.
type OrderStats struct {
	TotalOrders    int            `json:"totalOrders"`
	TotalSpent     float64        `json:"totalSpent"`
	OrdersByStatus map[string]int `json:"ordersByStatus"`
}

// OrderService переводит набор позиций в заказ, двигает остатки и статусы.
type OrderService interface {
	Create(ctx context.Context, userID int64, input CreateOrderInput) (*models.Order, error)
	GetByID(ctx context.Context, orderID, userID int64) (*models.Order, error)
	List(ctx context.Context, userID int64, page, limit int) (*PaginatedOrders, error)
	History(ctx context.Context, userID int64, page, limit int, status string) (*PaginatedOrders, error)
	UpdateStatus(ctx context.Context, orderID, userID int64, status string) (*models.Order, error)
	Cancel(ctx context.Context, orderID, userID int64) (*models.Order, error)
	Stats(ctx context.Context, userID int64) (*OrderStats, error)
}

type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	userRepo    storage.UserStorage
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
	sink        events.Sink
}

func NewOrderService(log *slog.Logger, db *sql.DB, userRepo storage.UserStorage, productRepo storage.ProductStorage, orderRepo storage.OrderStorage, sink events.Sink) OrderService {
	return &orderService{
		log:         log,
		db:          db,
		userRepo:    userRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		sink:        sink,
	}
}

// Create оформляет заказ в одной транзакции: валидация всех позиций против
// живого каталога, вставка заказа с позициями, затем условное списание
// остатков (stock >= qty). Любой сбой откатывает всё целиком — частично
// списанных остатков или заказа без списания не бывает. TotalAmount
// считается по авторитетным ценам каталога, снимки цен корзины не участвуют.
func (s *orderService) Create(ctx context.Context, userID int64, input CreateOrderInput) (*models.Order, error) {
	const op = "service.OrderService.Create"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))
	logger.Info("starting order transaction", slog.Int("items", len(input.Items)))

	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Order must contain at least one item"))
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Quantity must be positive"))
		}
	}

	if _, err := s.userRepo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("User not found"))
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	// Сначала валидируются все позиции, и только потом применяются списания.
	var totalAmount float64
	orderItems := make([]*models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		product, err := s.productRepo.GetProductByIDTx(ctx, tx, item.ProductID)
		if err != nil {
			s.rollback(tx, logger)
			if errors.Is(err, storage.ErrProductNotFound) {
				return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Product not found or inactive"))
			}
			logger.Error("failed to get product", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
		}
		if !product.IsActive {
			s.rollback(tx, logger)
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Product not found or inactive"))
		}
		if product.Stock < item.Quantity {
			s.rollback(tx, logger)
			logger.Warn("insufficient stock", slog.Int64("productID", product.ID), slog.Int("stock", product.Stock))
			return nil, fmt.Errorf("%s: %w", op,
				apperr.BadRequest(fmt.Sprintf("Only %d units of %s available", product.Stock, product.Name)))
		}

		totalAmount += product.Price * float64(item.Quantity)
		orderItems = append(orderItems, &models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			Price:       product.Price,
		})
	}

	order := &models.Order{
		UserID:          userID,
		Items:           orderItems,
		TotalAmount:     totalAmount,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   input.PaymentMethod,
		Notes:           input.Notes,
		ShippingAddress: input.ShippingAddress,
	}
	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	for _, item := range order.Items {
		if err := s.productRepo.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, storage.ErrInsufficientStock) {
				// остаток ушёл между валидацией и списанием — перечитываем для сообщения
				available := 0
				if product, rerr := s.productRepo.GetProductByIDTx(ctx, tx, item.ProductID); rerr == nil {
					available = product.Stock
				}
				s.rollback(tx, logger)
				logger.Warn("stock changed during checkout", slog.Int64("productID", item.ProductID))
				return nil, fmt.Errorf("%s: %w", op,
					apperr.BadRequest(fmt.Sprintf("Only %d units of %s available", available, item.ProductName)))
			}
			s.rollback(tx, logger)
			logger.Error("failed to decrement stock", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to decrement stock: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	s.publish(ctx, models.EventPurchase, map[string]interface{}{
		"orderId": order.ID,
		"amount":  order.TotalAmount,
		"userId":  userID,
	})

	logger.Info("order created", slog.Int64("orderID", order.ID), slog.Float64("totalAmount", order.TotalAmount))
	return order, nil
}

func (s *orderService) GetByID(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	const op = "service.OrderService.GetByID"

	order, err := s.orderRepo.GetOrderByID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Order not found"))
		}
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, userID int64, page, limit int) (*PaginatedOrders, error) {
	return s.listOrders(ctx, "service.OrderService.List", userID, page, limit, "")
}

// History — то же постраничное чтение, но с необязательным фильтром по статусу.
func (s *orderService) History(ctx context.Context, userID int64, page, limit int, status string) (*PaginatedOrders, error) {
	const op = "service.OrderService.History"
	if status != "" && !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Invalid order status"))
	}
	return s.listOrders(ctx, op, userID, page, limit, status)
}

func (s *orderService) listOrders(ctx context.Context, op string, userID int64, page, limit int, status string) (*PaginatedOrders, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	orders, total, err := s.orderRepo.ListOrdersByUser(ctx, userID, storage.OrderFilter{
		Status: status,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list orders: %w", op, err)
	}

	totalPages := (total + limit - 1) / limit
	return &PaginatedOrders{
		Orders:      orders,
		TotalOrders: total,
		CurrentPage: page,
		TotalPages:  totalPages,
	}, nil
}

// UpdateStatus проверяет и распознаваемость значения, и допустимость перехода:
// статус движется только вперёд, произвольная перезапись не разрешается.
func (s *orderService) UpdateStatus(ctx context.Context, orderID, userID int64, status string) (*models.Order, error) {
	const op = "service.OrderService.UpdateStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.String("status", status))

	if !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Invalid order status"))
	}

	order, err := s.orderRepo.GetOrderByID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Order not found"))
		}
		logger.Error("failed to get order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}

	if !models.CanTransition(order.Status, status) {
		logger.Warn("illegal status transition", slog.String("from", order.Status))
		return nil, fmt.Errorf("%s: %w", op,
			apperr.BadRequest(fmt.Sprintf("Cannot change order status from %s to %s", order.Status, status)))
	}

	if err := s.orderRepo.UpdateOrderStatus(ctx, orderID, userID, status); err != nil {
		logger.Error("failed to update status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update status: %w", op, err)
	}

	order.Status = status
	order.UpdatedAt = time.Now()
	logger.Info("order status updated")
	return order, nil
}

// Cancel отменяет заказ и возвращает на склад ровно те количества, что были
// списаны при создании. Возврат и смена статуса фиксируются одной транзакцией.
func (s *orderService) Cancel(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	const op = "service.OrderService.Cancel"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("userID", userID))
	logger.Info("starting cancel transaction")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.orderRepo.GetOrderByIDTx(ctx, tx, orderID, userID)
	if err != nil {
		s.rollback(tx, logger)
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Order not found"))
		}
		logger.Error("failed to get order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}

	if order.Status == models.OrderStatusCancelled {
		s.rollback(tx, logger)
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Order is already cancelled"))
	}
	if !order.CanCancel() {
		s.rollback(tx, logger)
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Cannot cancel shipped or delivered order"))
	}

	for _, item := range order.Items {
		if err := s.productRepo.IncrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			s.rollback(tx, logger)
			logger.Error("failed to restore stock", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to restore stock: %w", op, err)
		}
	}

	if err := s.orderRepo.UpdateOrderStatusTx(ctx, tx, orderID, userID, models.OrderStatusCancelled); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to update status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update status: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = time.Now()
	logger.Info("order cancelled")
	return order, nil
}

func (s *orderService) Stats(ctx context.Context, userID int64) (*OrderStats, error) {
	const op = "service.OrderService.Stats"

	orders, err := s.orderRepo.GetAllOrdersByUser(ctx, userID)
	if err != nil {
		s.log.Error("failed to get orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get orders: %w", op, err)
	}

	stats := &OrderStats{OrdersByStatus: make(map[string]int)}
	for _, order := range orders {
		stats.TotalOrders++
		stats.TotalSpent += order.TotalAmount
		stats.OrdersByStatus[order.Status]++
	}
	return stats, nil
}

func (s *orderService) rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}

func (s *orderService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.log.Warn("failed to marshal analytics event", slog.Any("error", err))
		return
	}
	event := models.AnalyticsEvent{Type: eventType, Timestamp: time.Now(), Data: payload}
	if err := s.sink.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish analytics event", slog.String("type", eventType), slog.Any("error", err))
	}
}
