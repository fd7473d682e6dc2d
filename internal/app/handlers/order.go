package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/domain/models"
	"github.com/akorchagin/market-api/internal/jwt-new/jwtmiddleware"
	"github.com/akorchagin/market-api/internal/lib/api"
	"github.com/akorchagin/market-api/internal/service"
)

// OrderItemRequest — позиция создаваемого заказа. Цена сервером игнорируется,
// даже если клиент её пришлёт.
type OrderItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// AddressRequest представляет адрес доставки с тегами валидации
type AddressRequest struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// CreateOrderRequest представляет структуру запроса оформления заказа
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress AddressRequest     `json:"shippingAddress" validate:"required"`
	PaymentMethod   string             `json:"paymentMethod" validate:"required"`
	Notes           string             `json:"notes"`
}

// UpdateOrderStatusRequest — целевой статус заказа.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateOrderHandler обрабатывает POST /api/orders
func CreateOrderHandler(log *slog.Logger, env string, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		var req CreateOrderRequest
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

		input := service.CreateOrderInput{
			ShippingAddress: models.Address{
				Street:  req.ShippingAddress.Street,
				City:    req.ShippingAddress.City,
				State:   req.ShippingAddress.State,
				ZipCode: req.ShippingAddress.ZipCode,
				Country: req.ShippingAddress.Country,
			},
			PaymentMethod: req.PaymentMethod,
			Notes:         req.Notes,
		}
		for _, it := range req.Items {
			input.Items = append(input.Items, service.OrderItemInput{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
			})
		}

		order, err := orderService.Create(r.Context(), userID, input)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.Created(w, "Order created successfully", order)
	}
}

// GetOrderHandler обрабатывает GET /api/orders/{id}
func GetOrderHandler(log *slog.Logger, env string, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		orderID, err := idParam(r, "id")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		order, err := orderService.GetByID(r.Context(), orderID, userID)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Order retrieved", order)
	}
}

// ListOrdersHandler обрабатывает GET /api/orders
func ListOrdersHandler(log *slog.Logger, env string, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListOrdersHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 10)

		orders, err := orderService.List(r.Context(), userID, page, limit)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Orders retrieved", orders)
	}
}

// OrderHistoryHandler обрабатывает GET /api/orders/history с фильтром по статусу.
func OrderHistoryHandler(log *slog.Logger, env string, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrderHistoryHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 10)
		status := r.URL.Query().Get("status")

		orders, err := orderService.History(r.Context(), userID, page, limit, status)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Order history retrieved", orders)
	}
}

// UpdateOrderStatusHandler обрабатывает PUT /api/orders/{id}/status (admin).
func UpdateOrderStatusHandler(log *slog.Logger, env string, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateOrderStatusHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		orderID, err := idParam(r, "id")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		var req UpdateOrderStatusRequest
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

		order, err := orderService.UpdateStatus(r.Context(), orderID, userID, req.Status)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Order status updated", order)
	}
}

// CancelOrderHandler обрабатывает PUT /api/orders/{id}/cancel
func CancelOrderHandler(log *slog.Logger, env string, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CancelOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		orderID, err := idParam(r, "id")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		order, err := orderService.Cancel(r.Context(), orderID, userID)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Order cancelled", order)
	}
}

// OrderStatsHandler обрабатывает GET /api/orders/stats
func OrderStatsHandler(log *slog.Logger, env string, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrderStatsHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		stats, err := orderService.Stats(r.Context(), userID)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Order stats retrieved", stats)
	}
}
