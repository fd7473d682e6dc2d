package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/jwt-new/jwtmiddleware"
	"github.com/akorchagin/market-api/internal/lib/api"
	"github.com/akorchagin/market-api/internal/service"
)

// CartItemRequest представляет структуру запроса добавления товара в корзину
type CartItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// UpdateCartItemRequest — новое количество для позиции корзины. Ноль и
// отрицательные значения трактуются как удаление позиции.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCartHandler обрабатывает GET /api/cart
func GetCartHandler(log *slog.Logger, env string, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetCartHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		cart, err := cartService.GetCart(r.Context(), userID)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Cart retrieved", cart)
	}
}

// AddCartItemHandler обрабатывает POST /api/cart
func AddCartItemHandler(log *slog.Logger, env string, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AddCartItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		var req CartItemRequest
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

		cart, err := cartService.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Item added to cart", cart)
	}
}

// UpdateCartItemHandler обрабатывает PUT /api/cart/{productId}
func UpdateCartItemHandler(log *slog.Logger, env string, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateCartItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		productID, err := idParam(r, "productId")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		var req UpdateCartItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("invalid request"))
			return
		}

		cart, err := cartService.UpdateItem(r.Context(), userID, productID, req.Quantity)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Cart updated", cart)
	}
}

// RemoveCartItemHandler обрабатывает DELETE /api/cart/{productId}
func RemoveCartItemHandler(log *slog.Logger, env string, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RemoveCartItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		productID, err := idParam(r, "productId")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		cart, err := cartService.RemoveItem(r.Context(), userID, productID)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Item removed from cart", cart)
	}
}

// ClearCartHandler обрабатывает DELETE /api/cart
func ClearCartHandler(log *slog.Logger, env string, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ClearCartHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		if err := cartService.Clear(r.Context(), userID); err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Cart cleared", nil)
	}
}

// ValidateCartHandler обрабатывает GET /api/cart/validate
func ValidateCartHandler(log *slog.Logger, env string, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ValidateCartHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		result, err := cartService.Validate(r.Context(), userID)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Cart validated", result)
	}
}
