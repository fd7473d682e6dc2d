package service

import (
	"context"
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

// CartValidation — отчёт Validate: найденные проблемы уже исправлены в корзине.
type CartValidation struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// CartService — мутации корзины против живого состояния каталога.
type CartService interface {
	GetCart(ctx context.Context, userID int64) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error)
	UpdateItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error)
	Clear(ctx context.Context, userID int64) error
	Validate(ctx context.Context, userID int64) (*CartValidation, error)
}

type cartService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
	cartRepo    storage.CartStorage
	sink        events.Sink
	cartTTL     time.Duration
}

func NewCartService(log *slog.Logger, productRepo storage.ProductStorage, cartRepo storage.CartStorage, sink events.Sink, cartTTL time.Duration) CartService {
	return &cartService{
		log:         log,
		productRepo: productRepo,
		cartRepo:    cartRepo,
		sink:        sink,
		cartTTL:     cartTTL,
	}
}

func (s *cartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	const op = "service.CartService.GetCart"

	cart, err := s.cartRepo.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Cart not found"))
		}
		return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}
	return cart, nil
}

// AddItem добавляет товар в корзину. Если товар уже есть, количества
// суммируются; суммарное количество проверяется против живого остатка.
// Цена снимается с товара в момент добавления.
func (s *cartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	const op = "service.CartService.AddItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("productID", productID), slog.Int("quantity", quantity))

	if quantity <= 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Quantity must be positive"))
	}

	product, err := s.productRepo.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Product not found or inactive"))
		}
		logger.Error("failed to get product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Product not found or inactive"))
	}

	if product.Stock < quantity {
		logger.Warn("insufficient stock", slog.Int("stock", product.Stock))
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Insufficient stock"))
	}

	cart, err := s.cartRepo.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrCartNotFound) {
			logger.Error("failed to get cart", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
		}
		// корзина создаётся лениво при первом добавлении
		cart = &models.Cart{UserID: userID, IsActive: true}
	}

	if item := cart.FindItem(productID); item != nil {
		newQuantity := item.Quantity + quantity
		if newQuantity > product.Stock {
			logger.Warn("cumulative quantity exceeds stock", slog.Int("have", item.Quantity), slog.Int("stock", product.Stock))
			return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Total quantity exceeds available stock"))
		}
		item.Quantity = newQuantity
	} else {
		cart.Items = append(cart.Items, &models.CartItem{
			ProductID:   productID,
			ProductName: product.Name,
			Quantity:    quantity,
			Price:       product.Price,
			AddedAt:     time.Now(),
		})
	}

	cart.Recalculate()
	if err := s.cartRepo.SaveCart(ctx, cart, s.cartTTL); err != nil {
		logger.Error("failed to save cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to save cart: %w", op, err)
	}

	s.publish(ctx, models.EventAddToCart, map[string]interface{}{
		"productId": productID,
		"quantity":  quantity,
		"userId":    userID,
	})

	logger.Info("item added to cart", slog.Float64("totalAmount", cart.TotalAmount))
	return cart, nil
}

// UpdateItem меняет количество позиции. Ноль и меньше удаляет позицию,
// положительное количество перепроверяется против живого остатка.
func (s *cartService) UpdateItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	const op = "service.CartService.UpdateItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("productID", productID), slog.Int("quantity", quantity))

	cart, err := s.cartRepo.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Cart not found"))
		}
		logger.Error("failed to get cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}

	item := cart.FindItem(productID)
	if item == nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Item not found in cart"))
	}

	if quantity <= 0 {
		cart.RemoveItem(productID)
	} else {
		product, err := s.productRepo.GetProductByID(ctx, productID)
		if err != nil {
			if errors.Is(err, storage.ErrProductNotFound) {
				return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Invalid quantity or insufficient stock"))
			}
			logger.Error("failed to get product", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
		}
		if quantity > product.Stock {
			logger.Warn("quantity exceeds stock", slog.Int("stock", product.Stock))
			return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Invalid quantity or insufficient stock"))
		}
		item.Quantity = quantity
	}

	cart.Recalculate()
	if err := s.cartRepo.SaveCart(ctx, cart, s.cartTTL); err != nil {
		logger.Error("failed to save cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to save cart: %w", op, err)
	}
	return cart, nil
}

// RemoveItem убирает позицию из корзины. Удаление отсутствующей позиции — no-op.
func (s *cartService) RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {
	const op = "service.CartService.RemoveItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("productID", productID))

	cart, err := s.cartRepo.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Cart not found"))
		}
		logger.Error("failed to get cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}

	cart.RemoveItem(productID)
	cart.Recalculate()
	if err := s.cartRepo.SaveCart(ctx, cart, s.cartTTL); err != nil {
		logger.Error("failed to save cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to save cart: %w", op, err)
	}
	return cart, nil
}

// Clear опустошает корзину, не удаляя её запись.
func (s *cartService) Clear(ctx context.Context, userID int64) error {
	const op = "service.CartService.Clear"

	if err := s.cartRepo.ClearCart(ctx, userID); err != nil {
		s.log.Error("failed to clear cart", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: failed to clear cart: %w", op, err)
	}
	return nil
}

// Validate сверяет каждую позицию с живым состоянием каталога и чинит
// расхождения на месте: пропавшие и неактивные товары выкидываются,
// количество ужимается до остатка, устаревшие цены обновляются.
// Несогласованность — не ошибка, а отчёт.
func (s *cartService) Validate(ctx context.Context, userID int64) (*CartValidation, error) {
	const op = "service.CartService.Validate"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	cart, err := s.cartRepo.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			return &CartValidation{Valid: true, Issues: []string{}}, nil
		}
		logger.Error("failed to get cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}

	issues := []string{}
	validItems := make([]*models.CartItem, 0, len(cart.Items))
	changed := false

	for _, item := range cart.Items {
		product, err := s.productRepo.GetProductByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, storage.ErrProductNotFound) {
				issues = append(issues, fmt.Sprintf("Product %s is no longer available", item.ProductName))
				changed = true
				continue
			}
			logger.Error("failed to get product", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
		}
		if !product.IsActive {
			issues = append(issues, fmt.Sprintf("Product %s is no longer available", product.Name))
			changed = true
			continue
		}

		if product.Stock < item.Quantity {
			issues = append(issues, fmt.Sprintf("Only %d units of %s available", product.Stock, product.Name))
			changed = true
			if product.Stock == 0 {
				continue
			}
			item.Quantity = product.Stock
		}
		if product.Price != item.Price {
			issues = append(issues, fmt.Sprintf("Price of %s has changed from %g to %g", product.Name, item.Price, product.Price))
			item.Price = product.Price
			changed = true
		}

		validItems = append(validItems, item)
	}

	if changed {
		cart.Items = validItems
		cart.Recalculate()
		if err := s.cartRepo.SaveCart(ctx, cart, s.cartTTL); err != nil {
			logger.Error("failed to save repaired cart", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to save cart: %w", op, err)
		}
		logger.Info("cart repaired", slog.Int("issues", len(issues)))
	}

	return &CartValidation{Valid: len(issues) == 0, Issues: issues}, nil
}

// publish отправляет событие в сток аналитики. Ошибка доставки только логируется.
func (s *cartService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
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
