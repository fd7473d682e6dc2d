package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/jwt-new/jwtmiddleware"
	"github.com/akorchagin/market-api/internal/lib/api"
	"github.com/akorchagin/market-api/internal/service"
	"github.com/akorchagin/market-api/internal/storage"
)

// ProductRequest представляет структуру запроса создания/обновления товара
type ProductRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Category    string  `json:"category" validate:"required"`
	Stock       int     `json:"stock" validate:"gte=0"`
	ImageURL    string  `json:"imageUrl"`
	IsActive    *bool   `json:"isActive"`
}

// ListProductsHandler обрабатывает GET /api/products — публичный каталог.
func ListProductsHandler(log *slog.Logger, env string, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListProductsHandler"
		logger := log.With(slog.String("op", op))

		filter := storage.ProductFilter{
			Search:   r.URL.Query().Get("search"),
			Category: r.URL.Query().Get("category"),
			MinPrice: queryFloat(r, "minPrice"),
			MaxPrice: queryFloat(r, "maxPrice"),
			Page:     queryInt(r, "page", 1),
			Limit:    queryInt(r, "limit", 10),
		}

		list, err := productService.List(r.Context(), filter)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Products retrieved", list)
	}
}

// GetProductHandler обрабатывает GET /api/products/{id}
func GetProductHandler(log *slog.Logger, env string, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetProductHandler"
		logger := log.With(slog.String("op", op))

		id, err := idParam(r, "id")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		product, err := productService.GetByID(r.Context(), id)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Product retrieved", product)
	}
}

// CreateProductHandler обрабатывает POST /api/products (seller/admin).
func CreateProductHandler(log *slog.Logger, env string, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateProductHandler"
		logger := log.With(slog.String("op", op))

		sellerID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		var req ProductRequest
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

		product, err := productService.Create(r.Context(), sellerID, productInput(req))
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.Created(w, "Product created", product)
	}
}

// UpdateProductHandler обрабатывает PUT /api/products/{id} (seller/admin).
func UpdateProductHandler(log *slog.Logger, env string, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateProductHandler"
		logger := log.With(slog.String("op", op))

		id, err := idParam(r, "id")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		var req ProductRequest
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

		product, err := productService.Update(r.Context(), id, productInput(req))
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Product updated", product)
	}
}

// DeleteProductHandler обрабатывает DELETE /api/products/{id} (seller/admin).
func DeleteProductHandler(log *slog.Logger, env string, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteProductHandler"
		logger := log.With(slog.String("op", op))

		id, err := idParam(r, "id")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		if err := productService.Delete(r.Context(), id); err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Product deleted", nil)
	}
}

func productInput(req ProductRequest) service.ProductInput {
	in := service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		IsActive:    true,
	}
	if req.IsActive != nil {
		in.IsActive = *req.IsActive
	}
	return in
}
