package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/domain/models"
	"github.com/akorchagin/market-api/internal/storage"
)

// ProductInput — данные создания/обновления товара.
type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Category    string
	Stock       int
	ImageURL    string
	IsActive    bool
}

// ProductList — страница каталога.
type ProductList struct {
	Products   []*models.Product `json:"products"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
}

// ProductService — управление каталогом.
type ProductService interface {
	List(ctx context.Context, filter storage.ProductFilter) (*ProductList, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	Create(ctx context.Context, sellerID int64, input ProductInput) (*models.Product, error)
	Update(ctx context.Context, id int64, input ProductInput) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
}

type productService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
}

func NewProductService(log *slog.Logger, productRepo storage.ProductStorage) ProductService {
	return &productService{log: log, productRepo: productRepo}
}

func (s *productService) List(ctx context.Context, filter storage.ProductFilter) (*ProductList, error) {
	const op = "service.ProductService.List"

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 10
	}

	products, total, err := s.productRepo.ListProducts(ctx, filter)
	if err != nil {
		s.log.Error("failed to list products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list products: %w", op, err)
	}

	return &ProductList{
		Products:   products,
		Total:      total,
		Page:       filter.Page,
		TotalPages: (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

func (s *productService) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	const op = "service.ProductService.GetByID"

	product, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Product not found"))
		}
		return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
	}
	return product, nil
}

func (s *productService) Create(ctx context.Context, sellerID int64, input ProductInput) (*models.Product, error) {
	const op = "service.ProductService.Create"
	logger := s.log.With(slog.String("op", op), slog.Int64("sellerID", sellerID))

	if input.Price <= 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Price must be greater than zero"))
	}
	if input.Stock < 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Stock must be non-negative"))
	}

	product := &models.Product{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Category:    input.Category,
		Stock:       input.Stock,
		ImageURL:    input.ImageURL,
		SellerID:    sellerID,
		IsActive:    true,
	}
	product, err := s.productRepo.CreateProduct(ctx, product)
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create product: %w", op, err)
	}

	logger.Info("product created", slog.Int64("productID", product.ID))
	return product, nil
}

func (s *productService) Update(ctx context.Context, id int64, input ProductInput) (*models.Product, error) {
	const op = "service.ProductService.Update"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	if input.Price <= 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Price must be greater than zero"))
	}
	if input.Stock < 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.BadRequest("Stock must be non-negative"))
	}

	product, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("Product not found"))
		}
		return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
	}

	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.Category = input.Category
	product.Stock = input.Stock
	product.ImageURL = input.ImageURL
	product.IsActive = input.IsActive

	if err := s.productRepo.UpdateProduct(ctx, product); err != nil {
		logger.Error("failed to update product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update product: %w", op, err)
	}
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id int64) error {
	const op = "service.ProductService.Delete"

	if err := s.productRepo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return fmt.Errorf("%s: %w", op, apperr.NotFound("Product not found"))
		}
		s.log.Error("failed to delete product", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete product: %w", op, err)
	}
	return nil
}
