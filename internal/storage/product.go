package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akorchagin/market-api/internal/domain/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock возвращается условным декрементом, когда
	// на складе меньше, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductFilter — типизированные параметры выборки каталога.
type ProductFilter struct {
	Search   string
	Category string
	MinPrice *float64
	MaxPrice *float64
	Page     int
	Limit    int
}

// ProductStorage описывает методы для работы с каталогом товаров.
type ProductStorage interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	// GetProductByIDTx читает товар в рамках транзакции (валидация при создании заказа).
	GetProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]*models.Product, int, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	// DecrementStock уменьшает остаток условно: stock >= qty, иначе ErrInsufficientStock.
	DecrementStock(ctx context.Context, tx *sql.Tx, id int64, qty int) error
	IncrementStock(ctx context.Context, tx *sql.Tx, id int64, qty int) error
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

const productColumns = "id, name, description, price, category, stock, image_url, seller_id, is_active, created_at"

func scanProductRow(scanner interface{ Scan(...interface{}) error }) (*models.Product, error) {
	p := &models.Product{}
	if err := scanner.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &p.ImageURL, &p.SellerID, &p.IsActive, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	return scanProductRow(row)
}

func (r *productRepository) GetProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	return scanProductRow(row)
}

// ListProducts возвращает страницу активных товаров под фильтром и общее количество.
func (r *productRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]*models.Product, int, error) {
	where := "WHERE is_active = TRUE"
	args := []interface{}{}
	idx := 1

	if filter.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", idx, idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", idx)
		args = append(args, filter.Category)
		idx++
	}
	if filter.MinPrice != nil {
		where += fmt.Sprintf(" AND price >= $%d", idx)
		args = append(args, *filter.MinPrice)
		idx++
	}
	if filter.MaxPrice != nil {
		where += fmt.Sprintf(" AND price <= $%d", idx)
		args = append(args, *filter.MaxPrice)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT "+productColumns+" FROM products %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", where, idx, idx+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProductRow(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO products (name, description, price, category, stock, image_url, seller_id, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW()) RETURNING id, created_at`,
		product.Name, product.Description, product.Price, product.Category,
		product.Stock, product.ImageURL, product.SellerID, product.IsActive,
	).Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (r *productRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = $1, description = $2, price = $3, category = $4,
		 stock = $5, image_url = $6, is_active = $7 WHERE id = $8`,
		product.Name, product.Description, product.Price, product.Category,
		product.Stock, product.ImageURL, product.IsActive, product.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DecrementStock — условное списание: сработает только при stock >= qty,
// поэтому остаток не может уйти в минус даже при конкурентных заказах.
func (r *productRepository) DecrementStock(ctx context.Context, tx *sql.Tx, id int64, qty int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
		qty, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *productRepository) IncrementStock(ctx context.Context, tx *sql.Tx, id int64, qty int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock + $1 WHERE id = $2",
		qty, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}
