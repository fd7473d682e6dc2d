package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akorchagin/market-api/internal/domain/models"
)

var ErrCartNotFound = errors.New("cart not found")

// CartStorage описывает персистентность корзины. Корзина сохраняется как
// агрегат целиком: строка carts + полный набор позиций.
type CartStorage interface {
	// GetActiveCartByUser возвращает активную непросроченную корзину пользователя.
	GetActiveCartByUser(ctx context.Context, userID int64) (*models.Cart, error)
	// SaveCart — upsert агрегата. Тоталы должны быть пересчитаны вызывающим.
	SaveCart(ctx context.Context, cart *models.Cart, ttl time.Duration) error
	// ClearCart опустошает корзину и обнуляет тоталы, не удаляя саму запись.
	ClearCart(ctx context.Context, userID int64) error
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetActiveCartByUser(ctx context.Context, userID int64) (*models.Cart, error) {
	cart := &models.Cart{}
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, total_amount, total_items, is_active, expires_at, created_at, updated_at
		 FROM carts WHERE user_id = $1 AND is_active = TRUE AND expires_at > NOW()`, userID)
	if err := row.Scan(&cart.ID, &cart.UserID, &cart.TotalAmount, &cart.TotalItems,
		&cart.IsActive, &cart.ExpiresAt, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT ci.id, ci.product_id, p.name, ci.quantity, ci.price, ci.added_at
		 FROM cart_items ci
		 JOIN products p ON ci.product_id = p.id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.added_at`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		item := &models.CartItem{}
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price, &item.AddedAt); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cart, nil
}

// SaveCart перезаписывает агрегат в одной транзакции: upsert строки carts,
// затем полная замена позиций. TTL корзины продлевается при каждом сохранении.
func (r *cartRepository) SaveCart(ctx context.Context, cart *models.Cart, ttl time.Duration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cart transaction: %w", err)
	}

	expiresAt := time.Now().Add(ttl)
	if cart.ID == 0 {
		err = tx.QueryRowContext(ctx,
			`INSERT INTO carts (user_id, total_amount, total_items, is_active, expires_at, created_at, updated_at)
			 VALUES ($1, $2, $3, TRUE, $4, NOW(), NOW()) RETURNING id`,
			cart.UserID, cart.TotalAmount, cart.TotalItems, expiresAt,
		).Scan(&cart.ID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE carts SET total_amount = $1, total_items = $2, expires_at = $3, updated_at = NOW()
			 WHERE id = $4`,
			cart.TotalAmount, cart.TotalItems, expiresAt, cart.ID,
		)
	}
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("cart rollback failed: %v (after: %w)", rbErr, err)
		}
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cart.ID); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("cart rollback failed: %v (after: %w)", rbErr, err)
		}
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	for _, item := range cart.Items {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity, price, added_at)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			cart.ID, item.ProductID, item.Quantity, item.Price, item.AddedAt,
		).Scan(&item.ID); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("cart rollback failed: %v (after: %w)", rbErr, err)
			}
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cart transaction: %w", err)
	}
	cart.ExpiresAt = expiresAt
	return nil
}

func (r *cartRepository) ClearCart(ctx context.Context, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cart transaction: %w", err)
	}

	// Отсутствие активной корзины — не ошибка, очистка идемпотентна.
	var cartID int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM carts WHERE user_id = $1 AND is_active = TRUE", userID,
	).Scan(&cartID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("cart rollback failed: %v (after: %w)", rbErr, err)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to find cart: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("cart rollback failed: %v (after: %w)", rbErr, err)
		}
		return fmt.Errorf("failed to delete cart items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE carts SET total_amount = 0, total_items = 0, updated_at = NOW() WHERE id = $1", cartID,
	); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("cart rollback failed: %v (after: %w)", rbErr, err)
		}
		return fmt.Errorf("failed to reset cart totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cart transaction: %w", err)
	}
	return nil
}
