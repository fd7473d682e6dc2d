package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/akorchagin/market-api/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderFilter — параметры постраничной выборки заказов.
type OrderFilter struct {
	Status string // пустая строка — без фильтра
	Page   int
	Limit  int
}

// OrderStorage описывает методы для работы с заказами. Методы с суффиксом Tx
// выполняются в транзакции вызывающего: создание заказа и отмена должны
// фиксироваться атомарно вместе с движением остатков.
type OrderStorage interface {
	CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error
	GetOrderByID(ctx context.Context, orderID, userID int64) (*models.Order, error)
	GetOrderByIDTx(ctx context.Context, tx *sql.Tx, orderID, userID int64) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64, filter OrderFilter) ([]*models.Order, int, error)
	GetAllOrdersByUser(ctx context.Context, userID int64) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, userID int64, status string) error
	UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, orderID, userID int64, status string) error
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, total_amount, status, payment_status, payment_method, notes,
	ship_street, ship_city, ship_state, ship_zip, ship_country, created_at, updated_at`

func scanOrder(scanner interface{ Scan(...interface{}) error }) (*models.Order, error) {
	o := &models.Order{}
	if err := scanner.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.PaymentStatus,
		&o.PaymentMethod, &o.Notes,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.ZipCode, &o.ShippingAddress.Country,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

// CreateOrder вставляет заказ вместе с позициями в рамках транзакции вызывающего.
func (r *orderRepository) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, total_amount, status, payment_status, payment_method, notes,
		                     ship_street, ship_city, ship_state, ship_zip, ship_country, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		order.UserID, order.TotalAmount, order.Status, order.PaymentStatus, order.PaymentMethod, order.Notes,
		order.ShippingAddress.Street, order.ShippingAddress.City, order.ShippingAddress.State,
		order.ShippingAddress.ZipCode, order.ShippingAddress.Country,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range order.Items {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			order.ID, item.ProductID, item.Quantity, item.Price,
		).Scan(&item.ID); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}, orderIDs []int64) (map[int64][]*models.OrderItem, error) {
	if len(orderIDs) == 0 {
		return map[int64][]*models.OrderItem{}, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT oi.order_id, oi.id, oi.product_id, p.name, oi.quantity, oi.price
		 FROM order_items oi
		 JOIN products p ON oi.product_id = p.id
		 WHERE oi.order_id = ANY($1)
		 ORDER BY oi.id`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[int64][]*models.OrderItem)
	for rows.Next() {
		var orderID int64
		item := &models.OrderItem{}
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND user_id = $2", orderID, userID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, r.db, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (r *orderRepository) GetOrderByIDTx(ctx context.Context, tx *sql.Tx, orderID, userID int64) (*models.Order, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE", orderID, userID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, tx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

// ListOrdersByUser возвращает страницу заказов (новые сначала) и общее количество.
func (r *orderRepository) ListOrdersByUser(ctx context.Context, userID int64, filter OrderFilter) ([]*models.Order, int, error) {
	where := "WHERE user_id = $1"
	args := []interface{}{userID}
	idx := 2

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filter.Status)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT "+orderColumns+" FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", where, idx, idx+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []*models.Order
	var ids []int64
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	items, err := r.loadItems(ctx, r.db, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, order := range orders {
		order.Items = items[order.ID]
	}
	return orders, total, nil
}

// GetAllOrdersByUser возвращает все заказы пользователя без позиций (для статистики).
func (r *orderRepository) GetAllOrdersByUser(ctx context.Context, userID int64) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, orderID, userID int64, status string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3",
		status, orderID, userID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, orderID, userID int64, status string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3",
		status, orderID, userID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
