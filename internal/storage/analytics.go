package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/akorchagin/market-api/internal/domain/models"
)

// AnalyticsStorage описывает персистентность трекинга и дневных срезов продаж.
type AnalyticsStorage interface {
	CreateSession(ctx context.Context, session *models.UserSession) error
	AddSessionEvent(ctx context.Context, sessionID string, event models.AnalyticsEvent) error
	CreateProductView(ctx context.Context, view *models.ProductView) error
	// OrdersForDay возвращает оплаченные заказы за сутки вместе с позициями.
	OrdersForDay(ctx context.Context, day time.Time) ([]*models.Order, error)
	ProductCategories(ctx context.Context, ids []int64) (map[int64]string, error)
	UpsertDailySales(ctx context.Context, sa *models.SalesAnalytics) error
	ListDailySales(ctx context.Context, from time.Time) ([]*models.SalesAnalytics, error)
	SignupsByDay(ctx context.Context, from time.Time) ([]models.DayCount, error)
	ProductViewsByDay(ctx context.Context, productID int64, from time.Time) ([]models.DayCount, error)
	ProductSalesByDay(ctx context.Context, productID int64, from time.Time) ([]models.DaySales, error)
	TopViewedProducts(ctx context.Context, from time.Time, limit int) ([]models.ProductViewCount, error)
}

type analyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) AnalyticsStorage {
	return &analyticsRepository{db: db}
}

// CreateSession создает сессию; повторный трекинг той же сессии — no-op.
func (r *analyticsRepository) CreateSession(ctx context.Context, session *models.UserSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_sessions (session_id, user_id, ip_address, user_agent, started_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (session_id) DO NOTHING`,
		session.SessionID, session.UserID, session.IPAddress, session.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *analyticsRepository) AddSessionEvent(ctx context.Context, sessionID string, event models.AnalyticsEvent) error {
	payload := event.Data
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_events (session_id, type, payload, occurred_at)
		 VALUES ($1, $2, $3, $4)`,
		sessionID, event.Type, []byte(payload), event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to add session event: %w", err)
	}
	return nil
}

func (r *analyticsRepository) CreateProductView(ctx context.Context, view *models.ProductView) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO product_views (product_id, user_id, session_id, referrer, viewed_at)
		 VALUES ($1, $2, $3, $4, NOW()) RETURNING id, viewed_at`,
		view.ProductID, view.UserID, view.SessionID, view.Referrer,
	).Scan(&view.ID, &view.ViewedAt)
	if err != nil {
		return fmt.Errorf("failed to create product view: %w", err)
	}
	return nil
}

func (r *analyticsRepository) OrdersForDay(ctx context.Context, day time.Time) ([]*models.Order, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+` FROM orders
		 WHERE created_at >= $1 AND created_at < $2 AND payment_status = $3`,
		start, end, models.PaymentStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	var ids []int64
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Позиции заказов подгружаются тем же репозиторным помощником, что и в OrderStorage.
	items, err := (&orderRepository{db: r.db}).loadItems(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		order.Items = items[order.ID]
	}
	return orders, nil
}

func (r *analyticsRepository) ProductCategories(ctx context.Context, ids []int64) (map[int64]string, error) {
	categories := make(map[int64]string)
	if len(ids) == 0 {
		return categories, nil
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, category FROM products WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var category string
		if err := rows.Scan(&id, &category); err != nil {
			return nil, err
		}
		categories[id] = category
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

// UpsertDailySales сохраняет дневной срез, один на дату.
func (r *analyticsRepository) UpsertDailySales(ctx context.Context, sa *models.SalesAnalytics) error {
	topProducts, err := json.Marshal(sa.TopProducts)
	if err != nil {
		return fmt.Errorf("failed to marshal top products: %w", err)
	}
	breakdown, err := json.Marshal(sa.CategoryBreakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal category breakdown: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO sales_analytics (date, total_sales, total_orders, total_users, top_products, category_breakdown)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (date) DO UPDATE SET
		   total_sales = EXCLUDED.total_sales,
		   total_orders = EXCLUDED.total_orders,
		   total_users = EXCLUDED.total_users,
		   top_products = EXCLUDED.top_products,
		   category_breakdown = EXCLUDED.category_breakdown
		 RETURNING id`,
		sa.Date, sa.TotalSales, sa.TotalOrders, sa.TotalUsers, topProducts, breakdown,
	).Scan(&sa.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert daily sales: %w", err)
	}
	return nil
}

func (r *analyticsRepository) ListDailySales(ctx context.Context, from time.Time) ([]*models.SalesAnalytics, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, total_sales, total_orders, total_users, top_products, category_breakdown
		 FROM sales_analytics WHERE date >= $1 ORDER BY date`, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.SalesAnalytics
	for rows.Next() {
		sa := &models.SalesAnalytics{}
		var topProducts, breakdown []byte
		if err := rows.Scan(&sa.ID, &sa.Date, &sa.TotalSales, &sa.TotalOrders, &sa.TotalUsers, &topProducts, &breakdown); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(topProducts, &sa.TopProducts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal top products: %w", err)
		}
		if err := json.Unmarshal(breakdown, &sa.CategoryBreakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal category breakdown: %w", err)
		}
		result = append(result, sa)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *analyticsRepository) SignupsByDay(ctx context.Context, from time.Time) ([]models.DayCount, error) {
	return r.dayCounts(ctx,
		`SELECT to_char(created_at, 'YYYY-MM-DD') AS day, COUNT(*)
		 FROM users WHERE created_at >= $1 GROUP BY day ORDER BY day`, from)
}

func (r *analyticsRepository) ProductViewsByDay(ctx context.Context, productID int64, from time.Time) ([]models.DayCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT to_char(viewed_at, 'YYYY-MM-DD') AS day, COUNT(*)
		 FROM product_views WHERE product_id = $1 AND viewed_at >= $2
		 GROUP BY day ORDER BY day`, productID, from)
	if err != nil {
		return nil, err
	}
	return scanDayCounts(rows)
}

func (r *analyticsRepository) ProductSalesByDay(ctx context.Context, productID int64, from time.Time) ([]models.DaySales, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT to_char(o.created_at, 'YYYY-MM-DD') AS day,
		        SUM(oi.price * oi.quantity), COUNT(DISTINCT o.id)
		 FROM orders o
		 JOIN order_items oi ON oi.order_id = o.id
		 WHERE oi.product_id = $1 AND o.created_at >= $2 AND o.payment_status = $3
		 GROUP BY day ORDER BY day`, productID, from, models.PaymentStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.DaySales
	for rows.Next() {
		var ds models.DaySales
		if err := rows.Scan(&ds.Date, &ds.Sales, &ds.Orders); err != nil {
			return nil, err
		}
		result = append(result, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// TopViewedProducts возвращает товары с наибольшим числом просмотров.
func (r *analyticsRepository) TopViewedProducts(ctx context.Context, from time.Time, limit int) ([]models.ProductViewCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, COUNT(*) AS views
		 FROM product_views WHERE viewed_at >= $1
		 GROUP BY product_id ORDER BY views DESC LIMIT $2`, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ProductViewCount
	for rows.Next() {
		var pv models.ProductViewCount
		if err := rows.Scan(&pv.ProductID, &pv.Views); err != nil {
			return nil, err
		}
		result = append(result, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *analyticsRepository) dayCounts(ctx context.Context, query string, args ...interface{}) ([]models.DayCount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanDayCounts(rows)
}

func scanDayCounts(rows *sql.Rows) ([]models.DayCount, error) {
	defer rows.Close()
	var result []models.DayCount
	for rows.Next() {
		var dc models.DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, err
		}
		result = append(result, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
