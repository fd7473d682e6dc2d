package models

import (
	"encoding/json"
	"time"
)

// Типы аналитических событий
const (
	EventPageView    = "page_view"
	EventProductView = "product_view"
	EventAddToCart   = "add_to_cart"
	EventPurchase    = "purchase"
	EventSearch      = "search"
)

// AnalyticsEvent — событие, отправляемое в сток аналитики и сохраняемое
// в рамках пользовательской сессии. Data — произвольный JSON-объект.
type AnalyticsEvent struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// UserSession — сессия пользователя для трекинга.
type UserSession struct {
	SessionID string    `json:"sessionId"`
	UserID    *int64    `json:"userId,omitempty"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	StartedAt time.Time `json:"startedAt"`
}

// ProductView — просмотр карточки товара.
type ProductView struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"productId"`
	UserID    *int64    `json:"userId,omitempty"`
	SessionID string    `json:"sessionId"`
	Referrer  string    `json:"referrer,omitempty"`
	ViewedAt  time.Time `json:"viewedAt"`
}

// ProductStat — продажи одного товара за день.
type ProductStat struct {
	ProductID int64   `json:"productId"`
	Sales     float64 `json:"sales"`
	Quantity  int     `json:"quantity"`
}

// CategoryStat — продажи по категории за день. Orders считает различные
// проданные товары категории, не заказы.
type CategoryStat struct {
	Category string  `json:"category"`
	Sales    float64 `json:"sales"`
	Orders   int     `json:"orders"`
}

// SalesAnalytics — дневной срез продаж, один на дату (upsert по date).
type SalesAnalytics struct {
	ID                int64          `json:"id"`
	Date              time.Time      `json:"date"`
	TotalSales        float64        `json:"totalSales"`
	TotalOrders       int            `json:"totalOrders"`
	TotalUsers        int            `json:"totalUsers"`
	TopProducts       []ProductStat  `json:"topProducts"`
	CategoryBreakdown []CategoryStat `json:"categoryBreakdown"`
}

// DayCount — количество событий за день, для графиков дашборда.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ProductViewCount — суммарные просмотры товара за период.
type ProductViewCount struct {
	ProductID int64 `json:"productId"`
	Views     int   `json:"views"`
}

// DaySales — продажи за день по товару.
type DaySales struct {
	Date   string  `json:"date"`
	Sales  float64 `json:"sales"`
	Orders int     `json:"orders"`
}
