package models

import "time"

// CartItem — позиция корзины. Price — снимок цены на момент добавления,
// может устареть относительно Product.Price (актуализируется в ValidateCart).
type CartItem struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"productId"`
	ProductName string    `json:"productName,omitempty"` // заполняется через JOIN с products
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
	AddedAt     time.Time `json:"addedAt"`
}

// Cart — активная корзина пользователя, одна на пользователя.
// Позиции уникальны по productID, TotalAmount и TotalItems всегда
// пересчитываются из позиций перед сохранением и никогда не
// устанавливаются напрямую.
type Cart struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"userId"`
	Items       []*CartItem `json:"items"`
	TotalAmount float64     `json:"totalAmount"`
	TotalItems  int         `json:"totalItems"`
	IsActive    bool        `json:"isActive"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// FindItem возвращает позицию по товару или nil, если её нет.
func (c *Cart) FindItem(productID int64) *CartItem {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item
		}
	}
	return nil
}

// RemoveItem убирает позицию по товару. Отсутствие позиции — не ошибка.
func (c *Cart) RemoveItem(productID int64) {
	filtered := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID != productID {
			filtered = append(filtered, item)
		}
	}
	c.Items = filtered
}

// Recalculate пересчитывает TotalAmount и TotalItems из позиций.
// Вызывается перед каждым сохранением корзины.
func (c *Cart) Recalculate() {
	var amount float64
	var items int
	for _, item := range c.Items {
		amount += item.Price * float64(item.Quantity)
		items += item.Quantity
	}
	c.TotalAmount = amount
	c.TotalItems = items
}
