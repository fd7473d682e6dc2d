package models

import "time"

// Статусы заказа
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Статусы оплаты
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// statusTransitions — допустимые переходы статуса. Статус движется только
// вперёд: pending → confirmed → shipped → delivered; cancelled достижим
// исключительно через отмену заказа (pending/confirmed), см. Order.CanCancel.
var statusTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusConfirmed},
	OrderStatusConfirmed: {OrderStatusShipped},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// ValidOrderStatus проверяет, что статус входит в число распознаваемых.
func ValidOrderStatus(status string) bool {
	_, ok := statusTransitions[status]
	return ok
}

// CanTransition проверяет допустимость перехода from → to.
func CanTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Address — снимок адреса доставки, хранится в составе заказа.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// OrderItem — позиция заказа. Price — снимок авторитетной цены товара
// на момент создания заказа, после создания неизменен.
type OrderItem struct {
	ID          int64   `json:"id"`
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName,omitempty"` // заполняется через JOIN с products
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Order — заказ. После создания Items и TotalAmount неизменяемы,
// меняться могут только Status, PaymentStatus и UpdatedAt.
type Order struct {
	ID              int64        `json:"id"`
	UserID          int64        `json:"userId"`
	Items           []*OrderItem `json:"items"`
	TotalAmount     float64      `json:"totalAmount"`
	Status          string       `json:"status"`
	PaymentStatus   string       `json:"paymentStatus"`
	PaymentMethod   string       `json:"paymentMethod"`
	Notes           string       `json:"notes,omitempty"`
	ShippingAddress Address      `json:"shippingAddress"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// CanCancel — отмена возможна только из pending или confirmed.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}
