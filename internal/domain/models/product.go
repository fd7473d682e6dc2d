package models

import "time"

// Product представляет товар каталога.
// Stock — авторитетный остаток на складе, инвариант stock >= 0
// дополнительно закреплён CHECK-ограничением в БД.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	SellerID    int64     `json:"sellerId"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}
