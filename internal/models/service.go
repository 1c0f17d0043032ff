package models

import "time"

type Service struct {
	ID          string    `json:"id"`
	ShopID      string    `json:"shop_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Duration    int       `json:"duration"` // minutes
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ServiceSummary is the short form shown on search cards.
type ServiceSummary struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}
