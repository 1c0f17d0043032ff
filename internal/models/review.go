package models

import "time"

type Review struct {
	ID            string     `json:"id"`
	AppointmentID string     `json:"appointment_id"`
	ClientID      string     `json:"client_id"`
	ShopID        string     `json:"shop_id"`
	Rating        int        `json:"rating"` // 1-5
	Comment       string     `json:"comment,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Reply         string     `json:"reply,omitempty"`
	ReplyAt       *time.Time `json:"reply_at,omitempty"`
}

type ReviewView struct {
	Review
	ClientName string `json:"client_name"`
}

// Rating aggregates the reviews of one shop.
type Rating struct {
	Average float64 `json:"average_rating"`
	Count   int     `json:"review_count"`
}
