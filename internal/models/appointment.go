package models

import "time"

type Appointment struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	ShopID    string    `json:"shop_id"`
	ServiceID string    `json:"service_id"`
	StaffID   string    `json:"staff_id,omitempty"` // empty when any barber may serve
	Date      string    `json:"date"`               // YYYY-MM-DD
	Time      string    `json:"time"`               // HH:MM
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// IsCancelled reports whether the appointment no longer occupies its slot.
func (a *Appointment) IsCancelled() bool {
	return a.Status == StatusCancelledByClient || a.Status == StatusCancelledByAdmin
}

// CanTransition reports whether status may move from -> to. Completed and cancelled are terminal.
func CanTransition(from, to string) bool {
	if from != StatusScheduled {
		return false
	}
	switch to {
	case StatusCompleted, StatusCancelledByClient, StatusCancelledByAdmin:
		return true
	default:
		return false
	}
}

// AppointmentView joins an appointment with display names at read time.
type AppointmentView struct {
	Appointment
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone,omitempty"`
	ShopName    string `json:"shop_name"`
	ServiceName string `json:"service_name"`
	Duration    int    `json:"duration"`
	StaffName   string `json:"staff_name,omitempty"`
}

// AppointmentFilter narrows appointment listings. Empty fields match everything.
type AppointmentFilter struct {
	ShopID   string
	ClientID string
	DateFrom string
	DateTo   string
	Status   string
}
