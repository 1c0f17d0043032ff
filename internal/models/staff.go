package models

import (
	"fmt"
	"slices"
	"time"
)

// StaffHours overrides the shop schedule for one weekday. Presence means the barber works that day.
type StaffHours struct {
	DayOfWeek int    `json:"day_of_week" yaml:"day_of_week"`
	Start     string `json:"start" yaml:"start"`
	End       string `json:"end" yaml:"end"`
}

type Staff struct {
	ID         string       `json:"id"`
	ShopID     string       `json:"shop_id"`
	Name       string       `json:"name"`
	Hours      []StaffHours `json:"hours"`
	ServiceIDs []string     `json:"service_ids"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (s *Staff) HoursFor(weekday int) (StaffHours, bool) {
	for _, h := range s.Hours {
		if h.DayOfWeek == weekday {
			return h, true
		}
	}
	return StaffHours{}, false
}

// Performs reports whether the staff member is assigned to the service.
func (s *Staff) Performs(serviceID string) bool {
	return slices.Contains(s.ServiceIDs, serviceID)
}

func ValidateStaffHours(hours []StaffHours) error {
	seen := make(map[int]bool, len(hours))
	for _, h := range hours {
		if h.DayOfWeek < 0 || h.DayOfWeek > 6 {
			return fmt.Errorf("invalid day_of_week %d", h.DayOfWeek)
		}
		if seen[h.DayOfWeek] {
			return fmt.Errorf("duplicate day_of_week %d", h.DayOfWeek)
		}
		seen[h.DayOfWeek] = true
		if err := validateRange(h.Start, h.End); err != nil {
			return fmt.Errorf("day %d: %w", h.DayOfWeek, err)
		}
	}
	return nil
}
