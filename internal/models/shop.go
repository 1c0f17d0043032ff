package models

import (
	"fmt"
	"time"
)

// WorkingHours is one weekday entry of a shop schedule. DayOfWeek follows time.Weekday (0 = Sunday).
type WorkingHours struct {
	DayOfWeek int    `json:"day_of_week" yaml:"day_of_week"`
	Start     string `json:"start" yaml:"start"`
	End       string `json:"end" yaml:"end"`
	IsOpen    bool   `json:"is_open" yaml:"is_open"`
}

type Shop struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	ResponsibleName string         `json:"responsible_name"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	Address         string         `json:"address"`
	Description     string         `json:"description,omitempty"`
	LogoURL         string         `json:"logo_url,omitempty"`
	CoverImageURL   string         `json:"cover_image_url,omitempty"`
	WorkingHours    []WorkingHours `json:"working_hours"`
	TelegramChatID  int64          `json:"telegram_chat_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// HoursFor returns the schedule entry for a weekday.
func (s *Shop) HoursFor(weekday int) (WorkingHours, bool) {
	for _, wh := range s.WorkingHours {
		if wh.DayOfWeek == weekday {
			return wh, true
		}
	}
	return WorkingHours{}, false
}

// DefaultWorkingHours is the schedule every new shop starts with.
func DefaultWorkingHours() []WorkingHours {
	return []WorkingHours{
		{DayOfWeek: 0, Start: "09:00", End: "18:00", IsOpen: false},
		{DayOfWeek: 1, Start: "09:00", End: "18:00", IsOpen: true},
		{DayOfWeek: 2, Start: "09:00", End: "18:00", IsOpen: true},
		{DayOfWeek: 3, Start: "09:00", End: "18:00", IsOpen: true},
		{DayOfWeek: 4, Start: "09:00", End: "18:00", IsOpen: true},
		{DayOfWeek: 5, Start: "09:00", End: "18:00", IsOpen: true},
		{DayOfWeek: 6, Start: "10:00", End: "16:00", IsOpen: true},
	}
}

// ValidateWorkingHours checks there is exactly one entry per weekday and open days have start < end.
func ValidateWorkingHours(hours []WorkingHours) error {
	if len(hours) != 7 {
		return fmt.Errorf("working hours must have 7 entries, got %d", len(hours))
	}
	seen := make(map[int]bool, 7)
	for _, wh := range hours {
		if wh.DayOfWeek < 0 || wh.DayOfWeek > 6 {
			return fmt.Errorf("invalid day_of_week %d", wh.DayOfWeek)
		}
		if seen[wh.DayOfWeek] {
			return fmt.Errorf("duplicate day_of_week %d", wh.DayOfWeek)
		}
		seen[wh.DayOfWeek] = true
		if !wh.IsOpen {
			continue
		}
		if err := validateRange(wh.Start, wh.End); err != nil {
			return fmt.Errorf("day %d: %w", wh.DayOfWeek, err)
		}
	}
	return nil
}

func validateRange(start, end string) error {
	s, err := ParseClock(start)
	if err != nil {
		return err
	}
	e, err := ParseClock(end)
	if err != nil {
		return err
	}
	if s >= e {
		return fmt.Errorf("start %s must be before end %s", start, end)
	}
	return nil
}
