package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/domain"
	"github.com/frenetico9/Navalha.Digital/internal/metrics"
	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/rs/zerolog"
)

// Store is the read side the resolver needs.
type Store interface {
	GetShop(ctx context.Context, id string) (*models.Shop, error)
	ListStaff(ctx context.Context, shopID string) ([]*models.Staff, error)
	ListServices(ctx context.Context, shopID string) ([]*models.Service, error)
	GetService(ctx context.Context, id string) (*models.Service, error)
	ListAppointmentsForDate(ctx context.Context, shopID, date string) ([]*models.Appointment, error)
}

type Query struct {
	ShopID          string
	ServiceDuration int // minutes
	Date            string
	StaffID         string

	// IgnoreAppointmentID excludes one appointment from conflicts, used when rescheduling it.
	IgnoreAppointmentID string
}

type Interval struct {
	Start time.Time
	End   time.Time
}

type Resolver struct {
	store  Store
	step   time.Duration
	loc    *time.Location
	now    func() time.Time
	logger *zerolog.Logger
}

func NewResolver(store Store, step time.Duration, loc *time.Location, logger *zerolog.Logger) *Resolver {
	if step <= 0 {
		step = models.DefaultSlotStepMinutes * time.Minute
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Resolver{store: store, step: step, loc: loc, now: time.Now, logger: logger}
}

// WithClock replaces the time source.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

func (r *Resolver) Location() *time.Location { return r.loc }

// resource is one bookable unit: a staff member, or the shop itself when it has no staff.
type resource struct {
	staffID string // empty for the shop
	start   int
	end     int
}

// Slots returns sorted "HH:MM" start times on q.Date at which a service of q.ServiceDuration
// minutes fits at least one free resource. Unknown shops and staff yield an empty list.
func (r *Resolver) Slots(ctx context.Context, q Query) ([]string, error) {
	began := time.Now()
	defer func() { metrics.ObserveSlots(time.Since(began)) }()

	if q.ShopID == "" {
		return nil, fmt.Errorf("%w: shop id is required", domain.ErrInvalidQuery)
	}
	if q.ServiceDuration <= 0 {
		return nil, fmt.Errorf("%w: service duration must be positive", domain.ErrInvalidQuery)
	}
	if q.ServiceDuration > models.MaxServiceDuration {
		return nil, fmt.Errorf("%w: service duration %d exceeds %d minutes", domain.ErrInvalidQuery, q.ServiceDuration, models.MaxServiceDuration)
	}
	day, err := time.ParseInLocation(models.DateLayout, q.Date, r.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", domain.ErrInvalidQuery, q.Date)
	}

	shop, err := r.store.GetShop(ctx, q.ShopID)
	if errors.Is(err, domain.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shop: %w", err)
	}

	resources, err := r.resources(ctx, shop, q.StaffID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return []string{}, nil
	}

	busy, err := r.busyByResource(ctx, shop.ID, q, day, resources)
	if err != nil {
		return nil, err
	}

	now := r.now().In(r.loc)
	isToday := now.Format(models.DateLayout) == q.Date
	duration := time.Duration(q.ServiceDuration) * time.Minute

	seen := make(map[string]bool)
	for _, res := range resources {
		windowStart := atMinutes(day, res.start)
		windowEnd := atMinutes(day, res.end)
		for _, start := range candidateStarts(windowStart, windowEnd, duration, r.step) {
			if isToday && !start.After(now) {
				continue
			}
			if overlapsAny(start, start.Add(duration), busy[res.staffID]) {
				continue
			}
			seen[start.Format(models.ClockLayout)] = true
		}
	}

	slots := make([]string, 0, len(seen))
	for s := range seen {
		slots = append(slots, s)
	}
	sort.Strings(slots)

	r.logger.Debug().
		Str("shop_id", q.ShopID).
		Str("staff_id", q.StaffID).
		Str("date", q.Date).
		Int("duration", q.ServiceDuration).
		Int("slots", len(slots)).
		Msg("availability resolved")

	return slots, nil
}

// SlotsForService resolves the duration from the service record.
func (r *Resolver) SlotsForService(ctx context.Context, shopID, serviceID, date, staffID string) ([]string, error) {
	svc, err := r.store.GetService(ctx, serviceID)
	if errors.Is(err, domain.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if svc.ShopID != shopID {
		return []string{}, nil
	}
	return r.Slots(ctx, Query{ShopID: shopID, ServiceDuration: svc.Duration, Date: date, StaffID: staffID})
}

// IsAvailable reports whether the exact start time is offered for the query.
func (r *Resolver) IsAvailable(ctx context.Context, q Query, clock string) (bool, error) {
	slots, err := r.Slots(ctx, q)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(slots, clock)
	return i < len(slots) && slots[i] == clock, nil
}

func (r *Resolver) resources(ctx context.Context, shop *models.Shop, staffID string, weekday int) ([]resource, error) {
	staff, err := r.store.ListStaff(ctx, shop.ID)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}

	shopHours, shopHasDay := shop.HoursFor(weekday)

	if len(staff) == 0 {
		if staffID != "" || !shopHasDay || !shopHours.IsOpen {
			return nil, nil
		}
		res, ok := window("", shopHours.Start, shopHours.End)
		if !ok {
			return nil, nil
		}
		return []resource{res}, nil
	}

	var out []resource
	for _, s := range staff {
		if staffID != "" && s.ID != staffID {
			continue
		}
		var res resource
		var ok bool
		if h, has := s.HoursFor(weekday); has {
			res, ok = window(s.ID, h.Start, h.End)
		} else if shopHasDay && shopHours.IsOpen {
			res, ok = window(s.ID, shopHours.Start, shopHours.End)
		}
		if ok {
			out = append(out, res)
		}
	}
	return out, nil
}

func window(staffID, start, end string) (resource, bool) {
	s, err := models.ParseClock(start)
	if err != nil {
		return resource{}, false
	}
	e, err := models.ParseClock(end)
	if err != nil || s >= e {
		return resource{}, false
	}
	return resource{staffID: staffID, start: s, end: e}, true
}

// busyByResource maps each resource's staff id to the intervals it cannot be booked in.
func (r *Resolver) busyByResource(ctx context.Context, shopID string, q Query, day time.Time, resources []resource) (map[string][]Interval, error) {
	appts, err := r.store.ListAppointmentsForDate(ctx, shopID, q.Date)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if len(appts) == 0 {
		return map[string][]Interval{}, nil
	}

	services, err := r.store.ListServices(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	durations := make(map[string]int, len(services))
	for _, s := range services {
		durations[s.ID] = s.Duration
	}

	busy := make(map[string][]Interval, len(resources))
	for _, a := range appts {
		if a.IsCancelled() || a.ID == q.IgnoreAppointmentID || a.ShopID != shopID || a.Date != q.Date {
			continue
		}
		dur, ok := durations[a.ServiceID]
		if !ok || dur <= 0 {
			continue
		}
		dur = min(dur, models.MaxServiceDuration)
		startMin, err := models.ParseClock(a.Time)
		if err != nil {
			r.logger.Warn().Str("appointment_id", a.ID).Str("time", a.Time).Msg("skipping appointment with malformed time")
			continue
		}
		start := atMinutes(day, startMin)
		iv := Interval{Start: start, End: start.Add(time.Duration(dur) * time.Minute)}

		for _, res := range resources {
			if res.staffID == "" || a.StaffID == "" || a.StaffID == res.staffID {
				busy[res.staffID] = append(busy[res.staffID], iv)
			}
		}
	}
	return busy, nil
}

func atMinutes(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

// candidateStarts enumerates starts on the step grid from windowStart whose service fits before windowEnd.
func candidateStarts(windowStart, windowEnd time.Time, duration, step time.Duration) []time.Time {
	if duration <= 0 || step <= 0 || !windowEnd.After(windowStart) {
		return nil
	}
	var starts []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		starts = append(starts, t)
	}
	return starts
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
