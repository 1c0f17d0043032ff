package service

import (
	"context"
	"fmt"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/availability"
	"github.com/frenetico9/Navalha.Digital/internal/domain"
	"github.com/frenetico9/Navalha.Digital/internal/events"
	"github.com/frenetico9/Navalha.Digital/internal/metrics"
	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	SyncTaskUpsert       = "upsert"
	SyncTaskUpdateStatus = "update_status"
)

// BookingOptions tunes the booking flow; zero values fall back to defaults.
type BookingOptions struct {
	MaxBookingDays int
	LockTTL        time.Duration
	RateLimit      int
	RateWindow     time.Duration
}

type BookingService struct {
	repo         domain.Repository
	resolver     *availability.Resolver
	locker       domain.SlotLocker
	limiter      domain.RateLimiter
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	opts         BookingOptions
	now          func() time.Time
	logger       *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	resolver *availability.Resolver,
	locker domain.SlotLocker,
	limiter domain.RateLimiter,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	opts BookingOptions,
	logger *zerolog.Logger,
) *BookingService {
	if opts.MaxBookingDays < 0 {
		opts.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = models.DefaultLockTTLSeconds * time.Second
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	return &BookingService{
		repo:         repo,
		resolver:     resolver,
		locker:       locker,
		limiter:      limiter,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		opts:         opts,
		now:          time.Now,
		logger:       logger,
	}
}

type AppointmentRequest struct {
	ClientID  string `json:"client_id"`
	ShopID    string `json:"shop_id"`
	ServiceID string `json:"service_id"`
	StaffID   string `json:"staff_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Notes     string `json:"notes"`
}

// AppointmentUpdate reschedules or annotates a scheduled appointment.
// Version, when set, must match the stored one.
type AppointmentUpdate struct {
	Date    *string `json:"date"`
	Time    *string `json:"time"`
	StaffID *string `json:"staff_id"`
	Notes   *string `json:"notes"`
	Version int64   `json:"version"`
}

// ValidateBookingDate rejects days before today and beyond the booking horizon.
func (s *BookingService) ValidateBookingDate(date string) error {
	loc := s.resolver.Location()
	day, err := time.ParseInLocation(models.DateLayout, date, loc)
	if err != nil {
		return invalid("date %q must be YYYY-MM-DD", date)
	}

	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if day.Before(today) {
		return domain.ErrPastDate
	}
	if s.opts.MaxBookingDays > 0 && day.After(today.AddDate(0, 0, s.opts.MaxBookingDays)) {
		return domain.ErrDateTooFar
	}
	return nil
}

func (s *BookingService) CreateAppointment(ctx context.Context, req AppointmentRequest) (*models.AppointmentView, error) {
	if err := required(map[string]string{
		"client_id": req.ClientID, "shop_id": req.ShopID, "service_id": req.ServiceID,
		"date": req.Date, "time": req.Time,
	}); err != nil {
		return nil, err
	}
	if _, err := models.ParseClock(req.Time); err != nil {
		return nil, invalid("time: %v", err)
	}
	if err := s.checkRate(ctx, "booking:"+req.ClientID); err != nil {
		return nil, err
	}

	client, err := s.repo.GetUserByID(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if client.Type != models.UserTypeClient {
		return nil, domain.ErrForbidden
	}
	if _, err := s.repo.GetShop(ctx, req.ShopID); err != nil {
		return nil, fmt.Errorf("shop: %w", err)
	}
	svc, err := s.activeService(ctx, req.ShopID, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if err := s.checkStaff(ctx, req.ShopID, req.StaffID, req.ServiceID); err != nil {
		return nil, err
	}
	if err := s.ValidateBookingDate(req.Date); err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		ID:        uuid.NewString(),
		ClientID:  req.ClientID,
		ShopID:    req.ShopID,
		ServiceID: req.ServiceID,
		StaffID:   req.StaffID,
		Date:      req.Date,
		Time:      req.Time,
		Status:    models.StatusScheduled,
		Notes:     req.Notes,
	}

	err = s.withMonthQuota(ctx, req.ShopID, req.Date, func() error {
		return s.withLock(ctx, slotLockKey(req.ShopID, req.Date), func() error {
			q := availability.Query{
				ShopID:          req.ShopID,
				ServiceDuration: svc.Duration,
				Date:            req.Date,
				StaffID:         req.StaffID,
			}
			ok, err := s.resolver.IsAvailable(ctx, q, req.Time)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrSlotUnavailable
			}
			return s.repo.CreateAppointmentWithLock(ctx, appt)
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.IncAppointment(appt.Status)
	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("shop_id", appt.ShopID).
		Str("date", appt.Date).
		Str("time", appt.Time).
		Msg("appointment created")

	view := s.viewOf(ctx, appt)
	s.publishEvent(events.EventAppointmentCreated, view, appt.ClientID)
	s.enqueueSync(ctx, SyncTaskUpsert, appt)
	return view, nil
}

func (s *BookingService) UpdateAppointment(ctx context.Context, id, actorID string, upd AppointmentUpdate) (*models.AppointmentView, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != appt.ClientID && actorID != appt.ShopID {
		return nil, domain.ErrForbidden
	}
	if upd.Version != 0 && upd.Version != appt.Version {
		return nil, domain.ErrConcurrentModification
	}
	if appt.Status != models.StatusScheduled {
		return nil, domain.ErrInvalidTransition
	}

	moved := false
	fromMonth := monthOf(appt.Date)
	if upd.Date != nil && *upd.Date != appt.Date {
		if err := s.ValidateBookingDate(*upd.Date); err != nil {
			return nil, err
		}
		appt.Date = *upd.Date
		moved = true
	}
	if upd.Time != nil && *upd.Time != appt.Time {
		if _, err := models.ParseClock(*upd.Time); err != nil {
			return nil, invalid("time: %v", err)
		}
		appt.Time = *upd.Time
		moved = true
	}
	if upd.StaffID != nil && *upd.StaffID != appt.StaffID {
		if err := s.checkStaff(ctx, appt.ShopID, *upd.StaffID, appt.ServiceID); err != nil {
			return nil, err
		}
		appt.StaffID = *upd.StaffID
		moved = true
	}
	setString(&appt.Notes, upd.Notes)

	if !moved {
		if err := s.repo.UpdateAppointmentWithVersion(ctx, appt); err != nil {
			return nil, err
		}
		view := s.viewOf(ctx, appt)
		s.enqueueSync(ctx, SyncTaskUpsert, appt)
		return view, nil
	}

	svc, err := s.repo.GetService(ctx, appt.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	reschedule := func() error {
		return s.withLock(ctx, slotLockKey(appt.ShopID, appt.Date), func() error {
			q := availability.Query{
				ShopID:              appt.ShopID,
				ServiceDuration:     svc.Duration,
				Date:                appt.Date,
				StaffID:             appt.StaffID,
				IgnoreAppointmentID: appt.ID,
			}
			ok, err := s.resolver.IsAvailable(ctx, q, appt.Time)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrSlotUnavailable
			}
			return s.repo.UpdateAppointmentWithVersion(ctx, appt)
		})
	}
	// перенос в другой месяц расходует квоту нового месяца
	if monthOf(appt.Date) != fromMonth {
		err = s.withMonthQuota(ctx, appt.ShopID, appt.Date, reschedule)
	} else {
		err = reschedule()
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("appointment_id", appt.ID).Str("date", appt.Date).Str("time", appt.Time).Msg("appointment rescheduled")
	view := s.viewOf(ctx, appt)
	s.publishEvent(events.EventAppointmentRescheduled, view, actorID)
	s.enqueueSync(ctx, SyncTaskUpsert, appt)
	return view, nil
}

// Cancel cancels on behalf of the client or the shop; the status records which one.
func (s *BookingService) Cancel(ctx context.Context, id, actorID string, version int64) (*models.AppointmentView, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	var status string
	switch actorID {
	case appt.ClientID:
		status = models.StatusCancelledByClient
	case appt.ShopID:
		status = models.StatusCancelledByAdmin
	default:
		return nil, domain.ErrForbidden
	}
	return s.transition(ctx, appt, version, status, actorID, events.EventAppointmentCancelled)
}

func (s *BookingService) Complete(ctx context.Context, id, actorID string, version int64) (*models.AppointmentView, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != appt.ShopID {
		return nil, domain.ErrForbidden
	}
	return s.transition(ctx, appt, version, models.StatusCompleted, actorID, events.EventAppointmentCompleted)
}

func (s *BookingService) transition(ctx context.Context, appt *models.Appointment, version int64, status, actorID, eventType string) (*models.AppointmentView, error) {
	if version == 0 {
		version = appt.Version
	}
	if version != appt.Version {
		return nil, domain.ErrConcurrentModification
	}
	if !models.CanTransition(appt.Status, status) {
		return nil, domain.ErrInvalidTransition
	}
	if err := s.repo.UpdateAppointmentStatusWithVersion(ctx, appt.ID, version, status); err != nil {
		return nil, err
	}
	appt.Status = status
	appt.Version = version + 1

	metrics.IncAppointment(status)
	s.logger.Info().Str("appointment_id", appt.ID).Str("status", status).Str("actor_id", actorID).Msg("appointment status changed")

	view := s.viewOf(ctx, appt)
	s.publishEvent(eventType, view, actorID)
	s.enqueueSync(ctx, SyncTaskUpdateStatus, appt)
	return view, nil
}

func (s *BookingService) GetAppointment(ctx context.Context, id string) (*models.AppointmentView, error) {
	return s.repo.GetAppointmentView(ctx, id)
}

func (s *BookingService) ListForClient(ctx context.Context, clientID string) ([]*models.AppointmentView, error) {
	if _, err := s.repo.GetUserByID(ctx, clientID); err != nil {
		return nil, err
	}
	return s.repo.ListAppointmentViews(ctx, models.AppointmentFilter{ClientID: clientID})
}

// ListForShop lists the shop agenda; filter.ShopID is overridden.
func (s *BookingService) ListForShop(ctx context.Context, shopID string, filter models.AppointmentFilter) ([]*models.AppointmentView, error) {
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	filter.ShopID = shopID
	return s.repo.ListAppointmentViews(ctx, filter)
}

func (s *BookingService) ListForClientAtShop(ctx context.Context, shopID, clientID string) ([]*models.AppointmentView, error) {
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	return s.repo.ListAppointmentViews(ctx, models.AppointmentFilter{ShopID: shopID, ClientID: clientID})
}

// ExportForShop returns the appointments for a report; reports are a PRO feature.
func (s *BookingService) ExportForShop(ctx context.Context, shopID string, filter models.AppointmentFilter) ([]*models.AppointmentView, error) {
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	plan, err := planFor(ctx, s.repo, shopID)
	if err != nil {
		return nil, err
	}
	if !plan.CanExportReports {
		return nil, domain.ErrPlanLimit
	}
	filter.ShopID = shopID
	return s.repo.ListAppointmentViews(ctx, filter)
}

func (s *BookingService) activeService(ctx context.Context, shopID, serviceID string) (*models.Service, error) {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if svc.ShopID != shopID {
		return nil, invalid("service %s does not belong to shop %s", serviceID, shopID)
	}
	if !svc.IsActive {
		return nil, invalid("service %s is not active", serviceID)
	}
	return svc, nil
}

// checkStaff accepts an empty staffID ("any barber").
func (s *BookingService) checkStaff(ctx context.Context, shopID, staffID, serviceID string) error {
	if staffID == "" {
		return nil
	}
	staff, err := s.repo.GetStaff(ctx, staffID)
	if err != nil {
		return fmt.Errorf("staff: %w", err)
	}
	if staff.ShopID != shopID {
		return invalid("staff %s does not belong to shop %s", staffID, shopID)
	}
	if !staff.Performs(serviceID) {
		return invalid("staff %s does not perform service %s", staffID, serviceID)
	}
	return nil
}

func (s *BookingService) checkMonthlyLimit(ctx context.Context, shopID, date string) error {
	plan, err := planFor(ctx, s.repo, shopID)
	if err != nil {
		return err
	}
	if plan.AppointmentLimit == 0 {
		return nil
	}
	count, err := s.repo.CountMonthlyAppointments(ctx, shopID, monthOf(date))
	if err != nil {
		return err
	}
	if count >= plan.AppointmentLimit {
		return domain.ErrPlanLimit
	}
	return nil
}

func (s *BookingService) checkRate(ctx context.Context, key string) error {
	if s.limiter == nil || s.opts.RateLimit <= 0 {
		return nil
	}
	ok, err := s.limiter.CheckRateLimit(ctx, key, s.opts.RateLimit, s.opts.RateWindow)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

// withMonthQuota runs fn under the shop month lock once the plan's monthly limit allows one more appointment.
// The month lock is always taken before the day lock.
func (s *BookingService) withMonthQuota(ctx context.Context, shopID, date string, fn func() error) error {
	return s.withLock(ctx, "month:"+shopID+":"+monthOf(date), func() error {
		if err := s.checkMonthlyLimit(ctx, shopID, date); err != nil {
			return err
		}
		return fn()
	})
}

func slotLockKey(shopID, date string) string {
	return "slot:" + shopID + ":" + date
}

// monthOf returns "YYYY-MM" of a validated date.
func monthOf(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// withLock runs fn while holding key, waiting up to the lock TTL of wall-clock time.
func (s *BookingService) withLock(ctx context.Context, key string, fn func() error) error {
	if s.locker == nil {
		return fn()
	}

	wait := time.NewTimer(s.opts.LockTTL)
	defer wait.Stop()
	backoff := 20 * time.Millisecond
	for {
		token, ok, err := s.locker.Acquire(ctx, key, s.opts.LockTTL)
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					s.logger.Warn().Err(err).Str("key", key).Msg("failed to release lock")
				}
			}()
			return fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait.C:
			return domain.ErrSlotUnavailable
		case <-time.After(backoff):
		}
		if backoff < 500*time.Millisecond {
			backoff *= 2
		}
	}
}

func (s *BookingService) viewOf(ctx context.Context, appt *models.Appointment) *models.AppointmentView {
	view, err := s.repo.GetAppointmentView(ctx, appt.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", appt.ID).Msg("failed to load appointment view")
		return &models.AppointmentView{Appointment: *appt}
	}
	return view
}

func (s *BookingService) publishEvent(eventType string, view *models.AppointmentView, changedBy string) {
	if s.eventBus == nil {
		return
	}
	payload := events.AppointmentEventPayload{
		AppointmentID: view.ID,
		ShopID:        view.ShopID,
		ClientID:      view.ClientID,
		ClientName:    view.ClientName,
		ServiceName:   view.ServiceName,
		StaffName:     view.StaffName,
		Date:          view.Date,
		Time:          view.Time,
		Status:        view.Status,
		ChangedByID:   changedBy,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Str("appointment_id", view.ID).Msg("failed to publish event")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, taskType string, appt *models.Appointment) {
	if s.sheetsWorker == nil {
		return
	}
	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, appt.ID, appt.Status); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID).Msg("failed to enqueue sync task")
	}
}
