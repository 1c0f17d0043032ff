package domain

import (
	"context"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	SignupShop(ctx context.Context, owner *models.User, shop *models.Shop, sub *models.Subscription) error
	GetShop(ctx context.Context, id string) (*models.Shop, error)
	UpdateShopWithOwner(ctx context.Context, shop *models.Shop, owner *models.User) error
	ListShops(ctx context.Context) ([]*models.Shop, error)

	CreateStaff(ctx context.Context, staff *models.Staff) error
	GetStaff(ctx context.Context, id string) (*models.Staff, error)
	UpdateStaff(ctx context.Context, staff *models.Staff) error
	DeleteStaff(ctx context.Context, id string) error
	ListStaff(ctx context.Context, shopID string) ([]*models.Staff, error)
	CountStaff(ctx context.Context, shopID string) (int, error)

	CreateService(ctx context.Context, svc *models.Service) error
	GetService(ctx context.Context, id string) (*models.Service, error)
	UpdateService(ctx context.Context, svc *models.Service) error
	ListServices(ctx context.Context, shopID string) ([]*models.Service, error)

	CreateAppointmentWithLock(ctx context.Context, appt *models.Appointment) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	GetAppointmentView(ctx context.Context, id string) (*models.AppointmentView, error)
	UpdateAppointmentWithVersion(ctx context.Context, appt *models.Appointment) error
	UpdateAppointmentStatusWithVersion(ctx context.Context, id string, version int64, status string) error
	ListAppointmentsForDate(ctx context.Context, shopID, date string) ([]*models.Appointment, error)
	ListAppointmentViews(ctx context.Context, filter models.AppointmentFilter) ([]*models.AppointmentView, error)
	CountMonthlyAppointments(ctx context.Context, shopID, month string) (int, error)
	ListClientsForShop(ctx context.Context, shopID string) ([]*models.User, error)

	CreateReview(ctx context.Context, review *models.Review) error
	GetReview(ctx context.Context, id string) (*models.Review, error)
	GetReviewByAppointment(ctx context.Context, appointmentID string) (*models.Review, error)
	ReplyReview(ctx context.Context, id, reply string, at time.Time) error
	ListReviewViews(ctx context.Context, shopID string) ([]*models.ReviewView, error)
	GetShopRatings(ctx context.Context) (map[string]models.Rating, error)

	GetSubscription(ctx context.Context, shopID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
}

// SlotLocker serializes concurrent bookings of the same slot.
type SlotLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	UpsertAppointment(ctx context.Context, appt *models.AppointmentView) error
	UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error
	ReplaceAppointmentsSheet(ctx context.Context, appts []*models.AppointmentView) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType, appointmentID string, status string) error
}

// RateLimiter counts hits per key in a fixed window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
