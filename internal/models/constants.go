package models

const (
	StatusScheduled         = "scheduled"
	StatusCompleted         = "completed"
	StatusCancelledByClient = "cancelled_by_client"
	StatusCancelledByAdmin  = "cancelled_by_admin"
)

const (
	UserTypeClient = "client"
	UserTypeAdmin  = "admin"
)

const (
	SubscriptionActive    = "active"
	SubscriptionInactive  = "inactive"
	SubscriptionPastDue   = "past_due"
	SubscriptionCancelled = "cancelled"
)

const (
	// DateLayout формат календарной даты записи
	DateLayout = "2006-01-02"

	// ClockLayout формат времени начала записи
	ClockLayout = "15:04"

	// DefaultSlotStepMinutes шаг сетки свободных слотов
	DefaultSlotStepMinutes = 30

	// MaxServiceDuration длительность услуги в минутах не больше суток
	MaxServiceDuration = 24 * 60

	// DefaultMaxBookingDays горизонт записи вперед
	DefaultMaxBookingDays = 365

	// DefaultLockTTLSeconds время жизни блокировки слота при записи
	DefaultLockTTLSeconds = 10

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128

	// SampleServicesLimit сколько услуг показывать в карточке поиска
	SampleServicesLimit = 3

	// AnonymousClientName имя для отзывов удаленных клиентов
	AnonymousClientName = "Cliente Anônimo"

	// UnknownServiceName подставляется, если услуга удалена
	UnknownServiceName = "Serviço Desconhecido"

	// UnknownClientName подставляется, если клиент удален
	UnknownClientName = "Cliente Desconhecido"
)
