package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/domain"
	"github.com/frenetico9/Navalha.Digital/internal/events"
	"github.com/frenetico9/Navalha.Digital/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const sendTimeout = 10 * time.Second

// Store is what the notifier reads to address and fill messages.
type Store interface {
	GetShop(ctx context.Context, id string) (*models.Shop, error)
	ListShops(ctx context.Context) ([]*models.Shop, error)
	ListAppointmentViews(ctx context.Context, filter models.AppointmentFilter) ([]*models.AppointmentView, error)
}

// Notifier pushes booking activity and the next day's agenda to each shop's Telegram chat.
type Notifier struct {
	sender      domain.TelegramSender
	store       Store
	reminderMin int
	loc         *time.Location
	now         func() time.Time
	logger      *zerolog.Logger
}

func NewNotifier(sender domain.TelegramSender, store Store, reminderTime string, loc *time.Location, logger *zerolog.Logger) (*Notifier, error) {
	minutes, err := models.ParseClock(reminderTime)
	if err != nil {
		return nil, fmt.Errorf("reminder time: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Notifier{
		sender:      sender,
		store:       store,
		reminderMin: minutes,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}, nil
}

// Subscribe attaches the notifier to appointment and review events.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventAppointmentCreated, n.handleAppointment)
	bus.Subscribe(events.EventAppointmentCancelled, n.handleAppointment)
	bus.Subscribe(events.EventAppointmentRescheduled, n.handleAppointment)
	bus.Subscribe(events.EventReviewAdded, n.handleReview)
}

func (n *Notifier) handleAppointment(ev *events.Event) error {
	var payload events.AppointmentEventPayload
	if err := ev.Decode(&payload); err != nil {
		n.logger.Error().Err(err).Str("event", ev.Type).Msg("notify: decode payload")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	n.sendToShop(ctx, payload.ShopID, formatAppointment(ev.Type, &payload))
	return nil
}

func (n *Notifier) handleReview(ev *events.Event) error {
	var payload events.ReviewEventPayload
	if err := ev.Decode(&payload); err != nil {
		n.logger.Error().Err(err).Str("event", ev.Type).Msg("notify: decode payload")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	text := fmt.Sprintf("⭐ Nova avaliação: %d/5", payload.Rating)
	if payload.Comment != "" {
		text += "\n«" + payload.Comment + "»"
	}
	n.sendToShop(ctx, payload.ShopID, text)
	return nil
}

func (n *Notifier) sendToShop(ctx context.Context, shopID, text string) bool {
	shop, err := n.store.GetShop(ctx, shopID)
	if err != nil {
		n.logger.Error().Err(err).Str("shop_id", shopID).Msg("notify: load shop")
		return false
	}
	if shop.TelegramChatID == 0 {
		return false
	}

	msg := tgbotapi.NewMessage(shop.TelegramChatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Int64("chat_id", shop.TelegramChatID).Msg("notify: send error")
		return false
	}
	return true
}

// StartReminders sends the next day's agenda once a day at the configured time.
func (n *Notifier) StartReminders(ctx context.Context) {
	go func() {
		timer := time.NewTimer(n.untilNextReminder())
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				sent, err := n.SendDailyAgenda(ctx)
				if err != nil {
					n.logger.Error().Err(err).Msg("reminder: daily agenda failed")
				} else {
					n.logger.Info().Int("shops", sent).Msg("reminder: daily agenda sent")
				}
				timer.Reset(n.untilNextReminder())
			}
		}
	}()
}

// SendDailyAgenda messages every shop with a chat id its scheduled appointments for tomorrow.
// It returns the number of shops notified.
func (n *Notifier) SendDailyAgenda(ctx context.Context) (int, error) {
	tomorrow := n.now().In(n.loc).AddDate(0, 0, 1).Format(models.DateLayout)

	shops, err := n.store.ListShops(ctx)
	if err != nil {
		return 0, fmt.Errorf("list shops: %w", err)
	}

	sent := 0
	for _, shop := range shops {
		if shop.TelegramChatID == 0 {
			continue
		}
		appts, err := n.store.ListAppointmentViews(ctx, models.AppointmentFilter{
			ShopID:   shop.ID,
			DateFrom: tomorrow,
			DateTo:   tomorrow,
			Status:   models.StatusScheduled,
		})
		if err != nil {
			n.logger.Error().Err(err).Str("shop_id", shop.ID).Msg("reminder: list appointments")
			continue
		}
		if len(appts) == 0 {
			continue
		}

		msg := tgbotapi.NewMessage(shop.TelegramChatID, formatAgenda(tomorrow, appts))
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Error().Err(err).Str("shop_id", shop.ID).Msg("reminder: send error")
			continue
		}
		sent++
	}
	return sent, nil
}

func (n *Notifier) untilNextReminder() time.Duration {
	now := n.now().In(n.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, n.loc).Add(time.Duration(n.reminderMin) * time.Minute)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

func formatAppointment(eventType string, p *events.AppointmentEventPayload) string {
	var title string
	switch eventType {
	case events.EventAppointmentCreated:
		title = "📅 Novo agendamento"
	case events.EventAppointmentCancelled:
		title = "❌ Agendamento cancelado"
	case events.EventAppointmentRescheduled:
		title = "🔁 Agendamento remarcado"
	default:
		title = "Agendamento atualizado"
	}

	var b strings.Builder
	b.WriteString(title)
	fmt.Fprintf(&b, "\n%s às %s", displayDate(p.Date), p.Time)
	if p.ClientName != "" {
		fmt.Fprintf(&b, "\nCliente: %s", p.ClientName)
	}
	if p.ServiceName != "" {
		fmt.Fprintf(&b, "\nServiço: %s", p.ServiceName)
	}
	if p.StaffName != "" {
		fmt.Fprintf(&b, "\nBarbeiro: %s", p.StaffName)
	}
	return b.String()
}

func formatAgenda(date string, appts []*models.AppointmentView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Agenda de amanhã (%s): %d atendimento(s)", displayDate(date), len(appts))
	for _, a := range appts {
		fmt.Fprintf(&b, "\n%s  %s - %s", a.Time, a.ClientName, a.ServiceName)
		if a.StaffName != "" {
			fmt.Fprintf(&b, " (%s)", a.StaffName)
		}
	}
	return b.String()
}

// displayDate renders YYYY-MM-DD as DD/MM/YYYY.
func displayDate(date string) string {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02/01/2006")
}
