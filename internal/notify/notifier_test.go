package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/domain"
	"github.com/frenetico9/Navalha.Digital/internal/events"
	"github.com/frenetico9/Navalha.Digital/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

type fakeStore struct {
	shops []*models.Shop
	appts []*models.AppointmentView
	last  models.AppointmentFilter
}

func (f *fakeStore) GetShop(_ context.Context, id string) (*models.Shop, error) {
	for _, s := range f.shops {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) ListShops(context.Context) ([]*models.Shop, error) {
	return f.shops, nil
}

func (f *fakeStore) ListAppointmentViews(_ context.Context, filter models.AppointmentFilter) ([]*models.AppointmentView, error) {
	f.last = filter
	var out []*models.AppointmentView
	for _, a := range f.appts {
		if a.ShopID == filter.ShopID && a.Date == filter.DateFrom {
			out = append(out, a)
		}
	}
	return out, nil
}

func newTestNotifier(t *testing.T, sender *mockSender, store *fakeStore) *Notifier {
	t.Helper()
	logger := zerolog.Nop()
	n, err := NewNotifier(sender, store, "20:00", time.UTC, &logger)
	require.NoError(t, err)
	n.now = func() time.Time { return time.Date(2025, 7, 15, 19, 30, 0, 0, time.UTC) }
	return n
}

func textTo(chatID int64, contains string) interface{} {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == chatID && strings.Contains(msg.Text, contains)
	})
}

func TestNewNotifierRejectsBadTime(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewNotifier(&mockSender{}, &fakeStore{}, "25:99", time.UTC, &logger)
	assert.Error(t, err)
}

func TestAppointmentEventsReachShopChat(t *testing.T) {
	sender := &mockSender{}
	store := &fakeStore{shops: []*models.Shop{
		{ID: "s1", Name: "Navalha", TelegramChatID: 42},
		{ID: "s2", Name: "Sem chat"},
	}}
	n := newTestNotifier(t, sender, store)
	bus := events.NewEventBus()
	n.Subscribe(bus)

	sender.On("Send", textTo(42, "Novo agendamento")).Return(tgbotapi.Message{}, nil).Once()
	err := bus.PublishJSON(events.EventAppointmentCreated, events.AppointmentEventPayload{
		AppointmentID: "a1", ShopID: "s1", ClientName: "Carlos", ServiceName: "Corte", Date: "2025-07-16", Time: "10:00",
	})
	require.NoError(t, err)

	sender.On("Send", textTo(42, "16/07/2025 às 10:00")).Return(tgbotapi.Message{}, nil).Once()
	require.NoError(t, bus.PublishJSON(events.EventAppointmentCancelled, events.AppointmentEventPayload{
		AppointmentID: "a1", ShopID: "s1", Date: "2025-07-16", Time: "10:00",
	}))

	// shops without a chat are skipped
	require.NoError(t, bus.PublishJSON(events.EventAppointmentCreated, events.AppointmentEventPayload{ShopID: "s2"}))

	sender.AssertExpectations(t)
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestReviewEvent(t *testing.T) {
	sender := &mockSender{}
	store := &fakeStore{shops: []*models.Shop{{ID: "s1", TelegramChatID: 7}}}
	n := newTestNotifier(t, sender, store)
	bus := events.NewEventBus()
	n.Subscribe(bus)

	sender.On("Send", textTo(7, "4/5")).Return(tgbotapi.Message{}, nil).Once()
	require.NoError(t, bus.PublishJSON(events.EventReviewAdded, events.ReviewEventPayload{ShopID: "s1", Rating: 4, Comment: "Top"}))
	sender.AssertExpectations(t)
}

func TestSendDailyAgenda(t *testing.T) {
	sender := &mockSender{}
	store := &fakeStore{
		shops: []*models.Shop{
			{ID: "s1", TelegramChatID: 42},
			{ID: "s2", TelegramChatID: 43},
			{ID: "s3"},
		},
		appts: []*models.AppointmentView{
			{Appointment: models.Appointment{ShopID: "s1", Date: "2025-07-16", Time: "09:00"}, ClientName: "Ana", ServiceName: "Corte"},
			{Appointment: models.Appointment{ShopID: "s1", Date: "2025-07-16", Time: "10:30"}, ClientName: "Beto", ServiceName: "Barba", StaffName: "Zé"},
			{Appointment: models.Appointment{ShopID: "s3", Date: "2025-07-16", Time: "11:00"}},
		},
	}
	n := newTestNotifier(t, sender, store)

	sender.On("Send", textTo(42, "2 atendimento(s)")).Return(tgbotapi.Message{}, nil).Once()

	sent, err := n.SendDailyAgenda(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, models.StatusScheduled, store.last.Status)
	sender.AssertExpectations(t)
}

func TestUntilNextReminder(t *testing.T) {
	n := newTestNotifier(t, &mockSender{}, &fakeStore{})
	assert.Equal(t, 30*time.Minute, n.untilNextReminder())

	n.now = func() time.Time { return time.Date(2025, 7, 15, 20, 0, 0, 0, time.UTC) }
	assert.Equal(t, 24*time.Hour, n.untilNextReminder())
}

func TestFormatAgenda(t *testing.T) {
	text := formatAgenda("2025-07-16", []*models.AppointmentView{
		{Appointment: models.Appointment{Time: "09:00"}, ClientName: "Ana", ServiceName: "Corte", StaffName: "Zé"},
	})
	assert.Contains(t, text, "16/07/2025")
	assert.Contains(t, text, "09:00  Ana - Corte (Zé)")
}
