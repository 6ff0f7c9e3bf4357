package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	_ service.Notifier = (*TelegramNotifier)(nil)
	_ service.Notifier = Nop{}
)

type fakeSender struct {
	sent []*bot.SendMessageParams
	err  error
	ctx  context.Context
}

func (f *fakeSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.ctx = ctx
	f.sent = append(f.sent, params)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: len(f.sent)}, nil
}

func testBooking() *model.Booking {
	slotID := int64(12)
	return &model.Booking{
		ID:          7,
		CustomerID:  3,
		ProviderID:  5,
		SlotID:      &slotID,
		ServiceDate: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
		Status:      model.BookingStatusPending,
	}
}

func TestTelegramNotifier_Sends(t *testing.T) {
	sender := &fakeSender{}
	n := newTelegramNotifier(sender, 42, time.UTC, zap.NewNop())

	n.BookingCreated(context.Background(), testBooking())

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, models.ParseModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "Новая бронь")
	assert.Contains(t, msg.Text, "#7")
	assert.Contains(t, msg.Text, "10.01.2024 09:00")
	assert.Contains(t, msg.Text, "Слот: #12")
}

func TestTelegramNotifier_SurvivesCancelledRequest(t *testing.T) {
	sender := &fakeSender{}
	n := newTelegramNotifier(sender, 42, time.UTC, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.BookingCancelled(ctx, testBooking())

	require.Len(t, sender.sent, 1)
	assert.NoError(t, sender.ctx.Err())
	_, hasDeadline := sender.ctx.Deadline()
	assert.True(t, hasDeadline)
}

func TestTelegramNotifier_LogsDeliveryFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sender := &fakeSender{err: errors.New("chat not found")}
	n := newTelegramNotifier(sender, 42, nil, zap.New(core))

	booking := testBooking()
	booking.SlotID = nil
	n.BookingConfirmed(context.Background(), booking)

	require.Len(t, sender.sent, 1)
	assert.NotContains(t, sender.sent[0].Text, "Слот")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Failed to send booking notification", logs.All()[0].Message)
}
