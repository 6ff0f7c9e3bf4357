package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// messageSender часть *bot.Bot, которая нужна уведомлениям
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier отправляет события о бронированиях в чат администраторов.
// Ошибки доставки только логируются
type TelegramNotifier struct {
	sender   messageSender
	chatID   int64
	timeout  time.Duration
	location *time.Location
	logger   *zap.Logger
}

// NewTelegramNotifier создаёт клиента бота. Бот не запускается на приём
// обновлений, используется только для отправки
func NewTelegramNotifier(token string, chatID int64, location *time.Location, logger *zap.Logger) (*TelegramNotifier, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegramNotifier(b, chatID, location, logger), nil
}

func newTelegramNotifier(sender messageSender, chatID int64, location *time.Location, logger *zap.Logger) *TelegramNotifier {
	if location == nil {
		location = time.UTC
	}
	return &TelegramNotifier{
		sender:   sender,
		chatID:   chatID,
		timeout:  5 * time.Second,
		location: location,
		logger:   logger,
	}
}

func (n *TelegramNotifier) BookingCreated(ctx context.Context, booking *model.Booking) {
	n.send(ctx, booking, "🆕 <b>Новая бронь</b>")
}

func (n *TelegramNotifier) BookingConfirmed(ctx context.Context, booking *model.Booking) {
	n.send(ctx, booking, "✅ <b>Бронь подтверждена</b>")
}

func (n *TelegramNotifier) BookingCancelled(ctx context.Context, booking *model.Booking) {
	n.send(ctx, booking, "❌ <b>Бронь отменена</b>")
}

func (n *TelegramNotifier) send(ctx context.Context, booking *model.Booking, title string) {
	// Отправка не должна зависеть от отмены HTTP запроса
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      n.format(booking, title),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		n.logger.Warn("Failed to send booking notification",
			zap.Int64("booking_id", booking.ID),
			zap.String("status", string(booking.Status)),
			zap.Error(err))
	}
}

func (n *TelegramNotifier) format(booking *model.Booking, title string) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "📋 Бронь: #%d\n", booking.ID)
	fmt.Fprintf(&sb, "👤 Клиент: #%d\n", booking.CustomerID)
	fmt.Fprintf(&sb, "🔧 Исполнитель: #%d\n", booking.ProviderID)
	fmt.Fprintf(&sb, "📅 Время: %s\n", booking.ServiceDate.In(n.location).Format("02.01.2006 15:04"))
	if booking.SlotID != nil {
		fmt.Fprintf(&sb, "🕐 Слот: #%d\n", *booking.SlotID)
	}
	fmt.Fprintf(&sb, "📌 Статус: %s", booking.Status)
	return sb.String()
}

// Nop уведомления выключены
type Nop struct{}

func (Nop) BookingCreated(context.Context, *model.Booking)   {}
func (Nop) BookingConfirmed(context.Context, *model.Booking) {}
func (Nop) BookingCancelled(context.Context, *model.Booking) {}
