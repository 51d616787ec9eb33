package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

// MessageSender часть *bot.Bot, которая нужна нотификатору
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier отправляет события бронирования в служебный чат
type TelegramNotifier struct {
	sender MessageSender
	chatID int64
	loc    *time.Location
	logger *zap.Logger
}

// NewTelegramBot создаёт клиента Bot API без запуска long polling
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

func NewTelegramNotifier(sender MessageSender, chatID int64, loc *time.Location, logger *zap.Logger) *TelegramNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &TelegramNotifier{
		sender: sender,
		chatID: chatID,
		loc:    loc,
		logger: logger.With(zap.String("notifier", "telegram")),
	}
}

func (n *TelegramNotifier) Notify(ctx context.Context, evt model.Event) error {
	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      n.render(evt),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	n.logger.Debug("Notification sent",
		zap.String("type", string(evt.Type)),
		zap.String("session_id", evt.SessionID.String()),
	)
	return nil
}

func (n *TelegramNotifier) render(evt model.Event) string {
	start := evt.StartTime.In(n.loc)

	switch evt.Type {
	case model.EventSlotBooked:
		return fmt.Sprintf(
			"✅ <b>Новая запись</b>\n\n"+
				"👤 Студент: %d\n"+
				"🧑‍🏫 Ментор: %d\n"+
				"📅 Дата: %s\n"+
				"🕐 Время: %s\n"+
				"🆔 <code>%s</code>",
			evt.StudentID,
			evt.MentorID,
			start.Format("02.01.2006"),
			start.Format("15:04"),
			evt.SessionID,
		)

	case model.EventSessionCancelled:
		by := "неизвестно"
		if evt.CancelledBy != nil {
			switch *evt.CancelledBy {
			case model.CancelledByStudent:
				by = "студент"
			case model.CancelledByMentor:
				by = "ментор"
			}
		}
		refund := "без возврата"
		if evt.RefundEligible {
			refund = "полный возврат"
		}
		return fmt.Sprintf(
			"❌ <b>Занятие отменено</b>\n\n"+
				"👤 Студент: %d\n"+
				"🧑‍🏫 Ментор: %d\n"+
				"📅 Дата: %s\n"+
				"🕐 Время: %s\n"+
				"↩️ Отменил: %s\n"+
				"💰 %s\n"+
				"🆔 <code>%s</code>",
			evt.StudentID,
			evt.MentorID,
			start.Format("02.01.2006"),
			start.Format("15:04"),
			by,
			refund,
			evt.SessionID,
		)

	default:
		return fmt.Sprintf("ℹ️ %s: <code>%s</code>", evt.Type, evt.SessionID)
	}
}

// LogNotifier пишет события в лог, когда Telegram не настроен
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(zap.String("notifier", "log"))}
}

func (n *LogNotifier) Notify(_ context.Context, evt model.Event) error {
	n.logger.Info("Booking event",
		zap.String("type", string(evt.Type)),
		zap.String("session_id", evt.SessionID.String()),
		zap.Int64("mentor_id", evt.MentorID),
		zap.Int64("student_id", evt.StudentID),
		zap.Time("start_time", evt.StartTime),
		zap.Bool("refund_eligible", evt.RefundEligible),
	)
	return nil
}
