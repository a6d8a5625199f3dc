package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/service"
)

// Sender is the part of the Telegram API the reporter needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramReporter posts batch run summaries to an operator chat.
type TelegramReporter struct {
	api    Sender
	chatID int64
	logger *slog.Logger
}

func NewTelegramReporter(token string, chatID int64, logger *slog.Logger) (*TelegramReporter, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram reporter authorized", "account", api.Self.UserName, "chat_id", chatID)
	return NewReporter(api, chatID, logger), nil
}

// NewReporter builds a reporter on top of an existing sender.
func NewReporter(api Sender, chatID int64, logger *slog.Logger) *TelegramReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramReporter{api: api, chatID: chatID, logger: logger}
}

func (r *TelegramReporter) ReportRun(ctx context.Context, summary service.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(r.chatID, FormatSummary(summary))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableNotification = summary.Failed == 0
	if _, err := r.api.Send(msg); err != nil {
		return fmt.Errorf("send run summary: %w", err)
	}
	r.logger.Debug("run summary sent", "run_id", summary.RunID, "chat_id", r.chatID)
	return nil
}

// FormatSummary renders a run summary as Telegram HTML.
func FormatSummary(s service.RunSummary) string {
	var b strings.Builder
	icon := "✅"
	if s.Failed > 0 {
		icon = "⚠️"
	}
	b.WriteString(fmt.Sprintf("%s <b>Series extension %s</b>\n", icon, recurrence.DateKey(s.Date)))
	b.WriteString(fmt.Sprintf("• <b>Run:</b> <code>%s</code>\n", html.EscapeString(s.RunID)))
	b.WriteString(fmt.Sprintf("• <b>Created:</b> %d\n", s.Created))
	b.WriteString(fmt.Sprintf("• <b>Deleted:</b> %d\n", s.Deleted))
	b.WriteString(fmt.Sprintf("• <b>Rules reclaimed:</b> %d\n", s.Reclaimed))
	b.WriteString(fmt.Sprintf("• <b>Rules:</b> %d extended, %d skipped, %d failed\n", s.Processed, s.Skipped, s.Failed))
	b.WriteString(fmt.Sprintf("• <b>Took:</b> %s", s.Duration.Round(time.Millisecond)))
	return b.String()
}
