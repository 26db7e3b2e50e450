package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"reminder-bot/internal/model"
	"reminder-bot/internal/repository"
)

// Notifier delivers reminder messages on behalf of the scheduler. It is a
// separate type so the scheduler can be wired before the Bot exists.
type Notifier struct {
	api          *tgbotapi.BotAPI
	categoryRepo *repository.CategoryRepository
	storeTimeout time.Duration
	log          *zap.Logger
}

func NewNotifier(api *tgbotapi.BotAPI, categoryRepo *repository.CategoryRepository, storeTimeout time.Duration, log *zap.Logger) *Notifier {
	return &Notifier{api: api, categoryRepo: categoryRepo, storeTimeout: storeTimeout, log: log}
}

// NotifyMain sends the due reminder with an inline button to complete the
// task right from the notification.
func (n *Notifier) NotifyMain(chatID int64, task model.Task) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⏰ Напоминание: <b>%s</b>\n", escape(task.Title)))
	if name := n.categoryName(task); name != "" {
		sb.WriteString(fmt.Sprintf("📁 %s\n", escape(name)))
	}
	sb.WriteString("🕒 " + task.DueTime)

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = reminderDoneKeyboard(task.ID)
	_, err := n.api.Send(msg)
	return err
}

// NotifyEarly sends the advance reminder configured by the task's offset.
func (n *Notifier) NotifyEarly(chatID int64, task model.Task, offsetMinutes int) error {
	text := fmt.Sprintf("⚠️ Напоминание (за %d мин): <b>%s</b> в %s",
		offsetMinutes, escape(task.Title), task.DueTime)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.api.Send(msg)
	return err
}

// categoryName resolves the task's category for display. Lookup failures only
// degrade the message, never block it.
func (n *Notifier) categoryName(task model.Task) string {
	if task.CategoryID == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.storeTimeout)
	defer cancel()
	category, err := n.categoryRepo.GetByID(ctx, *task.CategoryID)
	if err != nil {
		n.log.Debug("category lookup for reminder failed",
			zap.Uint("task_id", task.ID), zap.Error(err))
		return ""
	}
	return category.Name
}
