package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"reminder-bot/internal/model"
	"reminder-bot/internal/repository"
	"reminder-bot/internal/schedule"
	"reminder-bot/internal/service"
)

const dateLayout = "02.01.2006"

// Bot drives the Telegram front end: the inline main menu, the multi-step
// add/edit dialogues and category management.
type Bot struct {
	api         *tgbotapi.BotAPI
	userRepo    *repository.UserRepository
	categorySvc *service.CategoryService
	taskSvc     *service.TaskService
	sessions    *sessionStore
	log         *zap.Logger
}

func New(api *tgbotapi.BotAPI, userRepo *repository.UserRepository, categorySvc *service.CategoryService, taskSvc *service.TaskService, sessionTTL time.Duration, log *zap.Logger) *Bot {
	return &Bot{
		api:         api,
		userRepo:    userRepo,
		categorySvc: categorySvc,
		taskSvc:     taskSvc,
		sessions:    newSessionStore(sessionTTL),
		log:         log,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates", zap.String("account", b.api.Self.UserName))

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Warn("handle callback", zap.Error(err))
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Warn("handle message", zap.Error(err))
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.log.Debug("command", zap.Int64("user", msg.From.ID), zap.String("command", msg.Command()))
		switch msg.Command() {
		case "start", "help":
			if _, err := b.ensureUser(ctx, msg.From); err != nil {
				return err
			}
			b.sessions.clear(msg.From.ID)
			return b.sendMenu(msg.Chat.ID, "Привет! Я твой домашний помощник.\nВыбери действие:")
		case "cancel":
			b.sessions.clear(msg.From.ID)
			return b.sendMenu(msg.Chat.ID, "Ввод отменён. Выбери действие:")
		default:
			return b.sendText(msg.Chat.ID, "Команда не поддерживается. Набери /start.")
		}
	}

	sess := b.sessions.get(msg.From.ID)
	if sess == nil {
		return b.sendMenu(msg.Chat.ID, "Я жду выбора в меню. Выбери действие:")
	}

	return b.handleDialogText(ctx, msg, sess)
}

// handleDialogText consumes one text message of a multi-step dialogue.
// Validation failures re-prompt and keep the state.
func (b *Bot) handleDialogText(ctx context.Context, msg *tgbotapi.Message, sess *session) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch sess.state {
	case stateAddTitle:
		if text == "" {
			return b.sendText(chatID, "Название не может быть пустым. Попробуй ещё раз:")
		}
		sess.draft.Title = text
		sess.state = stateAddCategory
		b.sessions.put(msg.From.ID, sess)
		return b.sendCategoryChoice(ctx, chatID, user)

	case stateAddNewCategoryName, stateEditNewCategoryName, stateCatNewName:
		return b.handleNewCategoryName(ctx, msg, sess, user, text)

	case stateAddStartDate:
		var startDate time.Time
		if text == "-" {
			startDate = time.Now()
		} else {
			parsed, err := time.ParseInLocation(dateLayout, text, time.Local)
			if err != nil {
				return b.sendText(chatID, "Неверный формат даты! Используй ДД.ММ.ГГГГ (например 25.12.2026) или '-' для сегодня.")
			}
			startDate = parsed
		}
		sess.draft.StartDate = startDate
		sess.state = stateAddDueTime
		b.sessions.put(msg.From.ID, sess)
		return b.sendText(chatID, "Введи время напоминания в формате ЧЧ:ММ (например 08:00):")

	case stateAddDueTime:
		if _, _, err := schedule.ParseClock(text); err != nil {
			return b.sendText(chatID, "Неверный формат! Используй ЧЧ:ММ (например 14:30).")
		}
		sess.draft.DueTime = text
		sess.state = stateAddRepeatType
		b.sessions.put(msg.From.ID, sess)
		return b.sendWithMarkup(chatID, "Выбери тип повтора:", repeatKeyboard())

	case stateAddIntervalDays:
		days, err := strconv.Atoi(text)
		if err != nil || days <= 0 {
			return b.sendText(chatID, "Введи целое положительное число дней:")
		}
		sess.draft.IntervalDays = days
		sess.state = stateAddOffset
		b.sessions.put(msg.From.ID, sess)
		return b.sendText(chatID, offsetPrompt)

	case stateAddOffset:
		offset, err := strconv.Atoi(text)
		if err != nil || offset < 0 {
			return b.sendText(chatID, "Введи целое неотрицательное число минут:")
		}
		sess.draft.ReminderOffset = offset
		b.sessions.clear(msg.From.ID)
		if _, err := b.taskSvc.Create(ctx, user, sess.draft); err != nil {
			b.log.Warn("create task", zap.Int64("user", msg.From.ID), zap.Error(err))
			return b.sendMenu(chatID, fmt.Sprintf("Не удалось сохранить задачу: %s", escape(err.Error())))
		}
		return b.sendMenu(chatID, "✅ Задача добавлена!")

	case stateEditValue:
		return b.handleEditValue(ctx, msg, sess, user, text)

	case stateCatRenameName:
		if text == "" {
			return b.sendText(chatID, "Название не может быть пустым.")
		}
		b.sessions.clear(msg.From.ID)
		if _, err := b.categorySvc.Rename(ctx, user, sess.categoryID, text); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.sendMenu(chatID, "Категория не найдена.")
			}
			return b.sendMenu(chatID, fmt.Sprintf("Не удалось переименовать: %s", escape(err.Error())))
		}
		if err := b.sendText(chatID, "Категория переименована!"); err != nil {
			return err
		}
		return b.sendCategoriesMenu(ctx, chatID, user, 0)

	default:
		b.sessions.clear(msg.From.ID)
		return b.sendMenu(chatID, "Диалог сброшен. Выбери действие:")
	}
}

// handleNewCategoryName finishes the inline category creation detour and
// returns control to whichever flow started it.
func (b *Bot) handleNewCategoryName(ctx context.Context, msg *tgbotapi.Message, sess *session, user *model.User, name string) error {
	chatID := msg.Chat.ID
	if name == "" {
		return b.sendText(chatID, "Название не может быть пустым. Попробуй ещё раз:")
	}

	category, err := b.categorySvc.GetOrCreate(ctx, user, name)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось создать категорию: %s", escape(err.Error())))
	}

	switch sess.state {
	case stateAddNewCategoryName:
		catID := category.ID
		sess.draft.CategoryID = &catID
		sess.state = stateAddStartDate
		b.sessions.put(msg.From.ID, sess)
		return b.sendText(chatID, fmt.Sprintf("Категория «%s» выбрана. Укажи дату первого напоминания (ДД.ММ.ГГГГ) или '-' для сегодня:", escape(category.Name)))

	case stateEditNewCategoryName:
		taskID := sess.taskID
		b.sessions.clear(msg.From.ID)
		catID := category.ID
		if _, err := b.taskSvc.UpdateCategory(ctx, user, taskID, &catID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.sendMenu(chatID, "Задача не найдена.")
			}
			return b.sendMenu(chatID, fmt.Sprintf("Не удалось обновить задачу: %s", escape(err.Error())))
		}
		return b.sendMenu(chatID, "Категория обновлена!")

	default: // stateCatNewName
		b.sessions.clear(msg.From.ID)
		if err := b.sendText(chatID, fmt.Sprintf("Категория «%s» создана.", escape(category.Name))); err != nil {
			return err
		}
		return b.sendCategoriesMenu(ctx, chatID, user, 0)
	}
}

// handleEditValue applies a text-entry edit (title, time or offset) and
// re-schedules the task through the service layer.
func (b *Bot) handleEditValue(ctx context.Context, msg *tgbotapi.Message, sess *session, user *model.User, text string) error {
	chatID := msg.Chat.ID
	taskID := sess.taskID

	var err error
	switch sess.field {
	case "title":
		if text == "" {
			return b.sendText(chatID, "Название не может быть пустым. Попробуй ещё раз:")
		}
		_, err = b.taskSvc.UpdateTitle(ctx, user, taskID, text)
	case "time":
		if _, _, parseErr := schedule.ParseClock(text); parseErr != nil {
			return b.sendText(chatID, "Неверный формат! Используй ЧЧ:ММ (например 14:30).")
		}
		_, err = b.taskSvc.UpdateDueTime(ctx, user, taskID, text)
	case "offset":
		offset, convErr := strconv.Atoi(text)
		if convErr != nil || offset < 0 {
			return b.sendText(chatID, "Введи целое неотрицательное число минут (0 — отключить):")
		}
		_, err = b.taskSvc.UpdateOffset(ctx, user, taskID, offset)
	default:
		b.sessions.clear(msg.From.ID)
		return b.sendMenu(chatID, "Диалог сброшен. Выбери действие:")
	}

	b.sessions.clear(msg.From.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendMenu(chatID, "Задача не найдена.")
		}
		return b.sendMenu(chatID, fmt.Sprintf("Не удалось обновить задачу: %s", escape(err.Error())))
	}
	return b.sendMenu(chatID, "Задача обновлена!")
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMenu(chatID int64, text string) error {
	return b.sendWithMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) editText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(edit)
	return err
}

func (b *Bot) editWithMarkup(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(edit)
	return err
}

func escape(s string) string {
	return html.EscapeString(s)
}
