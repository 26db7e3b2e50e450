package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"reminder-bot/internal/model"
	"reminder-bot/internal/service"
)

// handleCallback decodes the pressed button into an action and dispatches it.
// Malformed or stale callback data is acknowledged and dropped.
func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q.From == nil || q.Message == nil || q.Message.Chat == nil {
		return b.answer(q, "")
	}

	act, ok := decodeAction(q.Data)
	if !ok {
		b.log.Debug("unknown callback data", zap.String("data", q.Data))
		return b.answer(q, "")
	}

	user, err := b.ensureUser(ctx, q.From)
	if err != nil {
		return err
	}

	chatID := q.Message.Chat.ID
	messageID := q.Message.MessageID

	switch act.kind {
	case actAddTask:
		b.sessions.put(q.From.ID, &session{state: stateAddTitle})
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editText(chatID, messageID, "Введи название задачи:")

	case actListMenu:
		return b.showCategoryFilter(ctx, q, user, actListFilter, "Какие задачи показать?")
	case actDoneMenu:
		return b.showCategoryFilter(ctx, q, user, actDoneFilter, "Из какой категории выполнить задачу?")
	case actEditMenu:
		return b.showCategoryFilter(ctx, q, user, actEditFilter, "Из какой категории редактировать задачу?")
	case actDeleteMenu:
		return b.showCategoryFilter(ctx, q, user, actDeleteFilter, "Из какой категории удалить задачу?")

	case actListFilter:
		return b.showTaskList(ctx, q, user, act)
	case actDoneFilter:
		return b.showTaskPicker(ctx, q, user, act, actDoneTask, "Какую задачу отметить выполненной?")
	case actEditFilter:
		return b.showTaskPicker(ctx, q, user, act, actEditTask, "Какую задачу изменить?")
	case actDeleteFilter:
		return b.showTaskPicker(ctx, q, user, act, actDeleteTask, "Какую задачу удалить?")

	case actDoneTask:
		return b.completeTask(ctx, q, user, act.id)

	case actEditTask:
		if _, err := b.taskSvc.Get(ctx, user, act.id); err != nil {
			return b.alert(q, "Задача не найдена.")
		}
		b.sessions.put(q.From.ID, &session{state: stateEditChooseField, taskID: act.id})
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editWithMarkup(chatID, messageID, "Что изменить?", editFieldKeyboard())

	case actEditField:
		return b.chooseEditField(ctx, q, user, act.value)

	case actDeleteTask:
		task, err := b.taskSvc.Get(ctx, user, act.id)
		if err != nil {
			return b.alert(q, "Задача не найдена.")
		}
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editWithMarkup(chatID, messageID,
			fmt.Sprintf("Удалить задачу «%s»?", escape(task.Title)), confirmDeleteKeyboard(task.ID))

	case actConfirmDelete:
		if err := b.taskSvc.Delete(ctx, user, act.id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.alert(q, "Задача не найдена.")
			}
			return err
		}
		if err := b.answer(q, "Задача удалена"); err != nil {
			return err
		}
		return b.editWithMarkup(chatID, messageID, "🗑 Задача удалена.", mainMenuKeyboard())

	case actCancelDelete:
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editWithMarkup(chatID, messageID, "Удаление отменено. Выбери действие:", mainMenuKeyboard())

	case actPickCategory:
		return b.pickCategory(ctx, q, user, &act.id)
	case actSkipCategory:
		return b.pickCategory(ctx, q, user, nil)
	case actNewCategory:
		return b.startNewCategory(q)

	case actRepeatType:
		return b.chooseRepeatType(ctx, q, user, act.value)
	case actToggleDay:
		return b.toggleRepeatDay(q, act.value)
	case actDaysDone:
		return b.finishRepeatDays(q)

	case actStats:
		return b.showStats(ctx, q, user)
	case actExport:
		return b.exportCSV(ctx, q, user)

	case actCategories:
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.sendCategoriesMenu(ctx, chatID, user, messageID)

	case actCatCreate:
		b.sessions.put(q.From.ID, &session{state: stateCatNewName})
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editText(chatID, messageID, "Введи название новой категории:")

	case actCatView:
		return b.showCategory(ctx, q, user, act.id)

	case actCatRename:
		b.sessions.put(q.From.ID, &session{state: stateCatRenameName, categoryID: act.id})
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editText(chatID, messageID, "Введи новое название категории:")

	case actCatDelete:
		category, err := b.categorySvc.Get(ctx, user, act.id)
		if err != nil {
			return b.alert(q, "Категория не найдена.")
		}
		if err := b.answer(q, ""); err != nil {
			return err
		}
		markup := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🗑 Да, удалить", idAction(actCatConfirmDelete, category.ID)),
				tgbotapi.NewInlineKeyboardButtonData("Отмена", plainAction(actCategories)),
			),
		)
		return b.editWithMarkup(chatID, messageID,
			fmt.Sprintf("Удалить категорию «%s»? Задачи останутся, но без категории.", escape(category.Name)), markup)

	case actCatConfirmDelete:
		if err := b.categorySvc.Delete(ctx, user, act.id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.alert(q, "Категория не найдена.")
			}
			return err
		}
		if err := b.answer(q, "Категория удалена"); err != nil {
			return err
		}
		return b.sendCategoriesMenu(ctx, chatID, user, messageID)

	case actBackMain:
		b.sessions.clear(q.From.ID)
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editWithMarkup(chatID, messageID, "Выбери действие:", mainMenuKeyboard())

	default:
		return b.answer(q, "")
	}
}

// showCategoryFilter asks which category to narrow a task flow to.
func (b *Bot) showCategoryFilter(ctx context.Context, q *tgbotapi.CallbackQuery, user *model.User, kind actionKind, text string) error {
	categories, err := b.categorySvc.List(ctx, user)
	if err != nil {
		return err
	}
	if err := b.answer(q, ""); err != nil {
		return err
	}
	return b.editWithMarkup(q.Message.Chat.ID, q.Message.MessageID, text, categoryFilterKeyboard(kind, categories))
}

// filterCategoryID converts a filter action's payload into the optional
// category filter: a numeric payload picks that category, "all" means no
// filter.
func filterCategoryID(act action) *uint {
	if !act.hasID {
		return nil
	}
	id := act.id
	return &id
}

func (b *Bot) showTaskList(ctx context.Context, q *tgbotapi.CallbackQuery, user *model.User, act action) error {
	tasks, err := b.taskSvc.List(ctx, user, filterCategoryID(act))
	if err != nil {
		return err
	}
	if err := b.answer(q, ""); err != nil {
		return err
	}
	if len(tasks) == 0 {
		return b.editWithMarkup(q.Message.Chat.ID, q.Message.MessageID, "Активных задач нет. Добавь первую!", backKeyboard())
	}

	categories, err := b.categorySvc.List(ctx, user)
	if err != nil {
		return err
	}
	catNames := make(map[uint]string, len(categories))
	for _, category := range categories {
		catNames[category.ID] = category.Name
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Твои задачи:</b>\n\n")
	for i, task := range tasks {
		sb.WriteString(fmt.Sprintf("%d. <b>%s</b>\n", i+1, escape(task.Title)))
		details := []string{"🕒 " + task.DueTime, "🔁 " + service.RepeatSummary(task)}
		if task.CategoryID != nil {
			if name, ok := catNames[*task.CategoryID]; ok {
				details = append([]string{"📁 " + escape(name)}, details...)
			}
		}
		if task.ReminderOffset > 0 {
			details = append(details, fmt.Sprintf("⏳ за %d мин", task.ReminderOffset))
		}
		sb.WriteString("   " + strings.Join(details, " | ") + "\n")
	}
	return b.editWithMarkup(q.Message.Chat.ID, q.Message.MessageID, sb.String(), backKeyboard())
}

func (b *Bot) showTaskPicker(ctx context.Context, q *tgbotapi.CallbackQuery, user *model.User, act action, target actionKind, text string) error {
	tasks, err := b.taskSvc.List(ctx, user, filterCategoryID(act))
	if err != nil {
		return err
	}
	if err := b.answer(q, ""); err != nil {
		return err
	}
	if len(tasks) == 0 {
		return b.editWithMarkup(q.Message.Chat.ID, q.Message.MessageID, "Активных задач нет.", backKeyboard())
	}
	return b.editWithMarkup(q.Message.Chat.ID, q.Message.MessageID, text, tasksKeyboard(target, tasks))
}

// completeTask serves both the pick-a-task flow and the ✅ button attached to
// reminder messages.
func (b *Bot) completeTask(ctx context.Context, q *tgbotapi.CallbackQuery, user *model.User, taskID uint) error {
	task, err := b.taskSvc.Complete(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.alert(q, "Задача не найдена.")
		}
		return err
	}
	if err := b.answer(q, "Задача выполнена!"); err != nil {
		return err
	}
	return b.editWithMarkup(q.Message.Chat.ID, q.Message.MessageID,
		fmt.Sprintf("✅ Задача «%s» выполнена!", escape(task.Title)), mainMenuKeyboard())
}

func (b *Bot) chooseEditField(ctx context.Context, q *tgbotapi.CallbackQuery, user *model.User, field string) error {
	sess := b.sessions.get(q.From.ID)
	if sess == nil || sess.state != stateEditChooseField {
		return b.alert(q, "Диалог устарел, начни заново.")
	}

	chatID := q.Message.Chat.ID
	messageID := q.Message.MessageID

	switch field {
	case "title":
		sess.state, sess.field = stateEditValue, field
		b.sessions.put(q.From.ID, sess)
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editText(chatID, messageID, "Введи новое название:")
	case "time":
		sess.state, sess.field = stateEditValue, field
		b.sessions.put(q.From.ID, sess)
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editText(chatID, messageID, "Введи новое время в формате ЧЧ:ММ:")
	case "offset":
		sess.state, sess.field = stateEditValue, field
		b.sessions.put(q.From.ID, sess)
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editText(chatID, messageID, "За сколько минут напоминать заранее? (0 — отключить):")
	case "category":
		sess.state, sess.field = stateEditValue, field
		b.sessions.put(q.From.ID, sess)
		categories, err := b.categorySvc.List(ctx, user)
		if err != nil {
			return err
		}
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editWithMarkup(chatID, messageID, "Выбери новую категорию:", categoryChoiceKeyboard(categories))
	case "repeat":
		sess.state, sess.field = stateEditValue, field
		b.sessions.put(q.From.ID, sess)
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editWithMarkup(chatID, messageID, "Выбери новый тип повтора:", repeatKeyboard())
	default:
		return b.alert(q, "Неизвестное поле.")
	}
}

// pickCategory resolves a category button press from either the add-task
// dialogue or the edit-category flow. categoryID == nil means "no category".
func (b *Bot) pickCategory(ctx context.Context, q *tgbotapi.CallbackQuery, user *model.User, categoryID *uint) error {
	sess := b.sessions.get(q.From.ID)
	if sess == nil {
		return b.alert(q, "Диалог устарел, начни заново.")
	}

	chatID := q.Message.Chat.ID
	messageID := q.Message.MessageID

	if categoryID != nil {
		if _, err := b.categorySvc.Get(ctx, user, *categoryID); err != nil {
			return b.alert(q, "Категория не найдена.")
		}
	}

	switch {
	case sess.state == stateAddCategory:
		sess.draft.CategoryID = categoryID
		sess.state = stateAddStartDate
		b.sessions.put(q.From.ID, sess)
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editText(chatID, messageID, "Укажи дату первого напоминания (ДД.ММ.ГГГГ) или '-' для сегодня:")

	case sess.state == stateEditValue && sess.field == "category":
		taskID := sess.taskID
		b.sessions.clear(q.From.ID)
		if _, err := b.taskSvc.UpdateCategory(ctx, user, taskID, categoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.alert(q, "Задача не найдена.")
			}
			return err
		}
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editWithMarkup(chatID, messageID, "Категория обновлена!", mainMenuKeyboard())

	default:
		return b.alert(q, "Диалог устарел, начни заново.")
	}
}

func (b *Bot) startNewCategory(q *tgbotapi.CallbackQuery) error {
	sess := b.sessions.get(q.From.ID)
	if sess == nil {
		return b.alert(q, "Диалог устарел, начни заново.")
	}

	switch {
	case sess.state == stateAddCategory:
		sess.state = stateAddNewCategoryName
	case sess.state == stateEditValue && sess.field == "category":
		sess.state = stateEditNewCategoryName
	default:
		return b.alert(q, "Диалог устарел, начни заново.")
	}
	b.sessions.put(q.From.ID, sess)

	if err := b.answer(q, ""); err != nil {
		return err
	}
	return b.editText(q.Message.Chat.ID, q.Message.MessageID, "Введи название новой категории:")
}

// chooseRepeatType handles a repeat-policy button in both the add dialogue and
// the edit flow. Editing to weekly or interval applies the defaults (weekdays,
// every day); the picker is only part of the add dialogue.
func (b *Bot) chooseRepeatType(ctx context.Context, q *tgbotapi.CallbackQuery, user *model.User, repeatType string) error {
	sess := b.sessions.get(q.From.ID)
	if sess == nil {
		return b.alert(q, "Диалог устарел, начни заново.")
	}

	chatID := q.Message.Chat.ID
	messageID := q.Message.MessageID

	if sess.state == stateAddRepeatType {
		switch repeatType {
		case model.RepeatNone, model.RepeatDaily:
			sess.draft.RepeatType = repeatType
			sess.state = stateAddOffset
			b.sessions.put(q.From.ID, sess)
			if err := b.answer(q, ""); err != nil {
				return err
			}
			return b.editText(chatID, messageID, offsetPrompt)
		case model.RepeatWeekly:
			sess.draft.RepeatType = repeatType
			sess.days = nil
			sess.state = stateAddRepeatDays
			b.sessions.put(q.From.ID, sess)
			if err := b.answer(q, ""); err != nil {
				return err
			}
			return b.editWithMarkup(chatID, messageID, "Выбери дни недели:", daysKeyboard(nil))
		case model.RepeatInterval:
			sess.draft.RepeatType = repeatType
			sess.state = stateAddIntervalDays
			b.sessions.put(q.From.ID, sess)
			if err := b.answer(q, ""); err != nil {
				return err
			}
			return b.editText(chatID, messageID, "Раз в сколько дней повторять? Введи число:")
		default:
			return b.alert(q, "Неизвестный тип повтора.")
		}
	}

	if sess.state == stateEditValue && sess.field == "repeat" {
		repeatDays := ""
		intervalDays := 0
		switch repeatType {
		case model.RepeatWeekly:
			repeatDays = "mon,tue,wed,thu,fri"
		case model.RepeatInterval:
			intervalDays = 1
		}
		taskID := sess.taskID
		b.sessions.clear(q.From.ID)
		if _, err := b.taskSvc.UpdateRepeat(ctx, user, taskID, repeatType, repeatDays, intervalDays); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.alert(q, "Задача не найдена.")
			}
			return err
		}
		if err := b.answer(q, ""); err != nil {
			return err
		}
		return b.editWithMarkup(chatID, messageID, "Повтор обновлён!", mainMenuKeyboard())
	}

	return b.alert(q, "Диалог устарел, начни заново.")
}

func (b *Bot) toggleRepeatDay(q *tgbotapi.CallbackQuery, code string) error {
	sess := b.sessions.get(q.From.ID)
	if sess == nil || sess.state != stateAddRepeatDays {
		return b.alert(q, "Диалог устарел, начни заново.")
	}
	if _, ok := weekdayButtonLabels[code]; !ok {
		return b.answer(q, "")
	}

	sess.toggleDay(code)
	b.sessions.put(q.From.ID, sess)
	if err := b.answer(q, ""); err != nil {
		return err
	}
	return b.editWithMarkup(q.Message.Chat.ID, q.Message.MessageID, "Выбери дни недели:", daysKeyboard(sess.days))
}

func (b *Bot) finishRepeatDays(q *tgbotapi.CallbackQuery) error {
	sess := b.sessions.get(q.From.ID)
	if sess == nil || sess.state != stateAddRepeatDays {
		return b.alert(q, "Диалог устарел, начни заново.")
	}
	if len(sess.days) == 0 {
		return b.alert(q, "Выбери хотя бы один день!")
	}

	sess.draft.RepeatDays = strings.Join(canonicalDays(sess.days), ",")
	sess.state = stateAddOffset
	b.sessions.put(q.From.ID, sess)
	if err := b.answer(q, ""); err != nil {
		return err
	}
	return b.editText(q.Message.Chat.ID, q.Message.MessageID, offsetPrompt)
}

// canonicalDays re-orders picked day codes into Monday-first order.
func canonicalDays(picked []string) []string {
	set := make(map[string]bool, len(picked))
	for _, code := range picked {
		set[code] = true
	}
	ordered := make([]string, 0, len(picked))
	for _, code := range weekdayOrder {
		if set[code] {
			ordered = append(ordered, code)
		}
	}
	return ordered
}

func (b *Bot) showStats(ctx context.Context, q *tgbotapi.CallbackQuery, user *model.User) error {
	stats, err := b.taskSvc.Stats(ctx, user, time.Now())
	if err != nil {
		return err
	}
	if err := b.answer(q, ""); err != nil {
		return err
	}

	text := fmt.Sprintf(
		"📊 <b>Статистика</b>\n\n"+
			"Выполнено сегодня: <b>%d</b>\n"+
			"Выполнено за 7 дней: <b>%d</b>\n"+
			"Выполнено за 30 дней: <b>%d</b>\n\n"+
			"Всего задач: <b>%d</b>\n"+
			"Активных: <b>%d</b>\n"+
			"Категорий: <b>%d</b>",
		stats.DoneToday, stats.DoneWeek, stats.DoneMonth,
		stats.Total, stats.Active, stats.Categories,
	)
	return b.editWithMarkup(q.Message.Chat.ID, q.Message.MessageID, text, backKeyboard())
}

func (b *Bot) exportCSV(ctx context.Context, q *tgbotapi.CallbackQuery, user *model.User) error {
	data, err := b.taskSvc.ExportCSV(ctx, user)
	if err != nil {
		return err
	}
	if data == nil {
		return b.alert(q, "Нет данных для экспорта.")
	}
	if err := b.answer(q, ""); err != nil {
		return err
	}

	file := tgbotapi.FileBytes{
		Name:  fmt.Sprintf("tasks_export_%s.csv", time.Now().Format("20060102")),
		Bytes: data,
	}
	doc := tgbotapi.NewDocument(q.Message.Chat.ID, file)
	doc.Caption = "📤 Экспорт твоих задач"
	_, err = b.api.Send(doc)
	return err
}

func (b *Bot) sendCategoryChoice(ctx context.Context, chatID int64, user *model.User) error {
	categories, err := b.categorySvc.List(ctx, user)
	if err != nil {
		return err
	}
	return b.sendWithMarkup(chatID, "Выбери категорию:", categoryChoiceKeyboard(categories))
}

// sendCategoriesMenu renders category management. messageID != 0 edits an
// existing menu message in place.
func (b *Bot) sendCategoriesMenu(ctx context.Context, chatID int64, user *model.User, messageID int) error {
	categories, err := b.categorySvc.List(ctx, user)
	if err != nil {
		return err
	}

	text := "📁 <b>Твои категории:</b>"
	if len(categories) == 0 {
		text = "Категорий пока нет. Создай первую!"
	}
	markup := categoriesMenuKeyboard(categories)

	if messageID != 0 {
		return b.editWithMarkup(chatID, messageID, text, markup)
	}
	return b.sendWithMarkup(chatID, text, markup)
}

func (b *Bot) showCategory(ctx context.Context, q *tgbotapi.CallbackQuery, user *model.User, categoryID uint) error {
	category, err := b.categorySvc.Get(ctx, user, categoryID)
	if err != nil {
		return b.alert(q, "Категория не найдена.")
	}
	id := category.ID
	tasks, err := b.taskSvc.List(ctx, user, &id)
	if err != nil {
		return err
	}
	if err := b.answer(q, ""); err != nil {
		return err
	}

	text := fmt.Sprintf("📁 <b>%s</b>\nАктивных задач: %d", escape(category.Name), len(tasks))
	return b.editWithMarkup(q.Message.Chat.ID, q.Message.MessageID, text, categoryViewKeyboard(category.ID))
}

func (b *Bot) answer(q *tgbotapi.CallbackQuery, text string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(q.ID, text))
	return err
}

func (b *Bot) alert(q *tgbotapi.CallbackQuery, text string) error {
	_, err := b.api.Request(tgbotapi.NewCallbackWithAlert(q.ID, text))
	return err
}
