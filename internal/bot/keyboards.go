package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reminder-bot/internal/model"
)

const offsetPrompt = "За сколько минут до времени прислать предварительное напоминание? (0 — не нужно):"

// weekdayOrder fixes the picker layout; weekdayButtonLabels are the short
// Russian names shown on the buttons.
var weekdayOrder = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

var weekdayButtonLabels = map[string]string{
	"mon": "Пн", "tue": "Вт", "wed": "Ср", "thu": "Чт",
	"fri": "Пт", "sat": "Сб", "sun": "Вс",
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Добавить задачу", plainAction(actAddTask)),
			tgbotapi.NewInlineKeyboardButtonData("📋 Список задач", plainAction(actListMenu)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Выполнить задачу", plainAction(actDoneMenu)),
			tgbotapi.NewInlineKeyboardButtonData("✏️ Редактировать", plainAction(actEditMenu)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить задачу", plainAction(actDeleteMenu)),
			tgbotapi.NewInlineKeyboardButtonData("📊 Статистика", plainAction(actStats)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📁 Категории", plainAction(actCategories)),
			tgbotapi.NewInlineKeyboardButtonData("📤 Экспорт CSV", plainAction(actExport)),
		),
	)
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ В меню", plainAction(actBackMain)),
		),
	)
}

// categoryChoiceKeyboard is shown while adding a task: pick an existing
// category, create a new one inline, or skip.
func categoryChoiceKeyboard(categories []model.Category) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(categories)+2)
	for _, category := range categories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📁 "+category.Name, idAction(actPickCategory, category.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Новая категория", plainAction(actNewCategory)),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Без категории", plainAction(actSkipCategory)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// categoryFilterKeyboard narrows a task listing to one category. kind selects
// which flow the filter feeds (list, complete, edit or delete).
func categoryFilterKeyboard(kind actionKind, categories []model.Category) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(categories)+2)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📋 Все задачи", valueAction(kind, "all")),
	))
	for _, category := range categories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📁 "+category.Name, idAction(kind, category.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ В меню", plainAction(actBackMain)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func repeatKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Однократно", valueAction(actRepeatType, model.RepeatNone)),
			tgbotapi.NewInlineKeyboardButtonData("Ежедневно", valueAction(actRepeatType, model.RepeatDaily)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("По дням недели", valueAction(actRepeatType, model.RepeatWeekly)),
			tgbotapi.NewInlineKeyboardButtonData("Каждые N дней", valueAction(actRepeatType, model.RepeatInterval)),
		),
	)
}

// daysKeyboard renders the weekly picker with the currently selected days
// marked.
func daysKeyboard(selected []string) tgbotapi.InlineKeyboardMarkup {
	picked := make(map[string]bool, len(selected))
	for _, code := range selected {
		picked[code] = true
	}

	row := make([]tgbotapi.InlineKeyboardButton, 0, len(weekdayOrder))
	for _, code := range weekdayOrder {
		label := weekdayButtonLabels[code]
		if picked[code] {
			label = "✅" + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, valueAction(actToggleDay, code)))
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		row,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Готово", plainAction(actDaysDone)),
		),
	)
}

// tasksKeyboard lists tasks one per row; pressing a task triggers kind with
// the task's ID.
func tasksKeyboard(kind actionKind, tasks []model.Task) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tasks)+1)
	for _, task := range tasks {
		label := fmt.Sprintf("%s — %s", task.Title, task.DueTime)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, idAction(kind, task.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ В меню", plainAction(actBackMain)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func editFieldKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Название", valueAction(actEditField, "title")),
			tgbotapi.NewInlineKeyboardButtonData("🕒 Время", valueAction(actEditField, "time")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📁 Категория", valueAction(actEditField, "category")),
			tgbotapi.NewInlineKeyboardButtonData("🔁 Повтор", valueAction(actEditField, "repeat")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏳ Предв. напоминание", valueAction(actEditField, "offset")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ В меню", plainAction(actBackMain)),
		),
	)
}

func confirmDeleteKeyboard(taskID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Да, удалить", idAction(actConfirmDelete, taskID)),
			tgbotapi.NewInlineKeyboardButtonData("Отмена", plainAction(actCancelDelete)),
		),
	)
}

func categoriesMenuKeyboard(categories []model.Category) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(categories)+2)
	for _, category := range categories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📁 "+category.Name, idAction(actCatView, category.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Создать категорию", plainAction(actCatCreate)),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ В меню", plainAction(actBackMain)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func categoryViewKeyboard(categoryID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Переименовать", idAction(actCatRename, categoryID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", idAction(actCatDelete, categoryID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ К категориям", plainAction(actCategories)),
		),
	)
}

func reminderDoneKeyboard(taskID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Выполнено", idAction(actDoneTask, taskID)),
		),
	)
}
