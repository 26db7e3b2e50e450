package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"reminder-bot/internal/model"
	"reminder-bot/internal/repository"
	"reminder-bot/internal/schedule"
)

// Scheduler is the slice of the reminder scheduler the task service drives:
// every mutation re-registers or cancels the task's reminder jobs.
type Scheduler interface {
	ScheduleTask(task model.Task) error
	CancelTask(taskID uint)
}

// TaskInput carries the fields collected by the add-task dialogue.
type TaskInput struct {
	Title          string
	CategoryID     *uint
	StartDate      time.Time
	DueTime        string
	RepeatType     string
	RepeatDays     string
	IntervalDays   int
	ReminderOffset int
}

// Stats summarizes a user's task history.
type Stats struct {
	DoneToday  int64
	DoneWeek   int64
	DoneMonth  int64
	Total      int64
	Active     int64
	Categories int64
}

// TaskService wraps task business logic and keeps the reminder schedule in
// sync with every mutation.
type TaskService struct {
	taskRepo     *repository.TaskRepository
	categoryRepo *repository.CategoryRepository
	scheduler    Scheduler
	log          *zap.Logger
}

func NewTaskService(taskRepo *repository.TaskRepository, categoryRepo *repository.CategoryRepository, scheduler Scheduler, log *zap.Logger) *TaskService {
	return &TaskService{taskRepo: taskRepo, categoryRepo: categoryRepo, scheduler: scheduler, log: log}
}

// Create validates the input, persists the task and registers its reminder
// jobs. Creation and schedule registration are one unit: if registration
// fails, the freshly created row is removed again.
func (s *TaskService) Create(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if _, _, err := schedule.ParseClock(input.DueTime); err != nil {
		return nil, err
	}
	if input.ReminderOffset < 0 {
		return nil, fmt.Errorf("reminder offset must be non-negative")
	}

	repeatType := input.RepeatType
	if repeatType == "" {
		repeatType = model.RepeatNone
	}
	switch repeatType {
	case model.RepeatNone, model.RepeatDaily:
	case model.RepeatWeekly:
		if strings.TrimSpace(input.RepeatDays) == "" {
			return nil, fmt.Errorf("weekly repeat needs at least one day")
		}
	case model.RepeatInterval:
		if input.IntervalDays < 1 {
			return nil, fmt.Errorf("interval must be at least one day")
		}
	default:
		return nil, fmt.Errorf("unknown repeat type %q", repeatType)
	}

	if input.CategoryID != nil {
		if _, err := s.categoryRepo.FindByID(ctx, user.ID, *input.CategoryID); err != nil {
			return nil, fmt.Errorf("category lookup: %w", err)
		}
	}

	startDate := input.StartDate
	if startDate.IsZero() {
		startDate = time.Now()
	}

	task := model.Task{
		UserID:         user.ID,
		CategoryID:     input.CategoryID,
		Title:          strings.TrimSpace(input.Title),
		DueTime:        input.DueTime,
		StartDate:      startDate,
		RepeatType:     repeatType,
		RepeatDays:     input.RepeatDays,
		IntervalDays:   input.IntervalDays,
		ReminderOffset: input.ReminderOffset,
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	if err := s.scheduler.ScheduleTask(task); err != nil {
		// Do not leave an unscheduled task behind.
		if delErr := s.taskRepo.Delete(ctx, user.ID, task.ID); delErr != nil {
			s.log.Error("rollback of unscheduled task failed",
				zap.Uint("task_id", task.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("schedule task: %w", err)
	}

	s.log.Info("task created",
		zap.Uint("task_id", task.ID), zap.Uint("user_id", user.ID), zap.String("repeat", task.RepeatType))
	return &task, nil
}

func (s *TaskService) Get(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, user.ID, taskID)
}

func (s *TaskService) List(ctx context.Context, user *model.User, categoryID *uint) ([]model.Task, error) {
	return s.taskRepo.ListActive(ctx, user.ID, categoryID)
}

func (s *TaskService) UpdateTitle(ctx context.Context, user *model.User, taskID uint, title string) (*model.Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	return s.update(ctx, user, taskID, func(task *model.Task) error {
		task.Title = strings.TrimSpace(title)
		return nil
	})
}

func (s *TaskService) UpdateDueTime(ctx context.Context, user *model.User, taskID uint, dueTime string) (*model.Task, error) {
	if _, _, err := schedule.ParseClock(dueTime); err != nil {
		return nil, err
	}
	return s.update(ctx, user, taskID, func(task *model.Task) error {
		task.DueTime = dueTime
		return nil
	})
}

func (s *TaskService) UpdateCategory(ctx context.Context, user *model.User, taskID uint, categoryID *uint) (*model.Task, error) {
	if categoryID != nil {
		if _, err := s.categoryRepo.FindByID(ctx, user.ID, *categoryID); err != nil {
			return nil, fmt.Errorf("category lookup: %w", err)
		}
	}
	return s.update(ctx, user, taskID, func(task *model.Task) error {
		task.CategoryID = categoryID
		return nil
	})
}

// UpdateRepeat switches the repeat policy, resetting the parameters of the
// previous policy.
func (s *TaskService) UpdateRepeat(ctx context.Context, user *model.User, taskID uint, repeatType, repeatDays string, intervalDays int) (*model.Task, error) {
	switch repeatType {
	case model.RepeatNone, model.RepeatDaily, model.RepeatWeekly, model.RepeatInterval:
	default:
		return nil, fmt.Errorf("unknown repeat type %q", repeatType)
	}
	return s.update(ctx, user, taskID, func(task *model.Task) error {
		task.RepeatType = repeatType
		task.RepeatDays = ""
		task.IntervalDays = 0
		switch repeatType {
		case model.RepeatWeekly:
			if strings.TrimSpace(repeatDays) == "" {
				return fmt.Errorf("weekly repeat needs at least one day")
			}
			task.RepeatDays = repeatDays
		case model.RepeatInterval:
			if intervalDays < 1 {
				return fmt.Errorf("interval must be at least one day")
			}
			task.IntervalDays = intervalDays
		}
		return nil
	})
}

func (s *TaskService) UpdateOffset(ctx context.Context, user *model.User, taskID uint, minutes int) (*model.Task, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("reminder offset must be non-negative")
	}
	return s.update(ctx, user, taskID, func(task *model.Task) error {
		task.ReminderOffset = minutes
		return nil
	})
}

// update applies a mutation to an owner-scoped task, persists it and re-runs
// scheduling so the next fire reflects the edit.
func (s *TaskService) update(ctx context.Context, user *model.User, taskID uint, mutate func(*model.Task) error) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}
	if err := mutate(task); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	if err := s.scheduler.ScheduleTask(*task); err != nil {
		return nil, fmt.Errorf("reschedule task: %w", err)
	}
	return task, nil
}

// Complete marks a task done and cancels its reminders. Completing an
// already-done task is a no-op.
func (s *TaskService) Complete(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsDone {
		if err := s.taskRepo.MarkDone(ctx, task); err != nil {
			return nil, err
		}
	}
	s.scheduler.CancelTask(task.ID)
	s.log.Info("task completed", zap.Uint("task_id", task.ID), zap.Uint("user_id", user.ID))
	return task, nil
}

// Delete cancels the task's reminders first, then removes the row.
func (s *TaskService) Delete(ctx context.Context, user *model.User, taskID uint) error {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return err
	}
	s.scheduler.CancelTask(task.ID)
	if err := s.taskRepo.Delete(ctx, user.ID, task.ID); err != nil {
		return err
	}
	s.log.Info("task deleted", zap.Uint("task_id", task.ID), zap.Uint("user_id", user.ID))
	return nil
}

// Stats aggregates completion counters over today / 7 days / 30 days windows.
func (s *TaskService) Stats(ctx context.Context, user *model.User, now time.Time) (Stats, error) {
	var stats Stats
	var err error

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if stats.DoneToday, err = s.taskRepo.CountDoneSince(ctx, user.ID, today); err != nil {
		return stats, err
	}
	if stats.DoneWeek, err = s.taskRepo.CountDoneSince(ctx, user.ID, today.AddDate(0, 0, -7)); err != nil {
		return stats, err
	}
	if stats.DoneMonth, err = s.taskRepo.CountDoneSince(ctx, user.ID, today.AddDate(0, 0, -30)); err != nil {
		return stats, err
	}
	if stats.Total, err = s.taskRepo.CountByUser(ctx, user.ID); err != nil {
		return stats, err
	}
	if stats.Active, err = s.taskRepo.CountActive(ctx, user.ID); err != nil {
		return stats, err
	}
	if stats.Categories, err = s.categoryRepo.CountByUser(ctx, user.ID); err != nil {
		return stats, err
	}
	return stats, nil
}

// ExportCSV renders every task of the user as a CSV document. The UTF-8 BOM
// keeps spreadsheet apps from garbling Cyrillic text.
func (s *TaskService) ExportCSV(ctx context.Context, user *model.User) ([]byte, error) {
	tasks, err := s.taskRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	categories, err := s.categoryRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	catNames := make(map[uint]string, len(categories))
	for _, cat := range categories {
		catNames[cat.ID] = cat.Name
	}

	var buf bytes.Buffer
	buf.WriteString("\xEF\xBB\xBF")
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"ID", "Название", "Категория", "Время", "Дата создания", "Статус", "Повтор"}); err != nil {
		return nil, err
	}
	for _, task := range tasks {
		catName := ""
		if task.CategoryID != nil {
			catName = catNames[*task.CategoryID]
		}
		status := "Активна"
		if task.IsDone {
			status = "Выполнена"
		}
		record := []string{
			fmt.Sprintf("%d", task.ID),
			task.Title,
			catName,
			task.DueTime,
			task.CreatedAt.Format("02.01.2006 15:04"),
			status,
			RepeatSummary(task),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var weekdayLabels = map[string]string{
	"mon": "Пн", "tue": "Вт", "wed": "Ср", "thu": "Чт", "fri": "Пт", "sat": "Сб", "sun": "Вс",
}

// RepeatSummary renders a task's repeat policy for lists and exports.
func RepeatSummary(task model.Task) string {
	switch {
	case task.RepeatType == model.RepeatDaily:
		return "Ежедневно"
	case task.RepeatType == model.RepeatWeekly && task.RepeatDays != "":
		var days []string
		for _, code := range strings.Split(task.RepeatDays, ",") {
			if label, ok := weekdayLabels[strings.TrimSpace(strings.ToLower(code))]; ok {
				days = append(days, label)
			}
		}
		return "По дням: " + strings.Join(days, ", ")
	case task.RepeatType == model.RepeatInterval && task.IntervalDays > 0:
		return fmt.Sprintf("Каждые %d дн.", task.IntervalDays)
	default:
		return "Однократно"
	}
}
