package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"reminder-bot/internal/model"
	"reminder-bot/internal/repository"
)

type fakeScheduler struct {
	scheduled []uint
	cancelled []uint
	fail      bool
}

func (f *fakeScheduler) ScheduleTask(task model.Task) error {
	if f.fail {
		return errors.New("scheduler unavailable")
	}
	f.scheduled = append(f.scheduled, task.ID)
	return nil
}

func (f *fakeScheduler) CancelTask(taskID uint) {
	f.cancelled = append(f.cancelled, taskID)
}

type taskServiceFixture struct {
	svc       *TaskService
	catSvc    *CategoryService
	scheduler *fakeScheduler
	taskRepo  *repository.TaskRepository
	user      *model.User
}

func newTaskServiceFixture(t *testing.T) *taskServiceFixture {
	t.Helper()

	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	scheduler := &fakeScheduler{}

	user, err := userRepo.UpsertFromTelegram(context.Background(), 42, "Аня", "", "anya")
	require.NoError(t, err)

	return &taskServiceFixture{
		svc:       NewTaskService(taskRepo, categoryRepo, scheduler, zap.NewNop()),
		catSvc:    NewCategoryService(categoryRepo),
		scheduler: scheduler,
		taskRepo:  taskRepo,
		user:      user,
	}
}

func validInput() TaskInput {
	return TaskInput{
		Title:      "купить молоко",
		DueTime:    "18:00",
		StartDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		RepeatType: model.RepeatNone,
	}
}

func TestCreateSchedulesTask(t *testing.T) {
	f := newTaskServiceFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, validInput())
	require.NoError(t, err)

	assert.Equal(t, "купить молоко", task.Title)
	assert.Equal(t, []uint{task.ID}, f.scheduler.scheduled)

	stored, err := f.taskRepo.FindByID(ctx, f.user.ID, task.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsDone)
}

func TestCreateValidatesInput(t *testing.T) {
	f := newTaskServiceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*TaskInput)
	}{
		{"empty title", func(in *TaskInput) { in.Title = "  " }},
		{"bad due time", func(in *TaskInput) { in.DueTime = "25:00" }},
		{"negative offset", func(in *TaskInput) { in.ReminderOffset = -5 }},
		{"weekly without days", func(in *TaskInput) { in.RepeatType = model.RepeatWeekly }},
		{"interval without cadence", func(in *TaskInput) { in.RepeatType = model.RepeatInterval }},
		{"unknown repeat", func(in *TaskInput) { in.RepeatType = "hourly" }},
		{"unknown category", func(in *TaskInput) { id := uint(999); in.CategoryID = &id }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := f.svc.Create(ctx, f.user, in)
			assert.Error(t, err)
		})
	}

	count, err := f.taskRepo.CountByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.scheduler.scheduled)
}

func TestCreateRollsBackWhenSchedulingFails(t *testing.T) {
	f := newTaskServiceFixture(t)
	ctx := context.Background()
	f.scheduler.fail = true

	_, err := f.svc.Create(ctx, f.user, validInput())
	require.Error(t, err)

	count, err := f.taskRepo.CountByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpdateDueTimeReschedules(t *testing.T) {
	f := newTaskServiceFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, validInput())
	require.NoError(t, err)

	updated, err := f.svc.UpdateDueTime(ctx, f.user, task.ID, "07:15")
	require.NoError(t, err)

	assert.Equal(t, "07:15", updated.DueTime)
	assert.Equal(t, []uint{task.ID, task.ID}, f.scheduler.scheduled)

	_, err = f.svc.UpdateDueTime(ctx, f.user, task.ID, "7 утра")
	assert.Error(t, err)
}

func TestUpdateRepeatResetsPreviousPolicy(t *testing.T) {
	f := newTaskServiceFixture(t)
	ctx := context.Background()

	in := validInput()
	in.RepeatType = model.RepeatWeekly
	in.RepeatDays = "mon,thu"
	task, err := f.svc.Create(ctx, f.user, in)
	require.NoError(t, err)

	updated, err := f.svc.UpdateRepeat(ctx, f.user, task.ID, model.RepeatInterval, "", 3)
	require.NoError(t, err)

	assert.Equal(t, model.RepeatInterval, updated.RepeatType)
	assert.Empty(t, updated.RepeatDays)
	assert.Equal(t, 3, updated.IntervalDays)
}

func TestCompleteCancelsAndIsIdempotent(t *testing.T) {
	f := newTaskServiceFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, validInput())
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, f.user, task.ID)
	require.NoError(t, err)
	assert.True(t, done.IsDone)

	// Completing again is harmless.
	_, err = f.svc.Complete(ctx, f.user, task.ID)
	require.NoError(t, err)

	assert.Contains(t, f.scheduler.cancelled, task.ID)
}

func TestDeleteCancelsBeforeRemoving(t *testing.T) {
	f := newTaskServiceFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user, validInput())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.user, task.ID))

	assert.Equal(t, []uint{task.ID}, f.scheduler.cancelled)
	_, err = f.svc.Get(ctx, f.user, task.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestStatsCountsWindowsAndTotals(t *testing.T) {
	f := newTaskServiceFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.user, validInput())
	require.NoError(t, err)
	second := validInput()
	second.Title = "выгулять собаку"
	_, err = f.svc.Create(ctx, f.user, second)
	require.NoError(t, err)
	_, err = f.catSvc.GetOrCreate(ctx, f.user, "Дом")
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.user, first.ID)
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, f.user, time.Now())
	require.NoError(t, err)

	assert.EqualValues(t, 1, stats.DoneToday)
	assert.EqualValues(t, 1, stats.DoneWeek)
	assert.EqualValues(t, 1, stats.DoneMonth)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.Active)
	assert.EqualValues(t, 1, stats.Categories)
}

func TestExportCSVEmptyReturnsNil(t *testing.T) {
	f := newTaskServiceFixture(t)

	data, err := f.svc.ExportCSV(context.Background(), f.user)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestExportCSVRendersTasks(t *testing.T) {
	f := newTaskServiceFixture(t)
	ctx := context.Background()

	category, err := f.catSvc.GetOrCreate(ctx, f.user, "Дом")
	require.NoError(t, err)

	in := validInput()
	in.CategoryID = &category.ID
	in.RepeatType = model.RepeatDaily
	task, err := f.svc.Create(ctx, f.user, in)
	require.NoError(t, err)

	doneIn := validInput()
	doneIn.Title = "сделанная"
	doneTask, err := f.svc.Create(ctx, f.user, doneIn)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.user, doneTask.ID)
	require.NoError(t, err)

	data, err := f.svc.ExportCSV(ctx, f.user)
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "\xEF\xBB\xBF"), "export must start with the UTF-8 BOM")
	assert.Contains(t, text, "ID,Название,Категория,Время,Дата создания,Статус,Повтор")
	assert.Contains(t, text, task.Title)
	assert.Contains(t, text, "Дом")
	assert.Contains(t, text, "Ежедневно")
	assert.Contains(t, text, "Активна")
	assert.Contains(t, text, "Выполнена")
}

func TestRepeatSummary(t *testing.T) {
	tests := []struct {
		name string
		task model.Task
		want string
	}{
		{"once", model.Task{RepeatType: model.RepeatNone}, "Однократно"},
		{"daily", model.Task{RepeatType: model.RepeatDaily}, "Ежедневно"},
		{"weekly", model.Task{RepeatType: model.RepeatWeekly, RepeatDays: "mon,fri"}, "По дням: Пн, Пт"},
		{"weekly without days", model.Task{RepeatType: model.RepeatWeekly}, "Однократно"},
		{"interval", model.Task{RepeatType: model.RepeatInterval, IntervalDays: 4}, "Каждые 4 дн."},
		{"interval without cadence", model.Task{RepeatType: model.RepeatInterval}, "Однократно"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepeatSummary(tt.task))
		})
	}
}
