package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"reminder-bot/internal/model"
	"reminder-bot/internal/schedule"
)

// TaskSource is the slice of the task store the scheduler needs: reloading a
// task on fire and enumerating pending tasks at startup.
type TaskSource interface {
	GetByID(ctx context.Context, taskID uint) (*model.Task, error)
	ListPending(ctx context.Context) ([]model.Task, error)
}

// UserSource resolves a task owner to a deliverable user record.
type UserSource interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// Notifier renders and delivers reminder messages. Implemented by the bot.
type Notifier interface {
	NotifyMain(chatID int64, task model.Task) error
	NotifyEarly(chatID int64, task model.Task, offsetMinutes int) error
}

type fireKind int

const (
	fireMain fireKind = iota
	fireEarly
)

// jobEntries holds the live cron entries of one task: at most one main and
// one early reminder.
type jobEntries struct {
	main     cron.EntryID
	early    cron.EntryID
	hasEarly bool
}

// SchedulerService owns the reminder dispatch loop. It keeps a table of
// pending jobs keyed by task ID so that scheduling is a replace and
// cancelling is idempotent.
type SchedulerService struct {
	cron         *cron.Cron
	loc          *time.Location
	tasks        TaskSource
	users        UserSource
	notifier     Notifier
	log          *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time

	mu      sync.Mutex
	entries map[uint]jobEntries
}

func NewSchedulerService(loc *time.Location, tasks TaskSource, users UserSource, notifier Notifier, storeTimeout time.Duration, log *zap.Logger) *SchedulerService {
	cronLog := cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))
	s := &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
		loc:          loc,
		tasks:        tasks,
		users:        users,
		notifier:     notifier,
		log:          log,
		storeTimeout: storeTimeout,
		now:          time.Now,
		entries:      make(map[uint]jobEntries),
	}
	return s
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// ScheduleTask registers the task's main and, if configured, early reminder
// jobs, replacing any jobs already registered for the same task. Safe to call
// after every edit.
func (s *SchedulerService) ScheduleTask(task model.Task) error {
	now := s.now().In(s.loc)

	main, err := schedule.MainTrigger(task, now)
	if err != nil {
		return err
	}
	early, hasEarly, err := schedule.EarlyTrigger(task, now)
	if err != nil {
		return err
	}

	taskID := task.ID

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(taskID)

	// Each job carries the identity of its own entry so that a one-shot
	// consume can tell a stale fire from the live registration. The pointee
	// is written below and read by consume, both under s.mu.
	mainID := new(cron.EntryID)
	*mainID = s.cron.Schedule(main.Schedule, cron.FuncJob(func() {
		s.fire(taskID, fireMain, 0, main.OneShot, mainID)
	}))
	next := jobEntries{main: *mainID}
	if hasEarly {
		offset := task.ReminderOffset
		earlyID := new(cron.EntryID)
		*earlyID = s.cron.Schedule(early.Schedule, cron.FuncJob(func() {
			s.fire(taskID, fireEarly, offset, early.OneShot, earlyID)
		}))
		next.early = *earlyID
		next.hasEarly = true
	}
	s.entries[taskID] = next

	s.log.Debug("task scheduled",
		zap.Uint("task_id", taskID),
		zap.String("repeat", task.RepeatType),
		zap.Bool("early", hasEarly))
	return nil
}

// CancelTask removes the task's jobs. Cancelling a task with no live jobs is
// a no-op: a one-shot may already have fired and removed itself.
func (s *SchedulerService) CancelTask(taskID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(taskID)
}

// RescheduleAll rebuilds the job table from persisted tasks. Called once at
// startup, before the dispatch loop starts; jobs otherwise live only in
// process memory.
func (s *SchedulerService) RescheduleAll(ctx context.Context) (int, error) {
	tasks, err := s.tasks.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, task := range tasks {
		if err := s.ScheduleTask(task); err != nil {
			s.log.Warn("reschedule task", zap.Uint("task_id", task.ID), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

// fire runs on each due trigger. The task is reloaded from the store: a
// missing or completed task means the reminder raced with a deletion or
// completion and is silently skipped.
func (s *SchedulerService) fire(taskID uint, kind fireKind, offset int, oneShot bool, firedEntry *cron.EntryID) {
	if oneShot {
		defer s.consume(taskID, kind, firedEntry)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		s.log.Debug("fire skipped, task unavailable", zap.Uint("task_id", taskID), zap.Error(err))
		return
	}
	if task.IsDone {
		s.log.Debug("fire skipped, task done", zap.Uint("task_id", taskID))
		return
	}

	user, err := s.users.FindByID(ctx, task.UserID)
	if err != nil {
		s.log.Warn("fire skipped, owner unavailable",
			zap.Uint("task_id", taskID), zap.Uint("user_id", task.UserID), zap.Error(err))
		return
	}

	if kind == fireEarly {
		err = s.notifier.NotifyEarly(user.TelegramID, *task, offset)
	} else {
		err = s.notifier.NotifyMain(user.TelegramID, *task)
	}
	if err != nil {
		s.log.Warn("reminder delivery failed", zap.Uint("task_id", taskID), zap.Error(err))
	}
}

// consume drops a fired one-shot entry from the live job table. The fire may
// race with a ScheduleTask replacing the task's jobs; only the entry that
// actually fired is removed, a replacement registered meanwhile stays live.
func (s *SchedulerService) consume(taskID uint, kind fireKind, firedEntry *cron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.entries[taskID]
	if !ok {
		return
	}
	switch kind {
	case fireMain:
		if entries.main != *firedEntry {
			return
		}
		s.cron.Remove(entries.main)
		entries.main = 0
	case fireEarly:
		if !entries.hasEarly || entries.early != *firedEntry {
			return
		}
		s.cron.Remove(entries.early)
		entries.early = 0
		entries.hasEarly = false
	}
	if entries.main == 0 && !entries.hasEarly {
		delete(s.entries, taskID)
		return
	}
	s.entries[taskID] = entries
}

func (s *SchedulerService) removeLocked(taskID uint) {
	entries, ok := s.entries[taskID]
	if !ok {
		return
	}
	if entries.main != 0 {
		s.cron.Remove(entries.main)
	}
	if entries.hasEarly {
		s.cron.Remove(entries.early)
	}
	delete(s.entries, taskID)
}

