package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"reminder-bot/internal/model"
)

// Trigger describes when a reminder fires: either a recurrence rule or a
// single absolute instant. Schedule values are pure; computing the next fire
// time has no side effects.
type Trigger struct {
	Schedule cron.Schedule
	// OneShot marks triggers that fire exactly once and must be dropped from
	// the live job table after firing.
	OneShot bool
}

// MainTrigger computes the trigger for a task's primary reminder at its due
// time. The explicit now makes the roll-forward rules deterministic.
func MainTrigger(task model.Task, now time.Time) (Trigger, error) {
	hour, minute, err := ParseClock(task.DueTime)
	if err != nil {
		return Trigger{}, fmt.Errorf("task %d: %w", task.ID, err)
	}
	return triggerAt(task, hour, minute, now), nil
}

// EarlyTrigger computes the optional heads-up trigger, firing ReminderOffset
// minutes before the due time on the same cadence as the main trigger. The
// second return value reports whether the task has an early reminder at all.
func EarlyTrigger(task model.Task, now time.Time) (Trigger, bool, error) {
	if task.ReminderOffset <= 0 {
		return Trigger{}, false, nil
	}
	hour, minute, err := ParseClock(task.DueTime)
	if err != nil {
		return Trigger{}, false, fmt.Errorf("task %d: %w", task.ID, err)
	}
	hour, minute = EarlyClock(hour, minute, task.ReminderOffset)
	return triggerAt(task, hour, minute, now), true, nil
}

// triggerAt builds the trigger for the task's repeat policy at the given
// time-of-day. Weekly tasks without days and interval tasks without a cadence
// degrade to the one-shot rule.
func triggerAt(task model.Task, hour, minute int, now time.Time) Trigger {
	loc := now.Location()

	switch {
	case task.RepeatType == model.RepeatDaily:
		return Trigger{Schedule: clockSchedule{hour: hour, minute: minute}}

	case task.RepeatType == model.RepeatWeekly && task.RepeatDays != "":
		days := parseWeekdays(task.RepeatDays)
		if len(days) > 0 {
			return Trigger{Schedule: weekdaySchedule{hour: hour, minute: minute, days: days}}
		}

	case task.RepeatType == model.RepeatInterval && task.IntervalDays > 0:
		start := combine(task.StartDate, hour, minute, loc)
		if !start.After(now) {
			// Single-jump catch-up: one interval forward, even when that
			// still lands in the past.
			start = start.AddDate(0, 0, task.IntervalDays)
		}
		return Trigger{Schedule: intervalSchedule{
			start: start,
			every: time.Duration(task.IntervalDays) * 24 * time.Hour,
		}}
	}

	runAt := combine(task.StartDate, hour, minute, loc)
	if !runAt.After(now) {
		runAt = runAt.AddDate(0, 0, 1)
	}
	return Trigger{Schedule: onceSchedule{runAt: runAt}, OneShot: true}
}

// ParseClock parses a wall-clock "HH:MM" string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// EarlyClock shifts a time-of-day back by offset minutes. A negative minute
// borrows from the hour; a negative hour is clamped to 23 without moving the
// calendar day, so an offset crossing midnight wraps to the late evening.
func EarlyClock(hour, minute, offset int) (int, int) {
	minute -= offset
	for minute < 0 {
		minute += 60
		hour--
	}
	if hour < 0 {
		hour = 23
	}
	return hour, minute
}

// combine anchors a time-of-day on the given calendar date.
func combine(day time.Time, hour, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
}

var weekdayCodes = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

func parseWeekdays(s string) map[time.Weekday]bool {
	days := make(map[time.Weekday]bool)
	for _, code := range strings.Split(s, ",") {
		if day, ok := weekdayCodes[strings.TrimSpace(strings.ToLower(code))]; ok {
			days[day] = true
		}
	}
	return days
}

// onceSchedule fires at a single absolute instant, then never again.
type onceSchedule struct {
	runAt time.Time
}

func (s onceSchedule) Next(t time.Time) time.Time {
	if s.runAt.After(t) {
		return s.runAt
	}
	return time.Time{}
}

// clockSchedule fires every day at a fixed time-of-day.
type clockSchedule struct {
	hour, minute int
}

func (s clockSchedule) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), s.hour, s.minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// weekdaySchedule fires at a fixed time-of-day on a set of weekdays.
type weekdaySchedule struct {
	hour, minute int
	days         map[time.Weekday]bool
}

func (s weekdaySchedule) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), s.hour, s.minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	for i := 0; i < 7; i++ {
		if s.days[next.Weekday()] {
			return next
		}
		next = next.AddDate(0, 0, 1)
	}
	return time.Time{}
}

// intervalSchedule fires at start and then every fixed period after it.
type intervalSchedule struct {
	start time.Time
	every time.Duration
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	if s.start.After(t) {
		return s.start
	}
	n := t.Sub(s.start)/s.every + 1
	return s.start.Add(n * s.every)
}
