package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reminder-bot/internal/model"
)

// Tue 2026-03-10, noon UTC.
var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{in: "08:00", hour: 8, minute: 0},
		{in: "23:59", hour: 23, minute: 59},
		{in: " 9:05 ", hour: 9, minute: 5},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		hour, minute, err := ParseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.hour, hour, "input %q", tt.in)
		assert.Equal(t, tt.minute, minute, "input %q", tt.in)
	}
}

func TestEarlyClock(t *testing.T) {
	tests := []struct {
		hour, minute, offset int
		wantHour, wantMinute int
	}{
		{8, 30, 10, 8, 20},
		{8, 0, 10, 7, 50},
		{10, 30, 90, 9, 0},
		// Crossing midnight wraps to late evening of the same day.
		{0, 10, 20, 23, 50},
		{0, 0, 60, 23, 0},
		{1, 5, 125, 23, 0},
	}
	for _, tt := range tests {
		hour, minute := EarlyClock(tt.hour, tt.minute, tt.offset)
		assert.Equal(t, tt.wantHour, hour, "%02d:%02d - %d min", tt.hour, tt.minute, tt.offset)
		assert.Equal(t, tt.wantMinute, minute, "%02d:%02d - %d min", tt.hour, tt.minute, tt.offset)
	}
}

func TestMainTriggerOnceFuture(t *testing.T) {
	task := model.Task{DueTime: "18:00", StartDate: testNow, RepeatType: model.RepeatNone}

	tr, err := MainTrigger(task, testNow)
	require.NoError(t, err)
	assert.True(t, tr.OneShot)
	assert.Equal(t, at(2026, 3, 10, 18, 0), tr.Schedule.Next(testNow))
}

func TestMainTriggerOncePastRollsForwardOneDay(t *testing.T) {
	task := model.Task{DueTime: "09:00", StartDate: testNow, RepeatType: model.RepeatNone}

	tr, err := MainTrigger(task, testNow)
	require.NoError(t, err)
	assert.True(t, tr.OneShot)

	runAt := tr.Schedule.Next(testNow)
	assert.Equal(t, at(2026, 3, 11, 9, 0), runAt)
	// A one-shot never fires twice.
	assert.True(t, tr.Schedule.Next(runAt).IsZero())
}

func TestMainTriggerDaily(t *testing.T) {
	task := model.Task{DueTime: "18:00", StartDate: testNow, RepeatType: model.RepeatDaily}

	tr, err := MainTrigger(task, testNow)
	require.NoError(t, err)
	assert.False(t, tr.OneShot)

	first := tr.Schedule.Next(testNow)
	assert.Equal(t, at(2026, 3, 10, 18, 0), first)
	assert.Equal(t, at(2026, 3, 11, 18, 0), tr.Schedule.Next(first))
}

func TestMainTriggerWeekly(t *testing.T) {
	task := model.Task{
		DueTime:    "18:00",
		StartDate:  testNow,
		RepeatType: model.RepeatWeekly,
		RepeatDays: "mon,fri",
	}

	tr, err := MainTrigger(task, testNow)
	require.NoError(t, err)
	assert.False(t, tr.OneShot)

	// testNow is a Tuesday; the next picked day is Friday, then Monday.
	friday := tr.Schedule.Next(testNow)
	assert.Equal(t, at(2026, 3, 13, 18, 0), friday)
	assert.Equal(t, at(2026, 3, 16, 18, 0), tr.Schedule.Next(friday))
}

func TestMainTriggerWeeklyWithoutDaysFallsBackToOnce(t *testing.T) {
	task := model.Task{DueTime: "18:00", StartDate: testNow, RepeatType: model.RepeatWeekly}

	tr, err := MainTrigger(task, testNow)
	require.NoError(t, err)
	assert.True(t, tr.OneShot)
}

func TestMainTriggerIntervalCatchUpJumpsOnce(t *testing.T) {
	// Start ten days in the past with a three-day cadence: the anchor moves
	// exactly one interval forward even though that still lies in the past.
	task := model.Task{
		DueTime:      "09:00",
		StartDate:    at(2026, 2, 28, 0, 0),
		RepeatType:   model.RepeatInterval,
		IntervalDays: 3,
	}

	tr, err := MainTrigger(task, testNow)
	require.NoError(t, err)
	assert.False(t, tr.OneShot)

	sched, ok := tr.Schedule.(intervalSchedule)
	require.True(t, ok)
	assert.Equal(t, at(2026, 3, 2, 9, 0), sched.start)

	// Next still lands on the cadence grid, in the future.
	assert.Equal(t, at(2026, 3, 11, 9, 0), tr.Schedule.Next(testNow))
}

func TestMainTriggerIntervalFutureStart(t *testing.T) {
	task := model.Task{
		DueTime:      "09:00",
		StartDate:    at(2026, 3, 12, 0, 0),
		RepeatType:   model.RepeatInterval,
		IntervalDays: 2,
	}

	tr, err := MainTrigger(task, testNow)
	require.NoError(t, err)

	first := tr.Schedule.Next(testNow)
	assert.Equal(t, at(2026, 3, 12, 9, 0), first)
	assert.Equal(t, at(2026, 3, 14, 9, 0), tr.Schedule.Next(first))
}

func TestMainTriggerIntervalWithoutCadenceFallsBackToOnce(t *testing.T) {
	task := model.Task{DueTime: "18:00", StartDate: testNow, RepeatType: model.RepeatInterval}

	tr, err := MainTrigger(task, testNow)
	require.NoError(t, err)
	assert.True(t, tr.OneShot)
}

func TestMainTriggerInvalidDueTime(t *testing.T) {
	task := model.Task{DueTime: "25:99", StartDate: testNow}

	_, err := MainTrigger(task, testNow)
	assert.Error(t, err)
}

func TestEarlyTriggerDisabledWithoutOffset(t *testing.T) {
	task := model.Task{DueTime: "18:00", StartDate: testNow, RepeatType: model.RepeatDaily}

	_, ok, err := EarlyTrigger(task, testNow)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEarlyTriggerShiftsClock(t *testing.T) {
	task := model.Task{
		DueTime:        "18:00",
		StartDate:      testNow,
		RepeatType:     model.RepeatDaily,
		ReminderOffset: 30,
	}

	tr, ok, err := EarlyTrigger(task, testNow)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at(2026, 3, 10, 17, 30), tr.Schedule.Next(testNow))
}

func TestEarlyTriggerCrossesMidnight(t *testing.T) {
	task := model.Task{
		DueTime:        "00:10",
		StartDate:      testNow,
		RepeatType:     model.RepeatDaily,
		ReminderOffset: 20,
	}

	tr, ok, err := EarlyTrigger(task, testNow)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at(2026, 3, 10, 23, 50), tr.Schedule.Next(testNow))
}

func TestDueTimeEditMovesNextFire(t *testing.T) {
	task := model.Task{DueTime: "14:00", StartDate: testNow, RepeatType: model.RepeatDaily}

	tr, err := MainTrigger(task, testNow)
	require.NoError(t, err)
	assert.Equal(t, at(2026, 3, 10, 14, 0), tr.Schedule.Next(testNow))

	task.DueTime = "20:45"
	tr, err = MainTrigger(task, testNow)
	require.NoError(t, err)
	assert.Equal(t, at(2026, 3, 10, 20, 45), tr.Schedule.Next(testNow))
}
