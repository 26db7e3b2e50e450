package model

import "time"

// Repeat policies a task can carry. Exactly one is active; the parameter
// columns of the other policies are ignored.
const (
	RepeatNone     = "none"
	RepeatDaily    = "daily"
	RepeatWeekly   = "weekly"
	RepeatInterval = "interval"
)

// Task represents one reminder obligation of a user.
type Task struct {
	ID         uint  `gorm:"primaryKey"`
	UserID     uint  `gorm:"index"`
	CategoryID *uint `gorm:"index"`
	Title      string
	DueTime    string    // wall-clock "HH:MM", server-local
	StartDate  time.Time // date the schedule becomes active
	RepeatType string    `gorm:"default:none"`
	RepeatDays string    // weekly only: "mon,tue"
	// IntervalDays is the cadence in days for interval tasks.
	IntervalDays int
	// ReminderOffset is the early heads-up lead time in minutes; 0 disables it.
	ReminderOffset int
	IsDone         bool `gorm:"default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
