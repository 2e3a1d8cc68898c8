package model

import "time"

type TaskType string

const (
	TaskChore TaskType = "chore"
	TaskHabit TaskType = "habit"
)

type TaskStatus string

const (
	StatusAssigned  TaskStatus = "assigned"
	StatusCompleted TaskStatus = "completed"
	StatusApproved  TaskStatus = "approved"
	StatusMissed    TaskStatus = "missed"
	StatusForgiven  TaskStatus = "forgiven"
)

type Recurrence string

const (
	RecurNone    Recurrence = "none"
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

// Task is one concrete, datable unit of work. The tuple
// (family_id, name, due_date, assigned_to) is unique and acts as the
// idempotency key for scheduling.
type Task struct {
	ID          int64      `json:"id"`
	FamilyID    int64      `json:"family_id"`
	PlanID      *int64     `json:"plan_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
	Type        TaskType   `json:"type"`
	AssignedTo  int64      `json:"assigned_to"`
	DueDate     time.Time  `json:"due_date"`
	Status      TaskStatus `json:"status"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	MissedAt    *time.Time `json:"missed_at,omitempty"`
	ForgivenAt  *time.Time `json:"forgiven_at,omitempty"`

	// Habit-only fields. Streak is the count of consecutive local-day
	// check-ins; LastCompleted is the most recent check-in instant.
	Streak        int        `json:"streak"`
	LastCompleted *time.Time `json:"last_completed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (t *Task) IsChore() bool { return t.Type == TaskChore }
func (t *Task) IsHabit() bool { return t.Type == TaskHabit }
