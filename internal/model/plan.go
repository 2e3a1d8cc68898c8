package model

import "time"

type PlanStatus string

const (
	PlanDraft    PlanStatus = "draft"
	PlanActive   PlanStatus = "active"
	PlanArchived PlanStatus = "archived"
)

// Plan is a named, time-boxed bundle of task templates. At most one plan per
// family is active at a time; activating a plan archives the previous one.
type Plan struct {
	ID        int64      `json:"id"`
	FamilyID  int64      `json:"family_id"`
	Name      string     `json:"name"`
	Goal      string     `json:"goal"`
	Status    PlanStatus `json:"status"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// PlanTemplate is one chore definition inside a plan. It is expanded into
// concrete tasks when the plan is applied.
type PlanTemplate struct {
	ID          int64      `json:"id"`
	PlanID      int64      `json:"plan_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
	Type        TaskType   `json:"type"`
	Recurrence  Recurrence `json:"recurrence"`
	// AssignedTo selects the assignee: a child ID, AssignAll, or AssignRoundRobin.
	AssignedTo string `json:"assigned_to"`
}

// Special assignee selector values, matching the wire form parents submit.
const (
	AssignAll        = "__ALL__"
	AssignRoundRobin = "__ROUND_ROBIN__"
)
