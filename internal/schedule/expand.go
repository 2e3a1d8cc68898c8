// Package schedule expands task templates into concrete (due date, assignee)
// occurrences over a date window.
package schedule

import (
	"fmt"
	"strconv"
	"time"

	"github.com/oblivio-company/famjam/internal/model"
)

// DefaultHorizonDays is how far ahead ad-hoc recurring tasks are generated.
const DefaultHorizonDays = 90

// Template describes one recurring task definition to expand.
type Template struct {
	Name        string
	Description string
	Points      int
	Type        model.TaskType
	Recurrence  model.Recurrence
	// AssignedTo is a child ID in decimal form, model.AssignAll, or
	// model.AssignRoundRobin.
	AssignedTo string
}

// Validate checks the template fields that expansion depends on.
func (t Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if t.Points <= 0 {
		return fmt.Errorf("points must be positive, got %d", t.Points)
	}
	switch t.Type {
	case model.TaskChore, model.TaskHabit:
	default:
		return fmt.Errorf("invalid task type %q", t.Type)
	}
	switch t.Recurrence {
	case model.RecurNone, model.RecurDaily, model.RecurWeekly, model.RecurMonthly:
	default:
		return fmt.Errorf("invalid recurrence %q", t.Recurrence)
	}
	return nil
}

// Occurrence is one generated unit of work: who does what on which date.
type Occurrence struct {
	DueDate    time.Time
	AssignedTo int64
}

// Cycler hands out roster members in a fixed cyclic order. The cursor
// advances once per generated due date, not once per instance, and a single
// Cycler may be shared across templates so round-robin stays fair across a
// whole plan application.
type Cycler struct {
	roster []int64
	idx    int
}

func NewCycler(roster []int64) *Cycler {
	return &Cycler{roster: roster}
}

func (c *Cycler) next() int64 {
	id := c.roster[c.idx%len(c.roster)]
	c.idx++
	return id
}

// Expand generates the occurrences of tpl for every due date in
// [start, end]. start must be the family-local midnight of the first due
// date; generated dates keep its location. roster is the ordered list of
// child IDs in the family.
//
// For a one-off template (recurrence none) the window is ignored and a
// single date at start is produced.
func Expand(tpl Template, start, end time.Time, roster []int64, cyc *Cycler) ([]Occurrence, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("no children to assign tasks to")
	}

	var fixed int64
	switch tpl.AssignedTo {
	case model.AssignAll, model.AssignRoundRobin:
	default:
		id, err := strconv.ParseInt(tpl.AssignedTo, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid assignee %q", tpl.AssignedTo)
		}
		if !contains(roster, id) {
			return nil, fmt.Errorf("assignee %d is not a child in this family", id)
		}
		fixed = id
	}
	if cyc == nil {
		cyc = NewCycler(roster)
	}

	var out []Occurrence
	for i := 0; ; i++ {
		due := step(start, tpl.Recurrence, i)
		if due.After(end) && tpl.Recurrence != model.RecurNone {
			break
		}

		switch tpl.AssignedTo {
		case model.AssignAll:
			for _, id := range roster {
				out = append(out, Occurrence{DueDate: due, AssignedTo: id})
			}
		case model.AssignRoundRobin:
			out = append(out, Occurrence{DueDate: due, AssignedTo: cyc.next()})
		default:
			out = append(out, Occurrence{DueDate: due, AssignedTo: fixed})
		}

		if tpl.Recurrence == model.RecurNone {
			break
		}
	}
	return out, nil
}

// HorizonEnd returns the last due date included by an n-day generation
// horizon starting at start (dates are generated while date < start+n days).
func HorizonEnd(start time.Time, days int) time.Time {
	return start.AddDate(0, 0, days-1)
}

// step returns the i-th due date of the cadence starting at start.
// Monthly stepping anchors on start's day-of-month and clamps to the last
// day of shorter months (Jan 31 -> Feb 28/29 -> Mar 31).
func step(start time.Time, r model.Recurrence, i int) time.Time {
	switch r {
	case model.RecurDaily:
		return start.AddDate(0, 0, i)
	case model.RecurWeekly:
		return start.AddDate(0, 0, 7*i)
	case model.RecurMonthly:
		return addMonthsClamped(start, i)
	default: // none
		return start
	}
}

func addMonthsClamped(start time.Time, n int) time.Time {
	// AddDate normalizes Feb 31 into early March; walk via the first of the
	// month instead and clamp the day.
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	first = first.AddDate(0, n, 0)
	day := start.Day()
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		start.Hour(), start.Minute(), start.Second(), 0, start.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
