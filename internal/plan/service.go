// Package plan manages reward plans: drafts of task templates over a date
// window, at most one active per family, applied by expanding every template
// into concrete tasks.
package plan

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oblivio-company/famjam/internal/clock"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/schedule"
	"github.com/oblivio-company/famjam/internal/store"
)

var (
	ErrPlanNotFound = errors.New("plan not found")
	ErrEmptyWindow  = errors.New("plan end date is before its start date")
)

type Service struct {
	plans  *store.PlanStore
	tasks  *store.TaskStore
	users  *store.UserStore
	clock  *clock.Clock
	logger *slog.Logger
}

func NewService(plans *store.PlanStore, tasks *store.TaskStore, users *store.UserStore, clk *clock.Clock, logger *slog.Logger) *Service {
	return &Service{plans: plans, tasks: tasks, users: users, clock: clk, logger: logger}
}

// CreateDraft validates the templates and stores the plan as a draft.
// Nothing is scheduled until the plan is applied.
func (s *Service) CreateDraft(familyID int64, name, goal string, start, end time.Time, templates []model.PlanTemplate) (*model.Plan, error) {
	if end.Before(start) {
		return nil, ErrEmptyWindow
	}
	for _, t := range templates {
		if err := toScheduleTemplate(t).Validate(); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Name, err)
		}
	}
	return s.plans.CreateDraft(familyID, name, goal, s.clock.StartOfDay(start), s.clock.StartOfDay(end), templates)
}

// Apply activates the plan and expands all of its templates into tasks over
// the plan window. Any previously active plan is archived; its tasks remain.
// The expansion is idempotent, so re-applying fills gaps without duplicating
// existing tasks. Returns the number of tasks created.
func (s *Service) Apply(familyID, planID int64) (int, error) {
	p, err := s.plans.GetForFamily(planID, familyID)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, ErrPlanNotFound
	}

	templates, err := s.plans.ListTemplates(p.ID)
	if err != nil {
		return 0, err
	}
	children, err := s.users.ListChildren(familyID)
	if err != nil {
		return 0, fmt.Errorf("list children: %w", err)
	}
	roster := make([]int64, len(children))
	for i, c := range children {
		roster[i] = c.ID
	}

	start := s.clock.StartOfDay(p.StartDate)
	end := s.clock.StartOfDay(p.EndDate)

	// One cycler for the whole application keeps round-robin fair across
	// templates, not just within one.
	cyc := schedule.NewCycler(roster)

	var rows []model.Task
	for _, t := range templates {
		occs, err := schedule.Expand(toScheduleTemplate(t), start, end, roster, cyc)
		if err != nil {
			return 0, fmt.Errorf("expand template %q: %w", t.Name, err)
		}
		for _, occ := range occs {
			planID := p.ID
			rows = append(rows, model.Task{
				FamilyID:    familyID,
				PlanID:      &planID,
				Name:        t.Name,
				Description: t.Description,
				Points:      t.Points,
				Type:        t.Type,
				AssignedTo:  occ.AssignedTo,
				DueDate:     occ.DueDate,
			})
		}
	}

	if err := s.plans.Activate(p.ID, familyID, s.clock.Now()); err != nil {
		return 0, err
	}
	created, err := s.tasks.ScheduleMany(rows)
	if err != nil {
		return 0, fmt.Errorf("schedule plan tasks: %w", err)
	}

	s.logger.Info("plan applied",
		slog.Int64("plan_id", p.ID),
		slog.Int64("family_id", familyID),
		slog.Int("templates", len(templates)),
		slog.Int("expanded", len(rows)),
		slog.Int("created", created))
	return created, nil
}

func toScheduleTemplate(t model.PlanTemplate) schedule.Template {
	return schedule.Template{
		Name:        t.Name,
		Description: t.Description,
		Points:      t.Points,
		Type:        t.Type,
		Recurrence:  t.Recurrence,
		AssignedTo:  t.AssignedTo,
	}
}
