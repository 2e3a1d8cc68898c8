// Package task implements the lifecycle rules for chores and habits:
// completion, approval, habit check-ins, and forgiveness. Every transition
// is guarded so a repeated or stale request cannot move a task twice or
// credit points twice.
package task

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oblivio-company/famjam/internal/clock"
	"github.com/oblivio-company/famjam/internal/ledger"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/schedule"
	"github.com/oblivio-company/famjam/internal/store"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrNotAllowed        = errors.New("not allowed to act on this task")
	ErrInvalidTransition = errors.New("task is not in a state that allows this action")
	// ErrAlreadyCheckedIn means the habit was already checked in today.
	ErrAlreadyCheckedIn = errors.New("habit already checked in today")
	// ErrHabitClosed means the habit instance was missed or forgiven and can
	// no longer accept check-ins.
	ErrHabitClosed = errors.New("habit instance is closed")
)

type Service struct {
	tasks  *store.TaskStore
	users  *store.UserStore
	ledger *ledger.Ledger
	clock  *clock.Clock
	logger *slog.Logger

	horizonDays int
}

func NewService(tasks *store.TaskStore, users *store.UserStore, l *ledger.Ledger, clk *clock.Clock, logger *slog.Logger, horizonDays int) *Service {
	if horizonDays <= 0 {
		horizonDays = schedule.DefaultHorizonDays
	}
	return &Service{
		tasks:       tasks,
		users:       users,
		ledger:      l,
		clock:       clk,
		logger:      logger,
		horizonDays: horizonDays,
	}
}

// Create schedules an ad-hoc task. A one-off becomes a single row; a
// recurring task is expanded across the scheduling horizon. Re-submitting
// the same task is harmless: occurrences that already exist are skipped.
// Returns the number of task rows created.
func (s *Service) Create(familyID int64, tpl schedule.Template, due time.Time) (int, error) {
	if err := tpl.Validate(); err != nil {
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

	start := s.clock.StartOfDay(due)
	end := start
	if tpl.Recurrence != model.RecurNone {
		end = schedule.HorizonEnd(start, s.horizonDays)
	}

	occs, err := schedule.Expand(tpl, start, end, roster, schedule.NewCycler(roster))
	if err != nil {
		return 0, err
	}

	rows := make([]model.Task, len(occs))
	for i, occ := range occs {
		rows[i] = model.Task{
			FamilyID:    familyID,
			Name:        tpl.Name,
			Description: tpl.Description,
			Points:      tpl.Points,
			Type:        tpl.Type,
			AssignedTo:  occ.AssignedTo,
			DueDate:     occ.DueDate,
		}
	}

	created, err := s.tasks.ScheduleMany(rows)
	if err != nil {
		return 0, fmt.Errorf("schedule tasks: %w", err)
	}
	s.logger.Info("scheduled tasks",
		slog.Int64("family_id", familyID),
		slog.String("name", tpl.Name),
		slog.Int("expanded", len(rows)),
		slog.Int("created", created))
	return created, nil
}

// CompleteChore marks one of the actor's own chores as done, pending parent
// approval. The assignee, type, and status guards all live in one statement
// so a double tap or a stale client cannot complete a task twice.
func (s *Service) CompleteChore(actor *model.User, taskID int64) (*model.Task, error) {
	moved, err := s.tasks.CompleteChore(taskID, actor.ID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, s.classifyCompleteFailure(actor, taskID)
	}
	return s.tasks.GetByID(taskID)
}

// classifyCompleteFailure turns a no-op guarded update into a precise error.
func (s *Service) classifyCompleteFailure(actor *model.User, taskID int64) error {
	t, err := s.tasks.GetForFamily(taskID, actor.FamilyID)
	if err != nil {
		return err
	}
	switch {
	case t == nil:
		return ErrTaskNotFound
	case t.AssignedTo != actor.ID:
		return ErrNotAllowed
	default:
		return ErrInvalidTransition
	}
}

// Approve confirms a completed chore and credits its points. The status
// guard inside SetApproved makes a repeated approval a no-op, so points are
// credited exactly once.
func (s *Service) Approve(familyID, taskID int64) (*model.Task, error) {
	t, err := s.tasks.GetForFamily(taskID, familyID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTaskNotFound
	}
	if !t.IsChore() || t.Status != model.StatusCompleted {
		return nil, ErrInvalidTransition
	}

	n, err := s.tasks.SetApproved([]int64{taskID}, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrInvalidTransition
	}
	if err := s.ledger.Credit(t.AssignedTo, t.Points); err != nil {
		return nil, err
	}

	s.logger.Info("chore approved",
		slog.Int64("task_id", taskID),
		slog.Int64("assignee", t.AssignedTo),
		slog.Int("points", t.Points))
	return s.tasks.GetByID(taskID)
}

// ApproveAll approves every completed chore in the family at once. Points
// are summed per child and credited with a single update each, then the
// statuses move in one bulk statement. Returns how many tasks were approved.
func (s *Service) ApproveAll(familyID int64) (int, error) {
	pending, err := s.tasks.ListCompletedByFamily(familyID)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(pending))
	sums := make(map[int64]int)
	for _, t := range pending {
		ids = append(ids, t.ID)
		sums[t.AssignedTo] += t.Points
	}

	if _, err := s.ledger.CreditBatch(sums); err != nil {
		return 0, err
	}
	approved, err := s.tasks.SetApproved(ids, s.clock.Now())
	if err != nil {
		return 0, err
	}

	s.logger.Info("bulk approval",
		slog.Int64("family_id", familyID),
		slog.Int("approved", approved),
		slog.Int("children", len(sums)))
	return approved, nil
}

// CheckInHabit records today's habit check-in, extends or resets the streak,
// and credits the points immediately. One check-in per local day; an
// instance already swept to missed or forgiven rejects the check-in.
func (s *Service) CheckInHabit(actor *model.User, taskID int64) (*model.Task, error) {
	t, err := s.tasks.GetForFamily(taskID, actor.FamilyID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTaskNotFound
	}
	if t.AssignedTo != actor.ID {
		return nil, ErrNotAllowed
	}
	if !t.IsHabit() {
		return nil, ErrInvalidTransition
	}
	if t.Status == model.StatusMissed || t.Status == model.StatusForgiven {
		return nil, ErrHabitClosed
	}

	now := s.clock.Now()
	streak := 1
	if t.LastCompleted != nil {
		if s.clock.SameLocalDay(*t.LastCompleted, now) {
			return nil, ErrAlreadyCheckedIn
		}
		if s.clock.SameLocalDay(*t.LastCompleted, s.clock.Yesterday()) {
			streak = t.Streak + 1
		}
	}

	// The store re-checks the same-day rule inside the UPDATE, so two
	// concurrent check-ins cannot both pass and credit twice.
	moved, err := s.tasks.RecordCheckIn(taskID, now, s.clock.Today(), streak)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrAlreadyCheckedIn
	}
	if err := s.ledger.Credit(actor.ID, t.Points); err != nil {
		return nil, err
	}

	s.logger.Info("habit check-in",
		slog.Int64("task_id", taskID),
		slog.Int64("assignee", actor.ID),
		slog.Int("streak", streak))
	return s.tasks.GetByID(taskID)
}

// Forgive clears all of one child's missed tasks. Penalties already applied
// stay applied. Returns the number of tasks forgiven.
func (s *Service) Forgive(familyID, childID int64) (int, error) {
	child, err := s.users.GetChildInFamily(childID, familyID)
	if err != nil {
		return 0, err
	}
	if child == nil {
		return 0, ErrNotAllowed
	}

	n, err := s.tasks.ForgiveMissed(childID, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("missed tasks forgiven",
			slog.Int64("child_id", childID),
			slog.Int("count", n))
	}
	return n, nil
}
