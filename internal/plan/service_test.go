package plan

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/oblivio-company/famjam/internal/clock"
	"github.com/oblivio-company/famjam/internal/database"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/store"
)

func setup(t *testing.T) (*Service, *store.PlanStore, *store.TaskStore, *clock.Clock, *model.Family, []*model.User) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clk, err := clock.NewFixed(clock.DefaultTimezone, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("failed to create clock: %v", err)
	}

	family, err := store.NewFamilyStore(db).Create("Test Family", "TESTCODE")
	if err != nil {
		t.Fatalf("failed to create family: %v", err)
	}
	users := store.NewUserStore(db)
	var kids []*model.User
	for _, name := range []string{"anna", "ben", "cleo"} {
		kid, err := users.Create(family.ID, name, nil, model.RoleChild, "x")
		if err != nil {
			t.Fatalf("failed to create child: %v", err)
		}
		kids = append(kids, kid)
	}

	plans := store.NewPlanStore(db)
	tasks := store.NewTaskStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(plans, tasks, users, clk, logger)

	return svc, plans, tasks, clk, family, kids
}

func weekWindow(clk *clock.Clock) (start, end time.Time) {
	start = clk.Today()
	return start, start.AddDate(0, 0, 6)
}

func TestCreateDraftValidatesTemplates(t *testing.T) {
	svc, _, _, clk, family, kids := setup(t)
	start, end := weekWindow(clk)

	_, err := svc.CreateDraft(family.ID, "Spring", "Teamwork", start, end, []model.PlanTemplate{
		{Name: "", Points: 5, Type: model.TaskChore, Recurrence: model.RecurDaily, AssignedTo: model.AssignAll},
	})
	if err == nil {
		t.Fatal("expected validation error for empty template name")
	}

	p, err := svc.CreateDraft(family.ID, "Spring", "Teamwork", start, end, []model.PlanTemplate{
		{Name: "Dishes", Points: 5, Type: model.TaskChore, Recurrence: model.RecurDaily, AssignedTo: strconv.FormatInt(kids[0].ID, 10)},
	})
	if err != nil {
		t.Fatalf("create draft failed: %v", err)
	}
	if p.Status != model.PlanDraft {
		t.Errorf("expected draft status, got %s", p.Status)
	}
}

func TestCreateDraftRejectsInvertedWindow(t *testing.T) {
	svc, _, _, clk, family, _ := setup(t)

	_, err := svc.CreateDraft(family.ID, "Backwards", "", clk.Today(), clk.Today().AddDate(0, 0, -1), nil)
	if !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("expected ErrEmptyWindow, got %v", err)
	}
}

func TestApplyExpandsTemplates(t *testing.T) {
	svc, _, tasks, clk, family, kids := setup(t)
	start, end := weekWindow(clk)

	p, err := svc.CreateDraft(family.ID, "Spring", "Teamwork", start, end, []model.PlanTemplate{
		{Name: "Dishes", Points: 5, Type: model.TaskChore, Recurrence: model.RecurDaily, AssignedTo: strconv.FormatInt(kids[0].ID, 10)},
		{Name: "Read", Points: 3, Type: model.TaskHabit, Recurrence: model.RecurDaily, AssignedTo: model.AssignAll},
	})
	if err != nil {
		t.Fatalf("create draft failed: %v", err)
	}

	created, err := svc.Apply(family.ID, p.ID)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	// 7 daily chores + 7 days x 3 children of the habit.
	if created != 7+21 {
		t.Errorf("expected 28 tasks, got %d", created)
	}

	rows, err := tasks.ListByFamilyRange(family.ID, start, end.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(rows) != 28 {
		t.Errorf("expected 28 rows in window, got %d", len(rows))
	}
	for _, row := range rows {
		if row.PlanID == nil || *row.PlanID != p.ID {
			t.Errorf("expected task linked to plan %d, got %v", p.ID, row.PlanID)
		}
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	svc, _, _, clk, family, kids := setup(t)
	start, end := weekWindow(clk)

	p, err := svc.CreateDraft(family.ID, "Spring", "", start, end, []model.PlanTemplate{
		{Name: "Dishes", Points: 5, Type: model.TaskChore, Recurrence: model.RecurDaily, AssignedTo: strconv.FormatInt(kids[0].ID, 10)},
	})
	if err != nil {
		t.Fatalf("create draft failed: %v", err)
	}

	if _, err := svc.Apply(family.ID, p.ID); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	created, err := svc.Apply(family.ID, p.ID)
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	if created != 0 {
		t.Errorf("expected re-apply to create nothing, got %d", created)
	}
}

func TestApplyArchivesPreviousPlan(t *testing.T) {
	svc, plans, _, clk, family, kids := setup(t)
	start, end := weekWindow(clk)
	assignee := strconv.FormatInt(kids[0].ID, 10)

	first, err := svc.CreateDraft(family.ID, "First", "", start, end, []model.PlanTemplate{
		{Name: "Dishes", Points: 5, Type: model.TaskChore, Recurrence: model.RecurDaily, AssignedTo: assignee},
	})
	if err != nil {
		t.Fatalf("create draft failed: %v", err)
	}
	second, err := svc.CreateDraft(family.ID, "Second", "", start, end, []model.PlanTemplate{
		{Name: "Laundry", Points: 5, Type: model.TaskChore, Recurrence: model.RecurWeekly, AssignedTo: assignee},
	})
	if err != nil {
		t.Fatalf("create draft failed: %v", err)
	}

	if _, err := svc.Apply(family.ID, first.ID); err != nil {
		t.Fatalf("apply first failed: %v", err)
	}
	if _, err := svc.Apply(family.ID, second.ID); err != nil {
		t.Fatalf("apply second failed: %v", err)
	}

	gotFirst, err := plans.GetByID(first.ID)
	if err != nil {
		t.Fatalf("failed to get plan: %v", err)
	}
	if gotFirst.Status != model.PlanArchived {
		t.Errorf("expected first plan archived, got %s", gotFirst.Status)
	}

	active, err := plans.GetActive(family.ID)
	if err != nil {
		t.Fatalf("failed to get active plan: %v", err)
	}
	if active == nil || active.ID != second.ID {
		t.Errorf("expected second plan active, got %+v", active)
	}
}

func TestApplySharesRoundRobinAcrossTemplates(t *testing.T) {
	svc, _, tasks, clk, family, kids := setup(t)
	start := clk.Today()

	// Two one-off round-robin templates on the same day: the cursor must
	// advance across templates, giving the two tasks to different children.
	p, err := svc.CreateDraft(family.ID, "Split", "", start, start, []model.PlanTemplate{
		{Name: "Sweep", Points: 5, Type: model.TaskChore, Recurrence: model.RecurNone, AssignedTo: model.AssignRoundRobin},
		{Name: "Mop", Points: 5, Type: model.TaskChore, Recurrence: model.RecurNone, AssignedTo: model.AssignRoundRobin},
	})
	if err != nil {
		t.Fatalf("create draft failed: %v", err)
	}
	if _, err := svc.Apply(family.ID, p.ID); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	rows, err := tasks.ListByFamilyRange(family.ID, start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(rows))
	}
	byName := map[string]int64{}
	for _, row := range rows {
		byName[row.Name] = row.AssignedTo
	}
	if byName["Sweep"] != kids[0].ID {
		t.Errorf("expected Sweep for first child, got %d", byName["Sweep"])
	}
	if byName["Mop"] != kids[1].ID {
		t.Errorf("expected Mop for second child, got %d", byName["Mop"])
	}
}

func TestApplyUnknownPlan(t *testing.T) {
	svc, _, _, _, family, _ := setup(t)

	_, err := svc.Apply(family.ID, 9999)
	if !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}
}
