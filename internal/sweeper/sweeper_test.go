package sweeper

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oblivio-company/famjam/internal/clock"
	"github.com/oblivio-company/famjam/internal/database"
	"github.com/oblivio-company/famjam/internal/ledger"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/store"
)

type fixture struct {
	db    *sql.DB
	sw    *Sweeper
	tasks *store.TaskStore
	users *store.UserStore
	clk   *clock.Clock
	kid   *model.User
	kid2  *model.User
}

func setupTest(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Late evening of March 9th, family-local time.
	now := time.Date(2026, 3, 10, 2, 5, 0, 0, time.UTC)
	clk, err := clock.NewFixed(clock.DefaultTimezone, now)
	if err != nil {
		t.Fatalf("failed to create clock: %v", err)
	}

	family, err := store.NewFamilyStore(db).Create("Test Family", "TESTCODE")
	if err != nil {
		t.Fatalf("failed to create family: %v", err)
	}
	users := store.NewUserStore(db)
	kid, err := users.Create(family.ID, "kid", nil, model.RoleChild, "x")
	if err != nil {
		t.Fatalf("failed to create child: %v", err)
	}
	kid2, err := users.Create(family.ID, "kid2", nil, model.RoleChild, "x")
	if err != nil {
		t.Fatalf("failed to create second child: %v", err)
	}

	tasks := store.NewTaskStore(db)
	sessions := store.NewSessionStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sw := New(tasks, sessions, ledger.New(db, false), clk, logger, DefaultPenaltyFactor)

	return &fixture{db: db, sw: sw, tasks: tasks, users: users, clk: clk, kid: kid, kid2: kid2}
}

func (f *fixture) insertDue(t *testing.T, name string, points int, assignee int64, due time.Time) *model.Task {
	t.Helper()
	created, err := f.tasks.Insert(model.Task{
		FamilyID:   f.kid.FamilyID,
		Name:       name,
		Points:     points,
		Type:       model.TaskChore,
		AssignedTo: assignee,
		DueDate:    due,
	})
	if err != nil {
		t.Fatalf("failed to insert task: %v", err)
	}
	return created
}

func (f *fixture) points(t *testing.T, userID int64) int {
	t.Helper()
	u, err := f.users.GetByID(userID)
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	return u.Points
}

func TestSweepMarksMissedAndPenalizes(t *testing.T) {
	f := setupTest(t)
	l := ledger.New(f.db, false)
	if err := l.Credit(f.kid.ID, 20); err != nil {
		t.Fatalf("failed to seed points: %v", err)
	}

	yesterday := f.clk.Yesterday()
	overdue := f.insertDue(t, "Dishes", 10, f.kid.ID, yesterday)
	f.insertDue(t, "Laundry", 5, f.kid.ID, yesterday)

	missed, err := f.sw.Sweep()
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if missed != 2 {
		t.Errorf("expected 2 tasks missed, got %d", missed)
	}

	got, err := f.tasks.GetByID(overdue.ID)
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if got.Status != model.StatusMissed {
		t.Errorf("expected status missed, got %s", got.Status)
	}
	if got.MissedAt == nil {
		t.Error("expected missed_at to be set")
	}

	// Penalty is half of each task's points, floored: 5 + 2 = 7.
	if points := f.points(t, f.kid.ID); points != 13 {
		t.Errorf("expected 13 points after penalty, got %d", points)
	}
}

func TestSweepIgnoresCompletedAndFutureTasks(t *testing.T) {
	f := setupTest(t)

	yesterday := f.clk.Yesterday()
	doneTask := f.insertDue(t, "Dishes", 10, f.kid.ID, yesterday)
	if _, err := f.tasks.CompleteChore(doneTask.ID, f.kid.ID, f.clk.Now()); err != nil {
		t.Fatalf("failed to complete task: %v", err)
	}
	todayTask := f.insertDue(t, "Homework", 5, f.kid.ID, f.clk.Today())

	missed, err := f.sw.Sweep()
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if missed != 0 {
		t.Errorf("expected nothing missed, got %d", missed)
	}

	got, err := f.tasks.GetByID(todayTask.ID)
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if got.Status != model.StatusAssigned {
		t.Errorf("expected today's task untouched, got %s", got.Status)
	}
	if points := f.points(t, f.kid.ID); points != 0 {
		t.Errorf("expected no penalty, got %d points", points)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	f := setupTest(t)
	l := ledger.New(f.db, false)
	if err := l.Credit(f.kid.ID, 10); err != nil {
		t.Fatalf("failed to seed points: %v", err)
	}
	f.insertDue(t, "Dishes", 10, f.kid.ID, f.clk.Yesterday())

	if _, err := f.sw.Sweep(); err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	missed, err := f.sw.Sweep()
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if missed != 0 {
		t.Errorf("expected second sweep to find nothing, got %d", missed)
	}
	if points := f.points(t, f.kid.ID); points != 5 {
		t.Errorf("expected single penalty of 5, got %d points", points)
	}
}

func TestSweepPenaltyFloorsAtZero(t *testing.T) {
	f := setupTest(t)
	// Child has 3 points; penalty would be 5.
	l := ledger.New(f.db, false)
	if err := l.Credit(f.kid.ID, 3); err != nil {
		t.Fatalf("failed to seed points: %v", err)
	}
	f.insertDue(t, "Dishes", 10, f.kid.ID, f.clk.Yesterday())

	if _, err := f.sw.Sweep(); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if points := f.points(t, f.kid.ID); points != 0 {
		t.Errorf("expected balance clamped at 0, got %d", points)
	}
}

func TestSweepGroupsPenaltiesPerChild(t *testing.T) {
	f := setupTest(t)
	l := ledger.New(f.db, false)
	if err := l.Credit(f.kid.ID, 50); err != nil {
		t.Fatalf("failed to seed points: %v", err)
	}
	if err := l.Credit(f.kid2.ID, 50); err != nil {
		t.Fatalf("failed to seed points: %v", err)
	}

	yesterday := f.clk.Yesterday()
	f.insertDue(t, "Dishes", 10, f.kid.ID, yesterday)
	f.insertDue(t, "Laundry", 7, f.kid.ID, yesterday)
	f.insertDue(t, "Trash", 4, f.kid2.ID, yesterday)

	missed, err := f.sw.Sweep()
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if missed != 3 {
		t.Errorf("expected 3 tasks missed, got %d", missed)
	}

	// kid: 5 + 3 = 8 off; kid2: 2 off.
	if points := f.points(t, f.kid.ID); points != 42 {
		t.Errorf("expected 42 points for first child, got %d", points)
	}
	if points := f.points(t, f.kid2.ID); points != 48 {
		t.Errorf("expected 48 points for second child, got %d", points)
	}
}

func TestNextRunIsTomorrowWhenPastSweepTime(t *testing.T) {
	f := setupTest(t)

	// The fixed clock is already past today's local sweep time, so the next
	// run must land tomorrow.
	next := f.sw.nextRun()
	if !next.After(f.clk.Now()) {
		t.Errorf("expected next run after now, got %v", next)
	}
	if got := f.clk.LocalDate(next); got != f.clk.LocalDate(f.clk.Today().AddDate(0, 0, 1)) {
		t.Errorf("expected next run tomorrow, got %s", got)
	}
}
